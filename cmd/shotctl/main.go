// Package main provides the operator CLI for the shot statistics service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	service "github.com/eerriikk-pro/sius-parse/internal/app"
	"github.com/eerriikk-pro/sius-parse/internal/config"
	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
	"github.com/eerriikk-pro/sius-parse/internal/simulate"
	"github.com/eerriikk-pro/sius-parse/pkg/logger"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configPath string
	storage    string
	dbPath     string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:           "shotctl",
		Short:         "Operate the shot statistics store",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", os.Getenv(config.EnvFileVar), "YAML config file")
	flags.StringVar(&opts.storage, "storage", "", "override storage backend (memory or sqlite)")
	flags.StringVar(&opts.dbPath, "db", "", "override SQLite database path")
	flags.StringVar(&opts.logLevel, "log-level", "", "override log level")

	rootCmd.AddCommand(newImportCmd(opts))
	rootCmd.AddCommand(newReportCmd(opts))
	rootCmd.AddCommand(newSimulateCmd())

	return rootCmd
}

// load resolves the configuration and initializes logging on stderr.
func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.storage != "" {
		cfg.Storage = o.storage
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := setupLogging(cmd.ErrOrStderr(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(w io.Writer, cfg *config.Config) error {
	if err := logger.Init(logger.WithWriter(w), logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// withService starts a service on the configured store, runs fn and stops it.
func (o *globalOptions) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service, cfg *config.Config) error) (err error) {
	cfg, err := o.load(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	svc, err := service.FromConfig(ctx, cfg, service.WithLogger(logger.Named("shotctl")))
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer func() {
		if stopErr := svc.Stop(context.WithoutCancel(ctx)); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to stop service: %w", stopErr))
		}
	}()
	return fn(ctx, svc, cfg)
}

func newImportCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE...",
		Short: "Import range exports synchronously into the configured store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd, func(ctx context.Context, svc *service.Service, _ *config.Config) error {
				enc := json.NewEncoder(cmd.OutOrStdout())
				var failed int
				for _, path := range args {
					content, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("failed to read %s: %w", path, err)
					}
					job, err := svc.ImportNow(ctx, filepath.Base(path), content)
					if err != nil {
						failed++
						job = model.ImportJob{Filename: filepath.Base(path), Status: model.JobFailed, Error: err.Error()}
					}
					if err := enc.Encode(job); err != nil {
						return fmt.Errorf("failed to write result: %w", err)
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d files failed to import", failed, len(args))
				}
				return nil
			})
		},
	}
}

type reportOutput struct {
	AthleteID int64              `json:"athlete_id"`
	Days      int                `json:"days"`
	Report    model.PeriodReport `json:"report"`
	Recent    []model.DayStats   `json:"recent"`
}

func newReportCmd(opts *globalOptions) *cobra.Command {
	var (
		athleteID int64
		days      int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the period report and recent days for an athlete as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if athleteID <= 0 {
				return errors.New("--athlete must be a positive id")
			}
			return opts.withService(cmd, func(ctx context.Context, svc *service.Service, cfg *config.Config) error {
				if days == 0 {
					days = cfg.DefaultWindowDays
				}
				if days < 1 || days > cfg.MaxWindowDays {
					return fmt.Errorf("--days must be between 1 and %d", cfg.MaxWindowDays)
				}
				report, err := svc.GetStats(ctx, athleteID, days)
				if err != nil {
					return err
				}
				recent, err := svc.GetRecent(ctx, athleteID, days)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reportOutput{AthleteID: athleteID, Days: days, Report: report, Recent: recent})
			})
		},
	}
	cmd.Flags().Int64Var(&athleteID, "athlete", 0, "athlete id")
	cmd.Flags().IntVar(&days, "days", 0, "window length in days (default: default_window_days)")
	return cmd
}

func newSimulateCmd() *cobra.Command {
	cfg := simulate.NewConfig()
	var (
		endDate string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Upload synthetic exports to a running service and verify its answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr())); err != nil {
				return err
			}
			if verbose {
				_ = logger.SetLevelString("debug")
			}
			if endDate != "" {
				end, err := model.ParseDate(endDate)
				if err != nil {
					return err
				}
				cfg.End = end
			}
			runner, err := simulate.NewRunner(cfg)
			if err != nil {
				return err
			}
			stats, err := runner.Run(cmd.Context())
			if stats != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(stats); encErr != nil {
					return errors.Join(err, encErr)
				}
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "base URL of the service")
	flags.Int64Var(&cfg.AthleteID, "athlete", cfg.AthleteID, "athlete id to generate shots for")
	flags.IntVar(&cfg.Days, "days", cfg.Days, "number of days to generate")
	flags.IntVar(&cfg.ShotsPerDay, "shots", cfg.ShotsPerDay, "match shots per day")
	flags.IntVar(&cfg.SightersPerDay, "sighters", cfg.SightersPerDay, "sighters per day")
	flags.IntVar(&cfg.RelaySize, "relay-size", cfg.RelaySize, "relay size the service runs with")
	flags.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "score generator seed")
	flags.StringVar(&endDate, "end", "", "last generated day, YYYY-MM-DD (default: today)")
	flags.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "files per upload request")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	flags.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "job poll interval")
	flags.DurationVar(&cfg.SettleTimeout, "settle-timeout", simulate.DefaultSettleTimeout, "how long to wait for import jobs")
	flags.StringVar(&cfg.OutputDir, "output-dir", "", "also write generated exports to this directory")
	flags.BoolVar(&verbose, "verbose", false, "enable debug logging")
	return cmd
}
