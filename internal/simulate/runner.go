package simulate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
	"github.com/eerriikk-pro/sius-parse/pkg/logger"
	"github.com/google/uuid"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o640
)

// maxUploadRetries bounds resubmission of a batch refused with 429.
const maxUploadRetries = 10

// ErrMismatch is returned when the service disagrees with the local result.
var ErrMismatch = errors.New("service answers do not match local computation")

// Runner executes simulation runs against one service.
type Runner struct {
	cfg    *Config
	client *Client
	now    func() time.Time
	log    logger.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock overrides the clock used to pick the last generated day.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger used for progress output.
func WithLogger(l logger.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRunner validates cfg and creates a Runner.
func NewRunner(cfg *Config, opts ...RunnerOption) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:    cfg,
		client: NewClient(cfg.BaseURL, cfg.Timeout),
		now:    time.Now,
		log:    logger.Named("simulate"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes the complete simulation and returns its statistics. A
// verification failure is reported as ErrMismatch.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{RunID: uuid.NewString(), StartTime: time.Now()}
	cfg := r.cfg

	r.log.Info(ctx, "starting simulation",
		logger.String("runID", stats.RunID),
		logger.String("baseURL", cfg.BaseURL),
		logger.Int64("athleteID", cfg.AthleteID),
		logger.Int("days", cfg.Days),
		logger.Int("shotsPerDay", cfg.ShotsPerDay))

	// Step 1: Check service health
	if err := r.client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate exports
	end := cfg.End
	if end.IsZero() {
		end = model.DateOf(r.now())
	}
	exports, err := Generate(cfg, end)
	if err != nil {
		return stats, fmt.Errorf("export generation failed: %w", err)
	}
	stats.FilesGenerated = len(exports)
	for _, e := range exports {
		stats.ShotsGenerated += len(e.Shots)
	}
	if cfg.OutputDir != "" {
		if err := saveExports(cfg.OutputDir, exports); err != nil {
			r.log.Warn(ctx, "failed to save exports", logger.Error(err))
		}
	}

	// Step 3: Upload in batches
	jobs, err := r.upload(ctx, exports, stats)
	if err != nil {
		return stats, fmt.Errorf("upload failed: %w", err)
	}

	// Step 4: Wait for the workers
	if err := r.settle(ctx, jobs, stats); err != nil {
		return stats, fmt.Errorf("waiting for jobs failed: %w", err)
	}

	// Step 5: Query and verify
	want, err := Expect(ctx, cfg, exports, r.now)
	if err != nil {
		return stats, fmt.Errorf("local computation failed: %w", err)
	}
	report, err := r.client.Stats(ctx, cfg.AthleteID, cfg.Days)
	if err != nil {
		return stats, fmt.Errorf("stats query failed: %w", err)
	}
	recent, err := r.client.Recent(ctx, cfg.AthleteID, cfg.Days)
	if err != nil {
		return stats, fmt.Errorf("recent-scores query failed: %w", err)
	}
	r.finish(stats)
	if err := Verify(want, report, recent); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrMismatch, err)
	}

	r.log.Info(ctx, "simulation verified",
		logger.Float64("bestScore", report.BestScore),
		logger.Float64("averageScore", report.AverageScore),
		logger.Int("days", len(recent)))
	return stats, nil
}

// upload sends exports in batches. A batch refused part way is resumed from
// the first file the service did not accept.
func (r *Runner) upload(ctx context.Context, exports []Export, stats *Stats) ([]model.ImportJob, error) {
	var jobs []model.ImportJob
	for start := 0; start < len(exports); start += r.cfg.BatchSize {
		batch := exports[start:min(start+r.cfg.BatchSize, len(exports))]
		for attempt := 0; len(batch) > 0; attempt++ {
			accepted, err := r.client.Upload(ctx, batch)
			jobs = append(jobs, accepted...)
			batch = batch[min(len(accepted), len(batch)):]
			if err == nil {
				break
			}
			if !errors.Is(err, ErrBackpressure) || attempt >= maxUploadRetries {
				return jobs, err
			}
			stats.Retries++
			r.log.Debug(ctx, "upload refused, backing off",
				logger.Int("attempt", attempt+1),
				logger.Int("remaining", len(batch)))
			if err := sleep(ctx, r.cfg.PollInterval*time.Duration(attempt+1)); err != nil {
				return jobs, err
			}
		}
	}
	r.log.Info(ctx, "exports uploaded", logger.Int("jobs", len(jobs)))
	return jobs, nil
}

// settle polls every queued job until it reaches a terminal state.
func (r *Runner) settle(ctx context.Context, jobs []model.ImportJob, stats *Stats) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.SettleTimeout)
	defer cancel()

	for _, job := range jobs {
		for job.Status == model.JobQueued {
			if err := sleep(ctx, r.cfg.PollInterval); err != nil {
				return fmt.Errorf("job %s: %w", job.ID, err)
			}
			next, err := r.client.Job(ctx, job.ID)
			if err != nil {
				return fmt.Errorf("job %s: %w", job.ID, err)
			}
			job = next
		}
		switch job.Status {
		case model.JobDuplicate:
			stats.JobsDuplicate++
		case model.JobFailed:
			stats.JobsFailed++
			r.log.Warn(ctx, "import job failed", logger.String("jobID", job.ID), logger.String("error", job.Error))
		default:
			stats.JobsAccepted++
			stats.ShotsInserted += job.Inserted
		}
	}
	if stats.JobsFailed > 0 {
		return fmt.Errorf("%d import jobs failed", stats.JobsFailed)
	}
	return nil
}

func (r *Runner) finish(stats *Stats) {
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	r.log.Info(context.Background(), "final statistics",
		logger.String("runID", stats.RunID),
		logger.Int("filesGenerated", stats.FilesGenerated),
		logger.Int("shotsGenerated", stats.ShotsGenerated),
		logger.Int("jobsAccepted", stats.JobsAccepted),
		logger.Int("jobsDuplicate", stats.JobsDuplicate),
		logger.Int("shotsInserted", stats.ShotsInserted),
		logger.Int("retries", stats.Retries),
		logger.Duration("duration", stats.Duration))
}

// saveExports writes the generated files to dir.
func saveExports(dir string, exports []Export) error {
	if err := os.MkdirAll(dir, directoryPermission); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	for _, e := range exports {
		if err := os.WriteFile(filepath.Join(dir, e.Filename), e.Content, filePermission); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.Filename, err)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
