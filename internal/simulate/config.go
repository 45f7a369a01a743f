// Package simulate drives a running service with synthetic range exports and
// checks its answers against a local computation over the same shots.
package simulate

import (
	"errors"
	"fmt"
	"time"

	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
	"github.com/eerriikk-pro/sius-parse/internal/domain/relay"
)

// Defaults used by NewConfig.
const (
	DefaultBaseURL        = "http://localhost:8000"
	DefaultAthleteID      = 9001
	DefaultDays           = 20
	DefaultShotsPerDay    = 60
	DefaultSightersPerDay = 5
	DefaultBatchSize      = 8
	DefaultTimeout        = 30 * time.Second
	DefaultPollInterval   = 250 * time.Millisecond
	DefaultSettleTimeout  = 2 * time.Minute

	// MaxShotsPerDay keeps a generated day inside one calendar day.
	MaxShotsPerDay = 800
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid simulate config")

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL        string        // Base URL of the service
	AthleteID      int64         // Athlete the shots are generated for
	Days           int           // Number of consecutive days ending at End
	ShotsPerDay    int           // Match shots per day
	SightersPerDay int           // Sighters per day, fired before the match
	RelaySize      int           // Relay size the service is configured with
	Seed           uint64        // Seed for the score generator
	End            model.Date    // Last generated day; zero means today
	BatchSize      int           // Files per upload request
	Timeout        time.Duration // HTTP request timeout
	PollInterval   time.Duration // Delay between job status polls
	SettleTimeout  time.Duration // Upper bound on waiting for jobs
	OutputDir      string        // When set, generated exports are written here
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		AthleteID:      DefaultAthleteID,
		Days:           DefaultDays,
		ShotsPerDay:    DefaultShotsPerDay,
		SightersPerDay: DefaultSightersPerDay,
		RelaySize:      relay.DefaultSize,
		Seed:           1,
		BatchSize:      DefaultBatchSize,
		Timeout:        DefaultTimeout,
		PollInterval:   DefaultPollInterval,
		SettleTimeout:  DefaultSettleTimeout,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url must not be empty", ErrInvalidConfig)
	case c.AthleteID <= 0:
		return fmt.Errorf("%w: athlete id must be positive", ErrInvalidConfig)
	case c.Days < 1:
		return fmt.Errorf("%w: days must be positive", ErrInvalidConfig)
	case c.ShotsPerDay < 0 || c.SightersPerDay < 0:
		return fmt.Errorf("%w: shot counts must not be negative", ErrInvalidConfig)
	case c.ShotsPerDay+c.SightersPerDay > MaxShotsPerDay:
		return fmt.Errorf("%w: at most %d shots per day", ErrInvalidConfig, MaxShotsPerDay)
	case c.RelaySize < 1:
		return fmt.Errorf("%w: relay size must be positive", ErrInvalidConfig)
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	RunID          string
	FilesGenerated int
	ShotsGenerated int
	JobsAccepted   int
	JobsDuplicate  int
	JobsFailed     int
	ShotsInserted  int
	Retries        int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
