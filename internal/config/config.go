// Package config defines service configuration and its defaults.
//
// Values are layered by Load: defaults from New, then an optional YAML file,
// then SIUS_* environment variables.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`
	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`
	// Storage selects the shot store backend: memory or sqlite.
	Storage string `koanf:"storage"`
	// DBPath is the SQLite database file used when Storage is sqlite.
	DBPath string `koanf:"db_path"`
	// RelaySize is the number of match shots per relay.
	RelaySize int `koanf:"relay_size"`
	// DefaultWindowDays is used when a request omits its window.
	DefaultWindowDays int `koanf:"default_window_days"`
	// MaxWindowDays caps ?days and ?period.
	MaxWindowDays int `koanf:"max_window_days"`
	// ImportQueueSize bounds the number of pending import jobs.
	ImportQueueSize int `koanf:"import_queue_size"`
	// ImportWorkerCount sets the number of import workers.
	ImportWorkerCount int `koanf:"import_worker_count"`
	// DedupeSize bounds the number of remembered upload hashes.
	DedupeSize int `koanf:"dedupe_size"`
	// MaxUploadBytes caps a multipart import request body.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":8000",
		Storage:           StorageMemory,
		DBPath:            "sius.db",
		RelaySize:         60,
		DefaultWindowDays: 10,
		MaxWindowDays:     366,
		ImportQueueSize:   1_000,
		ImportWorkerCount: runtime.NumCPU(),
		DedupeSize:        10_000,
		MaxUploadBytes:    32 << 20,
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Storage != StorageMemory && c.Storage != StorageSQLite:
		return fmt.Errorf("%w: unknown storage %q", ErrInvalidConfig, c.Storage)
	case c.Storage == StorageSQLite && strings.TrimSpace(c.DBPath) == "":
		return fmt.Errorf("%w: db_path must not be empty for sqlite storage", ErrInvalidConfig)
	case c.RelaySize < 1:
		return fmt.Errorf("%w: relay_size must be positive", ErrInvalidConfig)
	case c.DefaultWindowDays < 1 || c.MaxWindowDays < 1:
		return fmt.Errorf("%w: window days must be positive", ErrInvalidConfig)
	case c.DefaultWindowDays > c.MaxWindowDays:
		return fmt.Errorf("%w: default_window_days exceeds max_window_days", ErrInvalidConfig)
	case c.MaxUploadBytes < 1:
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalidConfig)
	}
	return nil
}
