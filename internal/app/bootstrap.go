package service

import (
	"context"
	"fmt"

	"github.com/eerriikk-pro/sius-parse/internal/adapters/repository"
	"github.com/eerriikk-pro/sius-parse/internal/config"
)

// OpenStore opens the shot store selected by cfg.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Storage {
	case config.StorageSQLite:
		store, err := repository.OpenSQLite(ctx, cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case config.StorageMemory, "":
		return repository.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage %q", config.ErrInvalidConfig, cfg.Storage)
	}
}

// FromConfig opens the configured store and builds a Service around it.
// Extra options are applied after the configured ones.
func FromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	base := []Option{
		WithStore(store),
		WithWorkerCount(cfg.ImportWorkerCount),
		WithQueueSize(cfg.ImportQueueSize),
		WithDedupeSize(cfg.DedupeSize),
		WithRelaySize(cfg.RelaySize),
	}
	return New(append(base, opts...)...), nil
}
