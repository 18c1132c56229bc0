// Package db opens the configured recipient store.
package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-storefront-bot/internal/config"
	"telegram-storefront-bot/internal/domain/ports/repository"
	"telegram-storefront-bot/internal/infra/db/postgres"
	"telegram-storefront-bot/internal/infra/db/sqlite"
)

// Backend bundles the repositories of one store. Snapshots is nil when the
// store cannot produce a file copy of itself.
type Backend struct {
	Driver     string
	Recipients repository.RecipientRepository
	Tx         repository.TransactionManager
	Snapshots  repository.Snapshotter
	PoolStats  func()
	Close      func()
}

// Open connects to the store named by cfg.Driver and migrates its schema.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zerolog.Logger) (*Backend, error) {
	switch cfg.Driver {
	case "sqlite", "":
		store, err := sqlite.Open(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return &Backend{
			Driver:     "sqlite",
			Recipients: sqlite.NewRecipientRepo(store.DB()),
			Tx:         sqlite.NewTxManager(store.DB()),
			Snapshots:  store,
			PoolStats:  store.ReportPoolStats,
			Close:      func() { _ = store.Close() },
		}, nil

	case "postgres":
		pool, err := postgres.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return &Backend{
			Driver:     "postgres",
			Recipients: postgres.NewRecipientRepo(pool),
			Tx:         postgres.NewTxManager(pool),
			PoolStats:  func() { postgres.ReportPoolStats(pool) },
			Close:      pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
