package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-storefront-bot/internal/config"
	"telegram-storefront-bot/internal/infra/metrics"
)

//go:embed migrations.sql
var schema string

// Connect opens a pool from cfg.URL and applies the schema.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.ConnectConfig(cctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate applies the embedded schema. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// ReportPoolStats publishes the pool gauges.
func ReportPoolStats(pool *pgxpool.Pool) {
	st := pool.Stat()
	metrics.SetRecipientStorePool("postgres", int(st.TotalConns()), int(st.IdleConns()), int(st.AcquiredConns()), st.EmptyAcquireCount())
}
