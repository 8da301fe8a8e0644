package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS payments (
	correlation_id TEXT PRIMARY KEY,
	amount         NUMERIC(14, 2) NOT NULL,
	processor      TEXT NOT NULL,
	requested_at   TIMESTAMPTZ NOT NULL,
	processed_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS payments_processed_at_idx ON payments (processed_at);
`

type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// NewPool connects to Postgres and checks the connection.
func NewPool(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("[persistence] invalid database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MinConns = min(cfg.MaxConns, 10)
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 1 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("[persistence] failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("[persistence] failed to ping database: %w", err)
	}
	return pool, nil
}

func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("[persistence] failed to create schema: %w", err)
	}
	return nil
}
