// Package database builds the shared pgxpool.Pool used by every pgsql
// repository.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPgxPool parses dsn, applies pool sizing defaults suited to a
// request-scoped web service, and optionally pings the database before
// returning so startup fails fast on bad connection strings.
func NewPgxPool(ctx context.Context, dsn string, healthCheck bool) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database: empty connection string")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("database: parse connection string: %w", err)
	}

	if cfg.MaxConns == 0 {
		cfg.MaxConns = 20
	}
	if cfg.MinConns == 0 {
		cfg.MinConns = 2
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database: create pool: %w", err)
	}

	if healthCheck {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("database: ping: %w", err)
		}
	}

	return pool, nil
}
