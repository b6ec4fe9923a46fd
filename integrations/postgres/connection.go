// Package postgres stores merged account bundles in PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// DB holds the connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Connect opens a pool sized by postgres.max_conns and checks it with a ping.
func Connect(ctx context.Context, connString string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if n := viper.GetInt32("postgres.max_conns"); n > 0 {
		cfg.MaxConns = n
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Debug().Str("host", cfg.ConnConfig.Host).Str("database", cfg.ConnConfig.Database).Int32("max_conns", cfg.MaxConns).Msg("connected")
	return &DB{Pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}
