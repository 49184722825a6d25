package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	pool *pgxpool.Pool
}

type Config struct {
	URL         string
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
}

func New(ctx context.Context, cfg Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = cfg.MinConns
	if cfg.MaxConnLife > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLife
	}
	if cfg.MaxConnIdle > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdle
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS scrape_runs (
	id              UUID PRIMARY KEY,
	site            TEXT NOT NULL,
	queries         TEXT[] NOT NULL,
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL,
	collected       INTEGER NOT NULL,
	extracted       INTEGER NOT NULL,
	skipped         INTEGER NOT NULL,
	field_fallbacks INTEGER NOT NULL,
	csv_path        TEXT NOT NULL DEFAULT '',
	json_path       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS product_records (
	run_id           UUID NOT NULL REFERENCES scrape_runs(id),
	position         INTEGER NOT NULL,
	site             TEXT NOT NULL,
	search_query     TEXT NOT NULL,
	brand            TEXT NOT NULL,
	name             TEXT NOT NULL,
	product_url      TEXT NOT NULL,
	price            DOUBLE PRECISION,
	original_price   DOUBLE PRECISION,
	discount_percent DOUBLE PRECISION,
	rating           DOUBLE PRECISION,
	review_count     DOUBLE PRECISION,
	reviews          JSONB NOT NULL,
	image_urls       JSONB NOT NULL,
	sizes            JSONB NOT NULL,
	breadcrumb       TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_scrape_runs_started_at ON scrape_runs (started_at DESC);
`

// Migrate creates the archive tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Query executes a query that returns rows
func (db *DB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return db.pool.Query(ctx, sql, args...)
}

// WithTx runs fn in a transaction, committing only if fn succeeds.
func (db *DB) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
