// Package db provides PostgreSQL-backed storage for daily observations and
// for the audit trail of distillation runs. All repositories accept a DBTX
// interface that is satisfied by both *pgxpool.Pool and pgx.Tx.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"irrigation/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
// Repositories accept this so the same code works inside or outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Schema creates the tables used by this package. Every statement is
// idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS daily_observations (
		site             TEXT NOT NULL,
		observed_on      DATE NOT NULL,
		temp_max         DOUBLE PRECISION,
		temp_min         DOUBLE PRECISION,
		temp_mean        DOUBLE PRECISION,
		precipitation_mm DOUBLE PRECISION,
		humidity_mean    DOUBLE PRECISION,
		soil_moisture    DOUBLE PRECISION,
		daylight_seconds DOUBLE PRECISION,
		PRIMARY KEY (site, observed_on)
	)`,
	`CREATE TABLE IF NOT EXISTS distill_runs (
		id                 UUID PRIMARY KEY,
		site               TEXT NOT NULL,
		started_at         TIMESTAMPTZ NOT NULL,
		finished_at        TIMESTAMPTZ NOT NULL,
		max_depth          INTEGER NOT NULL,
		test_fraction      DOUBLE PRECISION NOT NULL,
		random_seed        BIGINT NOT NULL,
		feature_set        TEXT[] NOT NULL,
		total_records      INTEGER NOT NULL,
		train_records      INTEGER NOT NULL,
		eval_records       INTEGER NOT NULL,
		accuracy           DOUBLE PRECISION NOT NULL,
		reference_accuracy DOUBLE PRECISION NOT NULL,
		tree_depth         INTEGER NOT NULL,
		leaves             INTEGER NOT NULL,
		warnings           TEXT[] NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_distill_runs_site_started ON distill_runs (site, started_at DESC)`,
}

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, db DBTX) error {
	for _, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to apply schema", err)
		}
	}
	return nil
}
