package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"irrigation/internal/types"
)

// RunRepository persists RunSummary rows in distill_runs.
type RunRepository struct {
	db DBTX
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db DBTX) *RunRepository {
	return &RunRepository{db: db}
}

// Insert records a finished run.
func (r *RunRepository) Insert(ctx context.Context, s *types.RunSummary) error {
	warnings := s.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO distill_runs (
			id, site, started_at, finished_at, max_depth, test_fraction,
			random_seed, feature_set, total_records, train_records, eval_records,
			accuracy, reference_accuracy, tree_depth, leaves, warnings
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		s.RunID, s.Site, s.StartedAt, s.FinishedAt, s.MaxDepth, s.TestFraction,
		s.RandomSeed, s.FeatureSet, s.TotalRecords, s.TrainRecords, s.EvalRecords,
		s.Accuracy, s.ReferenceAccuracy, s.TreeDepth, s.Leaves, warnings,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert run summary", err)
	}
	return nil
}

// Latest returns the most recent run for site, or nil when there is none.
func (r *RunRepository) Latest(ctx context.Context, site string) (*types.RunSummary, error) {
	var s types.RunSummary
	err := r.db.QueryRow(ctx, `
		SELECT id::text, site, started_at, finished_at, max_depth, test_fraction,
		       random_seed, feature_set, total_records, train_records, eval_records,
		       accuracy, reference_accuracy, tree_depth, leaves, warnings
		FROM distill_runs
		WHERE site = $1
		ORDER BY started_at DESC
		LIMIT 1`, site,
	).Scan(
		&s.RunID, &s.Site, &s.StartedAt, &s.FinishedAt, &s.MaxDepth, &s.TestFraction,
		&s.RandomSeed, &s.FeatureSet, &s.TotalRecords, &s.TrainRecords, &s.EvalRecords,
		&s.Accuracy, &s.ReferenceAccuracy, &s.TreeDepth, &s.Leaves, &s.Warnings,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load latest run", err)
	}
	return &s, nil
}
