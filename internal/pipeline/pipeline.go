// Package pipeline runs one distillation end to end: load the daily records,
// derive and label them, split, train the tree, score it against the label
// rule and the reference rule, distill it into rules and verify the rules
// reproduce the tree.
//
// The run is synchronous and holds no state between calls. Fatal conditions
// are returned as *types.AppError and leave no partial report; quality
// problems are attached to the report as warnings.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"irrigation/internal/dataset"
	"irrigation/internal/distill"
	"irrigation/internal/evaluate"
	"irrigation/internal/labels"
	"irrigation/internal/split"
	"irrigation/internal/tree"
	"irrigation/internal/types"
)

// Runner executes distillation runs.
type Runner struct {
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock overrides the time source used for run timestamps.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithIDGenerator overrides how run IDs are minted.
func WithIDGenerator(fn func() string) RunnerOption {
	return func(r *Runner) { r.newID = fn }
}

// NewRunner creates a Runner. A nil logger falls back to slog.Default().
func NewRunner(logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes a distillation with the default Runner.
func Run(ctx context.Context, src types.RecordSource, cfg Config) (*Report, error) {
	return NewRunner(nil).Run(ctx, src, cfg)
}

// Run loads records from src and distills a rule set under cfg.
func (r *Runner) Run(ctx context.Context, src types.RecordSource, cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rep := &Report{
		RunID:     r.newID(),
		Site:      cfg.Site,
		StartedAt: r.now(),
		Config:    cfg,
	}
	ctx = types.WithRunID(ctx, rep.RunID)
	logger := r.logger.With("run_id", rep.RunID, "site", cfg.Site)
	ctx = types.WithLogger(ctx, logger)

	table, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	obs, stats, err := dataset.Clean(table)
	if err != nil {
		return nil, err
	}
	rep.Records = stats
	if stats.Dropped > 0 {
		logger.InfoContext(ctx, "dropped incomplete records", "dropped", stats.Dropped, "kept", stats.Kept)
	}

	examples := labels.Build(obs)
	rep.TotalRecords = len(examples)
	rep.Balance = labels.Count(examples)

	part, err := split.Split(examples, cfg.TestFraction, cfg.RandomSeed)
	if err != nil {
		return nil, err
	}
	rep.TrainRecords = len(part.Train)
	rep.EvalRecords = len(part.Eval)

	t, err := tree.Train(part.Train, cfg.treeConfig())
	if err != nil {
		return nil, err
	}
	rep.Tree = t
	rep.TreeDepth = t.Depth()
	rep.Leaves = t.Leaves()
	rep.UsedFeatures = t.UsedFeatures()

	rep.Model = evaluate.Evaluate(t, part.Eval)
	rep.Reference = evaluate.Evaluate(distill.ReferenceRule, part.Eval)

	rs, err := distill.Distill(t)
	if err != nil {
		return nil, err
	}
	verified, err := distill.Verify(t, rs, part.Train, cfg.VerifySamples, cfg.RandomSeed)
	if err != nil {
		logger.ErrorContext(ctx, "distilled rules disagree with the tree", "error", err)
		return nil, err
	}
	rep.Rules = rs
	rep.Verification = verified

	rep.Warnings = qualityWarnings(t, rep, cfg)
	for _, w := range rep.Warnings {
		attrs := []any{"code", string(w.Code), "message", w.Message}
		for k, v := range w.Details {
			attrs = append(attrs, k, v)
		}
		logger.WarnContext(ctx, "distillation warning", attrs...)
	}

	rep.FinishedAt = r.now()
	logger.InfoContext(ctx, "distillation run complete",
		"records", rep.TotalRecords,
		"train", rep.TrainRecords,
		"eval", rep.EvalRecords,
		"accuracy", rep.Model.Accuracy,
		"reference_accuracy", rep.Reference.Accuracy,
		"depth", rep.TreeDepth,
		"rules", len(rs.Rules),
		"warnings", len(rep.Warnings),
	)
	return rep, nil
}

// qualityWarnings returns the degenerate_tree and low_accuracy warnings that
// apply to a finished run.
func qualityWarnings(t *tree.Tree, rep *Report, cfg Config) []*types.AppError {
	var out []*types.AppError
	if t.IsDegenerate() {
		label := t.Root().Label
		out = append(out, types.NewAppErrorWithDetails(types.ErrCodeDegenerateTree,
			fmt.Sprintf("tree is a single leaf; every input decides %s", label), nil,
			map[string]any{"label": int(label)}))
	}

	switch {
	case rep.Model.Total == 0:
		out = append(out, types.NewAppErrorWithDetails(types.ErrCodeLowAccuracy,
			"evaluation set is empty; accuracy is reported as 0", nil,
			map[string]any{"eval_records": 0, "threshold": cfg.AccuracyThreshold}))
	case rep.Model.Accuracy < cfg.AccuracyThreshold:
		out = append(out, types.NewAppErrorWithDetails(types.ErrCodeLowAccuracy,
			fmt.Sprintf("accuracy %.4f is below threshold %.4f", rep.Model.Accuracy, cfg.AccuracyThreshold), nil,
			map[string]any{"accuracy": rep.Model.Accuracy, "threshold": cfg.AccuracyThreshold}))
	}
	return out
}
