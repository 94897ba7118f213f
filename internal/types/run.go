package types

import "time"

// RunSummary is the audit record of one distillation run: configuration,
// dataset sizes, scores and warning codes. It never carries the model.
type RunSummary struct {
	RunID             string    `json:"run_id" db:"id"`
	Site              string    `json:"site" db:"site"`
	StartedAt         time.Time `json:"started_at" db:"started_at"`
	FinishedAt        time.Time `json:"finished_at" db:"finished_at"`
	MaxDepth          int       `json:"max_depth" db:"max_depth"`
	TestFraction      float64   `json:"test_fraction" db:"test_fraction"`
	RandomSeed        int64     `json:"random_seed" db:"random_seed"`
	FeatureSet        []string  `json:"feature_set" db:"feature_set"`
	TotalRecords      int       `json:"total_records" db:"total_records"`
	TrainRecords      int       `json:"train_records" db:"train_records"`
	EvalRecords       int       `json:"eval_records" db:"eval_records"`
	Accuracy          float64   `json:"accuracy" db:"accuracy"`
	ReferenceAccuracy float64   `json:"reference_accuracy" db:"reference_accuracy"`
	TreeDepth         int       `json:"tree_depth" db:"tree_depth"`
	Leaves            int       `json:"leaves" db:"leaves"`
	Warnings          []string  `json:"warnings" db:"warnings"`
}
