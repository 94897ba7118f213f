package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"irrigation/internal/dataset"
	"irrigation/internal/distill"
	"irrigation/internal/evaluate"
	"irrigation/internal/features"
	"irrigation/internal/labels"
	"irrigation/internal/publish"
	"irrigation/internal/tree"
	"irrigation/internal/types"
)

// Artifact names written by Report.Artifacts.
const (
	ArtifactReport    = "report.json"
	ArtifactText      = "rules.txt"
	ArtifactC         = "should_irrigate.h"
	ArtifactReference = "reference_rule.h"
	ArtifactGo        = "irrigationrule.go"
	ArtifactJSON      = "rules.json"
)

// Report is the outcome of a successful run.
type Report struct {
	RunID      string    `json:"run_id"`
	Site       string    `json:"site"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Config     Config    `json:"config"`

	Records      dataset.CleanStats `json:"records"`
	TotalRecords int                `json:"total_records"`
	TrainRecords int                `json:"train_records"`
	EvalRecords  int                `json:"eval_records"`
	Balance      labels.Balance     `json:"balance"`

	Model     evaluate.Result `json:"model"`
	Reference evaluate.Result `json:"reference"`

	TreeDepth    int                   `json:"tree_depth"`
	Leaves       int                   `json:"leaves"`
	UsedFeatures []features.ID         `json:"used_features"`
	Verification *distill.VerifyResult `json:"verification"`

	Warnings []*types.AppError `json:"warnings"`

	Tree  *tree.Tree       `json:"-"`
	Rules *distill.RuleSet `json:"-"`
}

// Accuracy is the tree's accuracy on the evaluation set.
func (r *Report) Accuracy() float64 { return r.Model.Accuracy }

// HasWarning reports whether a warning with code is attached.
func (r *Report) HasWarning(code types.ErrorCode) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// Summary returns the audit record of the run.
func (r *Report) Summary() *types.RunSummary {
	warnings := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		warnings[i] = string(w.Code)
	}
	return &types.RunSummary{
		RunID:             r.RunID,
		Site:              r.Site,
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
		MaxDepth:          r.Config.MaxDepth,
		TestFraction:      r.Config.TestFraction,
		RandomSeed:        r.Config.RandomSeed,
		FeatureSet:        r.Config.featureNames(),
		TotalRecords:      r.TotalRecords,
		TrainRecords:      r.TrainRecords,
		EvalRecords:       r.EvalRecords,
		Accuracy:          r.Model.Accuracy,
		ReferenceAccuracy: r.Reference.Accuracy,
		TreeDepth:         r.TreeDepth,
		Leaves:            r.Leaves,
		Warnings:          warnings,
	}
}

// Artifacts renders the rule set in each requested format plus the JSON
// report. Asking for C also emits the reference rule as C so both functions
// ship side by side.
func (r *Report) Artifacts(formats []distill.Format) ([]publish.Artifact, error) {
	if r.Rules == nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "report has no rule set", nil)
	}

	report, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	out := []publish.Artifact{{Name: ArtifactReport, ContentType: "application/json", Body: append(report, '\n')}}

	seen := make(map[distill.Format]bool, len(formats))
	for _, f := range formats {
		if seen[f] {
			continue
		}
		seen[f] = true

		body, err := distill.Render(r.Rules, f)
		if err != nil {
			return nil, err
		}
		switch f {
		case distill.FormatText:
			out = append(out, publish.Artifact{Name: ArtifactText, ContentType: "text/plain; charset=utf-8", Body: []byte(body)})
		case distill.FormatC:
			out = append(out,
				publish.Artifact{Name: ArtifactC, ContentType: "text/x-c", Body: []byte(body)},
				publish.Artifact{Name: ArtifactReference, ContentType: "text/x-c", Body: []byte(distill.ReferenceC)},
			)
		case distill.FormatGo:
			out = append(out, publish.Artifact{Name: ArtifactGo, ContentType: "text/x-go", Body: []byte(body)})
		case distill.FormatJSON:
			out = append(out, publish.Artifact{Name: ArtifactJSON, ContentType: "application/json", Body: []byte(body)})
		}
	}
	return out, nil
}

// Text renders the console summary of the run.
func (r *Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s (%s)\n", r.RunID, r.Site)
	fmt.Fprintf(&b, "records: %d total, %d train, %d eval (%d dropped as incomplete)\n",
		r.TotalRecords, r.TrainRecords, r.EvalRecords, r.Records.Dropped)
	fmt.Fprintf(&b, "labels: %d irrigate, %d skip\n", r.Balance.Irrigate, r.Balance.Skip)
	fmt.Fprintf(&b, "tree: depth %d, %d leaves\n", r.TreeDepth, r.Leaves)
	fmt.Fprintf(&b, "accuracy: %.4f (%d/%d)\n", r.Model.Accuracy, r.Model.Correct, r.Model.Total)
	fmt.Fprintf(&b, "reference rule accuracy: %.4f (%d/%d)\n", r.Reference.Accuracy, r.Reference.Correct, r.Reference.Total)
	if r.Verification != nil {
		fmt.Fprintf(&b, "verified: %d samples, %d threshold probes\n", r.Verification.Samples, r.Verification.Probes)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w.Error())
	}
	if r.Rules != nil {
		if text, err := distill.RenderText(r.Rules); err == nil {
			b.WriteString("\n")
			b.WriteString(text)
		}
	}
	return b.String()
}
