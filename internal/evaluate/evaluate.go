// Package evaluate scores a decision procedure against labeled examples.
package evaluate

import (
	"irrigation/internal/features"
	"irrigation/internal/labels"
)

// Result is the outcome of scoring one Decider.
type Result struct {
	Accuracy float64 `json:"accuracy"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
}

// Evaluate counts the examples whose decision equals the synthesized label.
// An empty example set scores 0 with Total 0; the caller decides what that
// means for the run.
func Evaluate(d features.Decider, examples []labels.Example) Result {
	r := Result{Total: len(examples)}
	for _, ex := range examples {
		if d.Decide(ex.Vector) == ex.Label {
			r.Correct++
		}
	}
	if r.Total > 0 {
		r.Accuracy = float64(r.Correct) / float64(r.Total)
	}
	return r
}

// Accuracy returns Evaluate(d, examples).Accuracy.
func Accuracy(d features.Decider, examples []labels.Example) float64 {
	return Evaluate(d, examples).Accuracy
}

// Disagreements returns the indexes of examples where d disagrees with the
// synthesized label.
func Disagreements(d features.Decider, examples []labels.Example) []int {
	var out []int
	for i, ex := range examples {
		if d.Decide(ex.Vector) != ex.Label {
			out = append(out, i)
		}
	}
	return out
}
