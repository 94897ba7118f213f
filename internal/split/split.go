// Package split partitions labeled examples into a training and an
// evaluation subset.
//
// The assignment is a seeded Fisher-Yates permutation: the same seed and the
// same input order always yield the same partition, so a run that produced a
// deployed rule set can be replayed exactly during an audit.
package split

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"irrigation/internal/labels"
	"irrigation/internal/types"
)

// Defaults used when the caller does not override them.
const (
	DefaultTestFraction       = 0.2
	DefaultSeed         int64 = 42
)

// Partition is the result of Split. Both subsets keep the input order of the
// examples they contain.
type Partition struct {
	Train    []labels.Example
	Eval     []labels.Example
	TrainIdx []int
	EvalIdx  []int
}

// EvalSize returns how many of n examples are held out for evaluation:
// ceil(n*fraction), capped so that at least one example is left for training.
func EvalSize(n int, fraction float64) int {
	if n <= 0 {
		return 0
	}
	k := int(math.Ceil(float64(n) * fraction))
	if k >= n {
		k = n - 1
	}
	if k < 0 {
		k = 0
	}
	return k
}

// Split holds out a fraction of examples for evaluation.
//
// It returns an empty_dataset AppError when examples is empty and a
// validation AppError when fraction is not in (0,1).
func Split(examples []labels.Example, fraction float64, seed int64) (*Partition, error) {
	if !(fraction > 0 && fraction < 1) {
		return nil, types.NewAppError(types.ErrCodeValidationTestFraction,
			fmt.Sprintf("test fraction %v must be in (0, 1)", fraction), nil)
	}
	n := len(examples)
	if n == 0 {
		return nil, types.NewAppError(types.ErrCodeEmptyDataset, "no labeled records to split", nil)
	}

	perm := permutation(n, seed)
	k := EvalSize(n, fraction)

	evalIdx := append([]int(nil), perm[:k]...)
	trainIdx := append([]int(nil), perm[k:]...)
	sort.Ints(evalIdx)
	sort.Ints(trainIdx)

	p := &Partition{
		Train:    make([]labels.Example, len(trainIdx)),
		Eval:     make([]labels.Example, len(evalIdx)),
		TrainIdx: trainIdx,
		EvalIdx:  evalIdx,
	}
	for i, idx := range trainIdx {
		p.Train[i] = examples[idx]
	}
	for i, idx := range evalIdx {
		p.Eval[i] = examples[idx]
	}

	if len(p.Train) == 0 {
		return nil, types.NewAppError(types.ErrCodeEmptyDataset, "split produced an empty training set", nil)
	}
	return p, nil
}

// permutation returns a seeded Fisher-Yates shuffle of 0..n-1.
// math/rand's seeded Source is stable across Go releases, which keeps old
// splits reproducible.
func permutation(n int, seed int64) []int {
	rng := rand.New(rand.NewSource(seed))
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}
