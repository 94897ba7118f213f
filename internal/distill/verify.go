package distill

import (
	"fmt"
	"math"
	"math/rand"

	"irrigation/internal/features"
	"irrigation/internal/labels"
	"irrigation/internal/tree"
	"irrigation/internal/types"
)

// DefaultVerifySamples is the number of random vectors Verify draws.
const DefaultVerifySamples = 1000

// Range is the observed [Min, Max] of one feature.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ObservedRanges returns the per-feature range over examples, indexed like
// set. Features absent from examples get a zero range.
func ObservedRanges(examples []labels.Example, set []features.ID) []Range {
	out := make([]Range, len(set))
	for i, id := range set {
		r := Range{Min: math.Inf(1), Max: math.Inf(-1)}
		for _, ex := range examples {
			x := ex.Vector.Value(id)
			if x < r.Min {
				r.Min = x
			}
			if x > r.Max {
				r.Max = x
			}
		}
		if len(examples) == 0 {
			r = Range{}
		}
		out[i] = r
	}
	return out
}

// VerifyResult summarizes an equivalence check.
type VerifyResult struct {
	Samples    int `json:"samples"`
	Probes     int `json:"probes"`
	Mismatches int `json:"mismatches"`
}

// Verify checks that rs reproduces t on n vectors drawn uniformly from the
// training ranges of every feature, and on vectors placed exactly on and
// just beside every split threshold. Integral features are sampled as
// integers.
//
// Any disagreement is returned as an internal_distillation_mismatch error
// carrying the first offending vector.
func Verify(t *tree.Tree, rs *RuleSet, train []labels.Example, n int, seed int64) (*VerifyResult, error) {
	if n < 0 {
		n = 0
	}
	ranges := ObservedRanges(train, t.Features)
	rng := rand.New(rand.NewSource(seed))
	res := &VerifyResult{}

	check := func(v features.Vector) error {
		want := t.Predict(v)
		got := rs.Decide(v)
		if want == got {
			return nil
		}
		res.Mismatches++
		return types.NewAppErrorWithDetails(types.ErrCodeInternalDistillationMismatch,
			fmt.Sprintf("rule set decided %s where the tree decided %s", got, want), nil,
			map[string]any{"vector": v})
	}

	for i := 0; i < n; i++ {
		var v features.Vector
		for j, id := range t.Features {
			v.Set(id, sample(rng, id, ranges[j]))
		}
		res.Samples++
		if err := check(v); err != nil {
			return res, err
		}
	}

	// Threshold probes: the base vector sits at the range midpoints and one
	// feature is moved onto a split boundary.
	var base features.Vector
	for j, id := range t.Features {
		base.Set(id, (ranges[j].Min+ranges[j].Max)/2)
	}
	for _, node := range t.Nodes {
		if node.Leaf {
			continue
		}
		for _, x := range []float64{node.Threshold, math.Nextafter(node.Threshold, math.Inf(1)), math.Floor(node.Threshold), math.Ceil(node.Threshold)} {
			v := base
			v.Set(node.Feature, x)
			res.Probes++
			if err := check(v); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func sample(rng *rand.Rand, id features.ID, r Range) float64 {
	if !(r.Max > r.Min) {
		return r.Min
	}
	if id.Integral() {
		lo := int(math.Ceil(r.Min))
		hi := int(math.Floor(r.Max))
		if hi < lo {
			return r.Min
		}
		return float64(lo + rng.Intn(hi-lo+1))
	}
	return r.Min + rng.Float64()*(r.Max-r.Min)
}
