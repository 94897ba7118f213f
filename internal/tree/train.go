package tree

import (
	"fmt"
	"math"
	"sort"

	"irrigation/internal/features"
	"irrigation/internal/labels"
	"irrigation/internal/types"
)

// Depth limits. Deeper trees distill into more rules than the embedded
// target can hold, so the bound is enforced rather than tuned.
const (
	DefaultMaxDepth = 5
	MaxAllowedDepth = 8
)

// minGain is the smallest impurity decrease accepted as a real improvement.
// Gains within minGain of the current best are treated as ties, which keeps
// the lower feature index and then the lower threshold.
const minGain = 1e-12

// Config controls training.
type Config struct {
	MaxDepth int
	Features []features.ID
}

// DefaultConfig returns the depth-5, six-feature configuration.
func DefaultConfig() Config {
	return Config{
		MaxDepth: DefaultMaxDepth,
		Features: append([]features.ID(nil), features.DefaultSet...),
	}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.MaxDepth < 1 || c.MaxDepth > MaxAllowedDepth {
		return types.NewAppError(types.ErrCodeValidationMaxDepth,
			fmt.Sprintf("max depth %d must be in [1, %d]", c.MaxDepth, MaxAllowedDepth), nil)
	}
	if len(c.Features) == 0 {
		return types.NewAppError(types.ErrCodeValidationFeatureSet, "feature set is empty", nil)
	}
	return nil
}

// builder holds the training matrix while the arena is grown.
type builder struct {
	cfg   Config
	rows  [][]float64
	y     []types.Label
	nodes []Node
}

// candidate is the best split found for one node.
type candidate struct {
	featIdx   int
	threshold float64
	gain      float64
}

// Train fits a tree on examples in a single recursive pass.
//
// It returns an empty_dataset AppError when examples is empty; the empty
// root is the one zero-sample node that cannot inherit a parent label.
func Train(examples []labels.Example, cfg Config) (*Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(examples) == 0 {
		return nil, types.NewAppError(types.ErrCodeEmptyDataset, "cannot fit a tree on an empty training set", nil)
	}

	b := &builder{
		cfg:  cfg,
		rows: make([][]float64, len(examples)),
		y:    make([]types.Label, len(examples)),
	}
	for i, ex := range examples {
		b.rows[i] = ex.Vector.Row(cfg.Features)
		b.y[i] = ex.Label
	}

	idx := make([]int, len(examples))
	for i := range idx {
		idx[i] = i
	}
	b.build(idx, 0, types.LabelSkip)

	return &Tree{
		Features: append([]features.ID(nil), cfg.Features...),
		MaxDepth: cfg.MaxDepth,
		Nodes:    b.nodes,
	}, nil
}

// build appends the subtree for idx and returns its root id.
func (b *builder) build(idx []int, depth int, parentLabel types.Label) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		ID:    id,
		Depth: depth,
		Left:  NoChild,
		Right: NoChild,
	})

	if len(idx) == 0 {
		// Unreached region: keep the boundary, inherit the parent's decision.
		b.nodes[id].Leaf = true
		b.nodes[id].Label = parentLabel
		return id
	}

	var counts [2]int
	for _, i := range idx {
		counts[b.y[i]]++
	}
	label := majority(counts)
	impurity := gini(counts[0], counts[1])

	b.nodes[id].Samples = len(idx)
	b.nodes[id].Counts = counts
	b.nodes[id].Label = label
	b.nodes[id].Impurity = impurity

	if depth >= b.cfg.MaxDepth || impurity == 0 || len(idx) < 2 {
		b.nodes[id].Leaf = true
		return id
	}

	best, ok := b.bestSplit(idx, impurity)
	if !ok {
		b.nodes[id].Leaf = true
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.rows[i][best.featIdx] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.nodes[id].Feature = b.cfg.Features[best.featIdx]
	b.nodes[id].Threshold = best.threshold

	leftID := b.build(left, depth+1, label)
	rightID := b.build(right, depth+1, label)
	b.nodes[id].Left = leftID
	b.nodes[id].Right = rightID
	return id
}

// bestSplit scans every feature in set order and every midpoint threshold in
// ascending order, keeping the first candidate with the largest Gini gain.
func (b *builder) bestSplit(idx []int, parentImpurity float64) (candidate, bool) {
	n := len(idx)
	order := make([]int, n)
	best := candidate{gain: 0}
	found := false

	for f := range b.cfg.Features {
		copy(order, idx)
		sort.SliceStable(order, func(i, j int) bool {
			return b.rows[order[i]][f] < b.rows[order[j]][f]
		})

		var leftCounts [2]int
		var total [2]int
		for _, i := range order {
			total[b.y[i]]++
		}

		for pos := 0; pos < n-1; pos++ {
			leftCounts[b.y[order[pos]]]++
			lo := b.rows[order[pos]][f]
			hi := b.rows[order[pos+1]][f]
			if !(lo < hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
				continue
			}

			nl := pos + 1
			nr := n - nl
			rightCounts := [2]int{total[0] - leftCounts[0], total[1] - leftCounts[1]}
			weighted := (float64(nl)*gini(leftCounts[0], leftCounts[1]) +
				float64(nr)*gini(rightCounts[0], rightCounts[1])) / float64(n)
			gain := parentImpurity - weighted

			if gain > best.gain+minGain {
				best = candidate{featIdx: f, threshold: midpoint(lo, hi), gain: gain}
				found = true
			}
		}
	}
	return best, found
}

// midpoint returns a threshold t with lo <= t < hi.
func midpoint(lo, hi float64) float64 {
	t := lo/2 + hi/2
	if t >= hi || t < lo {
		return lo
	}
	return t
}

// gini returns the Gini impurity of a two-class count.
func gini(c0, c1 int) float64 {
	n := c0 + c1
	if n == 0 {
		return 0
	}
	p0 := float64(c0) / float64(n)
	p1 := float64(c1) / float64(n)
	return 1 - p0*p0 - p1*p1
}

// majority returns the label with more examples; ties resolve to LabelSkip.
func majority(counts [2]int) types.Label {
	if counts[types.LabelIrrigate] > counts[types.LabelSkip] {
		return types.LabelIrrigate
	}
	return types.LabelSkip
}
