// Package distill converts a fitted tree into an ordered list of threshold
// rules that an embedded controller can evaluate without a model runtime,
// and keeps the hand-authored reference rule alongside it as a separate
// decision procedure.
//
// Distill is a syntactic transformation: one Rule per leaf, listed in
// depth-first order with the "<=" branch before the ">" branch. Evaluating
// the rules in order and returning the first one whose conditions all hold
// reproduces the tree's prediction for every input, including inputs far
// outside the training data.
package distill

import (
	"fmt"
	"strings"

	"irrigation/internal/features"
	"irrigation/internal/tree"
	"irrigation/internal/types"
)

// Op is the comparison direction of a condition.
type Op int

const (
	// OpLE holds when x <= threshold.
	OpLE Op = iota
	// OpGT holds when x > threshold, or when x is NaN.
	OpGT
)

// String returns the operator as written in rule listings.
func (o Op) String() string {
	if o == OpGT {
		return ">"
	}
	return "<="
}

// MarshalText encodes the operator as written in rule listings.
func (o Op) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText accepts "<=" or ">".
func (o *Op) UnmarshalText(b []byte) error {
	switch string(b) {
	case "<=":
		*o = OpLE
	case ">":
		*o = OpGT
	default:
		return fmt.Errorf("unknown operator %q", b)
	}
	return nil
}

// Condition is a single threshold predicate on one feature.
type Condition struct {
	Feature   features.ID `json:"feature"`
	Op        Op          `json:"op"`
	Threshold float64     `json:"threshold"`
}

// Holds evaluates the condition. OpGT is the exact complement of OpLE so
// that NaN follows the tree's right branch.
func (c Condition) Holds(v features.Vector) bool {
	le := v.Value(c.Feature) <= c.Threshold
	if c.Op == OpLE {
		return le
	}
	return !le
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Feature.Name(), c.Op, formatThreshold(c.Threshold))
}

// Rule is one root-to-leaf path and the decision at its leaf.
type Rule struct {
	Conditions []Condition `json:"conditions"`
	Label      types.Label `json:"label"`
	// Samples is the number of training examples that reached the leaf.
	// Zero marks an unreached region whose label was inherited.
	Samples int `json:"samples"`
}

// Matches reports whether every condition holds for v.
func (r Rule) Matches(v features.Vector) bool {
	for _, c := range r.Conditions {
		if !c.Holds(v) {
			return false
		}
	}
	return true
}

func (r Rule) String() string {
	if len(r.Conditions) == 0 {
		return fmt.Sprintf("always -> %s", r.Label)
	}
	parts := make([]string, len(r.Conditions))
	for i, c := range r.Conditions {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s -> %s", strings.Join(parts, " AND "), r.Label)
}

// RuleSet is the exported decision procedure. It holds no reference to the
// tree it was distilled from.
type RuleSet struct {
	Features []features.ID `json:"features"`
	MaxDepth int           `json:"max_depth"`
	Rules    []Rule        `json:"rules"`
}

// Distill walks t and emits one rule per leaf.
func Distill(t *tree.Tree) (*RuleSet, error) {
	if t == nil || len(t.Nodes) == 0 {
		return nil, types.NewAppError(types.ErrCodeEmptyDataset, "cannot distill an empty tree", nil)
	}

	rs := &RuleSet{
		Features: append([]features.ID(nil), t.Features...),
		MaxDepth: t.MaxDepth,
	}

	var path []Condition
	var visit func(id int)
	visit = func(id int) {
		n := t.Node(id)
		if n.Leaf {
			rs.Rules = append(rs.Rules, Rule{
				Conditions: append([]Condition(nil), path...),
				Label:      n.Label,
				Samples:    n.Samples,
			})
			return
		}
		path = append(path, Condition{Feature: n.Feature, Op: OpLE, Threshold: n.Threshold})
		visit(n.Left)
		path[len(path)-1].Op = OpGT
		visit(n.Right)
		path = path[:len(path)-1]
	}
	visit(0)

	return rs, nil
}

// Decide returns the label of the first matching rule. A well-formed rule
// set always matches; LabelSkip is returned otherwise.
func (rs *RuleSet) Decide(v features.Vector) types.Label {
	for _, r := range rs.Rules {
		if r.Matches(v) {
			return r.Label
		}
	}
	return types.LabelSkip
}

// MaxPathLength returns the number of conditions in the longest rule.
func (rs *RuleSet) MaxPathLength() int {
	max := 0
	for _, r := range rs.Rules {
		if len(r.Conditions) > max {
			max = len(r.Conditions)
		}
	}
	return max
}

// IsConstant reports whether the rule set makes the same decision for every
// input.
func (rs *RuleSet) IsConstant() bool {
	if len(rs.Rules) == 0 {
		return false
	}
	for _, r := range rs.Rules[1:] {
		if r.Label != rs.Rules[0].Label {
			return false
		}
	}
	return true
}
