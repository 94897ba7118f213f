// Package tree fits and evaluates a bounded-depth binary classification tree.
//
// Nodes live in an arena (Tree.Nodes) and reference their children by index,
// so ownership is exclusive to the parent and the structure cannot contain
// cycles. A fitted Tree is never mutated.
//
// Split semantics: an internal node sends x to Left when
// x[feature] <= Threshold and to Right otherwise (including NaN).
package tree

import (
	"irrigation/internal/features"
	"irrigation/internal/types"
)

// NoChild marks the absent children of a leaf.
const NoChild = -1

// Node is one arena entry.
type Node struct {
	ID        int
	Depth     int
	Leaf      bool
	Label     types.Label // majority label; meaningful for every node
	Feature   features.ID // valid when !Leaf
	Threshold float64     // valid when !Leaf
	Left      int
	Right     int
	Samples   int
	Counts    [2]int // training examples per label routed to this node
	Impurity  float64
}

// Tree is a fitted classifier.
type Tree struct {
	Features []features.ID
	MaxDepth int
	Nodes    []Node
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return &t.Nodes[0]
}

// Node returns the node with the given id.
func (t *Tree) Node(id int) *Node {
	return &t.Nodes[id]
}

// Predict routes v from the root to a leaf and returns the leaf label.
func (t *Tree) Predict(v features.Vector) types.Label {
	n := t.Root()
	for !n.Leaf {
		if v.Value(n.Feature) <= n.Threshold {
			n = t.Node(n.Left)
		} else {
			n = t.Node(n.Right)
		}
	}
	return n.Label
}

// Decide implements features.Decider.
func (t *Tree) Decide(v features.Vector) types.Label {
	return t.Predict(v)
}

// IsDegenerate reports whether the tree consists of a single leaf.
func (t *Tree) IsDegenerate() bool {
	return len(t.Nodes) == 1 && t.Nodes[0].Leaf
}

// Depth returns the length of the longest root-to-leaf path, counted in
// splits. A single-leaf tree has depth 0.
func (t *Tree) Depth() int {
	max := 0
	for _, n := range t.Nodes {
		if n.Leaf && n.Depth > max {
			max = n.Depth
		}
	}
	return max
}

// Leaves returns the number of leaves.
func (t *Tree) Leaves() int {
	count := 0
	for _, n := range t.Nodes {
		if n.Leaf {
			count++
		}
	}
	return count
}

// UsedFeatures returns the features that appear in at least one split, in
// feature-set order.
func (t *Tree) UsedFeatures() []features.ID {
	used := make(map[features.ID]bool)
	for _, n := range t.Nodes {
		if !n.Leaf {
			used[n.Feature] = true
		}
	}
	out := make([]features.ID, 0, len(used))
	for _, id := range t.Features {
		if used[id] {
			out = append(out, id)
		}
	}
	return out
}

// Walk visits every node depth-first, left before right, starting at the root.
func (t *Tree) Walk(fn func(n *Node)) {
	var visit func(id int)
	visit = func(id int) {
		n := t.Node(id)
		fn(n)
		if !n.Leaf {
			visit(n.Left)
			visit(n.Right)
		}
	}
	visit(0)
}
