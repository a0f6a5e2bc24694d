package transform

import (
	"fmt"
	"slices"
)

// Direction says which side of a normalization node absorbs it.
type Direction string

const (
	// Backward folds into the affine producer's output channels.
	Backward Direction = "backward"
	// Forward folds into the affine consumer's input channels.
	Forward Direction = "forward"
)

// ChannelSlice is a half-open range [Start, End) of normalization channels.
type ChannelSlice struct {
	Start int `json:"start" msgpack:"start"`
	End   int `json:"end" msgpack:"end"`
}

// Width returns End - Start.
func (s ChannelSlice) Width() int { return s.End - s.Start }

func (s ChannelSlice) String() string { return fmt.Sprintf("[%d,%d)", s.Start, s.End) }

// Reason explains why a normalization node was left in place.
type Reason string

const (
	// NoReachableAffineNode means neither walk found an affine layer.
	NoReachableAffineNode Reason = "NoReachableAffineNode"
	// AmbiguousBranching means a fan-out or fan-in sits between the node
	// and its candidate, so folding would change other readers.
	AmbiguousBranching Reason = "AmbiguousBranching"
	// ShapeAlteringPathBlocked means an op that changes the channel layout
	// (or whose layout is unknown) sits on every path.
	ShapeAlteringPathBlocked Reason = "ShapeAlteringPathBlocked"
	// NonlinearPathBlocked means a nonlinear activation sits between the
	// node and its candidate.
	NonlinearPathBlocked Reason = "NonlinearPathBlocked"
	// UnsafePadding means the only candidate is a same-padded spatial
	// convolution downstream, where border outputs would change.
	UnsafePadding Reason = "UnsafePadding"
)

// precedence orders reasons when both directions fail; higher wins.
func (r Reason) precedence() int {
	switch r {
	case AmbiguousBranching:
		return 5
	case NonlinearPathBlocked:
		return 4
	case UnsafePadding:
		return 3
	case ShapeAlteringPathBlocked:
		return 2
	case NoReachableAffineNode:
		return 1
	}
	return 0
}

// worse returns whichever of a and b takes precedence.
func worse(a, b Reason) Reason {
	if b.precedence() > a.precedence() {
		return b
	}
	return a
}

// FoldPlan describes how one normalization node (or one channel slice of
// it) is absorbed.
//
// Backward plans name Roots, forward plans name Leaves. Slice is set only
// for plans produced from a concatenation branch.
type FoldPlan struct {
	NormalizationID string        `json:"normalization_id" msgpack:"normalization_id"`
	Roots           []string      `json:"roots,omitempty" msgpack:"roots,omitempty"`
	Leaves          []string      `json:"leaves,omitempty" msgpack:"leaves,omitempty"`
	Direction       Direction     `json:"direction" msgpack:"direction"`
	Slice           *ChannelSlice `json:"slice,omitempty" msgpack:"slice,omitempty"`
}

// Targets returns the affine nodes the plan rewrites.
func (p FoldPlan) Targets() []string {
	if p.Direction == Forward {
		return p.Leaves
	}
	return p.Roots
}

func newPlan(normID string, dir Direction, targets []string, slice *ChannelSlice) FoldPlan {
	targets = slices.Clone(targets)
	slices.Sort(targets)
	p := FoldPlan{NormalizationID: normID, Direction: dir, Slice: slice}
	if dir == Forward {
		p.Leaves = targets
	} else {
		p.Roots = targets
	}
	return p
}

// NotFolded records a normalization node (or one branch of it) that was
// left in the graph.
type NotFolded struct {
	NodeID string        `json:"node_id" msgpack:"node_id"`
	Reason Reason        `json:"reason" msgpack:"reason"`
	Branch string        `json:"branch,omitempty" msgpack:"branch,omitempty"`
	Slice  *ChannelSlice `json:"slice,omitempty" msgpack:"slice,omitempty"`
}

// Report summarizes a folding pass.
//
// FoldedCount counts removed normalization nodes. Every normalization node
// of the input is either counted there or named by at least one NotFolded
// entry; a concatenation-fed node may appear once per failing branch.
type Report struct {
	FoldedCount int         `json:"folded_count" msgpack:"folded_count"`
	NotFolded   []NotFolded `json:"not_folded" msgpack:"not_folded"`
	Plans       []FoldPlan  `json:"plans" msgpack:"plans"`
	Rounds      int         `json:"rounds" msgpack:"rounds"`
}

// NotFoldedIDs returns the distinct node IDs in NotFolded, in report order.
func (r *Report) NotFoldedIDs() []string {
	var ids []string
	seen := make(map[string]bool)
	for _, nf := range r.NotFolded {
		if !seen[nf.NodeID] {
			seen[nf.NodeID] = true
			ids = append(ids, nf.NodeID)
		}
	}
	return ids
}

// ReasonCounts tallies NotFolded entries by reason.
func (r *Report) ReasonCounts() map[Reason]int {
	counts := make(map[Reason]int)
	for _, nf := range r.NotFolded {
		counts[nf.Reason]++
	}
	return counts
}
