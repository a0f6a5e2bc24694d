package transform

import (
	"github.com/matzehuels/bnfold/pkg/dag"
	"github.com/matzehuels/bnfold/pkg/errors"
)

// expandBranches splits a normalization node fed by a concatenation into
// one backward plan per branch, each owning a contiguous channel slice.
//
// The node folds only when every branch yields a plan. Otherwise failed
// lists one entry per failing branch and plans must be ignored.
func expandBranches(g *dag.Graph, n, concat *dag.Node) (plans []FoldPlan, failed []NotFolded, err error) {
	if reason := concatReason(g, concat); reason != "" {
		return nil, []NotFolded{{NodeID: n.ID, Reason: reason}}, nil
	}
	width := g.Channels(concat.ID)
	if width == 0 {
		return nil, []NotFolded{{NodeID: n.ID, Reason: ShapeAlteringPathBlocked}}, nil
	}
	if err := checkWidth(n, width, "concatenation "+concat.ID); err != nil {
		return nil, nil, err
	}
	b := &branchExpander{g: g, norm: n}
	b.expand(concat, 0)
	return b.plans, b.failed, nil
}

// concatReason returns "" when concat can be split into branches.
func concatReason(g *dag.Graph, concat *dag.Node) Reason {
	if !concat.ConcatenatesChannels() {
		return ShapeAlteringPathBlocked
	}
	if g.OutDegree(concat.ID) != 1 {
		return AmbiguousBranching
	}
	return ""
}

type branchExpander struct {
	g      *dag.Graph
	norm   *dag.Node
	plans  []FoldPlan
	failed []NotFolded
}

// expand walks the inputs of concat, assigning each the slice that starts
// at offset. Nested channel concatenations are flattened.
func (b *branchExpander) expand(concat *dag.Node, offset int) {
	for _, in := range concat.Inputs {
		w := b.g.Channels(in)
		slice := &ChannelSlice{Start: offset, End: offset + w}
		offset += w

		branch, _ := b.g.Node(in)
		if branch.IsConcatenate() {
			if reason := concatReason(b.g, branch); reason != "" {
				b.fail(in, reason, slice)
				continue
			}
			b.expand(branch, slice.Start)
			continue
		}

		f := b.g.WalkBackwardFrom(in, isAffine, isPassThrough)
		if reason := backwardReason(b.g, f); reason != "" {
			b.fail(in, reason, slice)
			continue
		}
		root, _ := b.g.Node(f.Nodes[0])
		if root.Weight(dag.RoleKernel).Dim(-1) != w {
			b.fail(in, ShapeAlteringPathBlocked, slice)
			continue
		}
		b.plans = append(b.plans, newPlan(b.norm.ID, Backward, f.Nodes, slice))
	}
}

func (b *branchExpander) fail(branch string, reason Reason, slice *ChannelSlice) {
	b.failed = append(b.failed, NotFolded{NodeID: b.norm.ID, Reason: reason, Branch: branch, Slice: slice})
}

// sliceBounds validates a plan slice against a channel count c.
func sliceBounds(p FoldPlan, c int) (start, end int, err error) {
	if p.Slice == nil {
		return 0, c, nil
	}
	if p.Slice.Start < 0 || p.Slice.End > c || p.Slice.Start > p.Slice.End {
		return 0, 0, errors.New(errors.ErrCodeShapeMismatch,
			"slice %v out of range for %d channels of %q", p.Slice, c, p.NormalizationID)
	}
	return p.Slice.Start, p.Slice.End, nil
}
