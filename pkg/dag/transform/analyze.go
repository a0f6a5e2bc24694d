package transform

import (
	"github.com/matzehuels/bnfold/pkg/dag"
	"github.com/matzehuels/bnfold/pkg/errors"
)

// Analysis is the outcome of classifying every normalization node of a
// graph once. It does not modify the graph.
type Analysis struct {
	Plans     []FoldPlan
	NotFolded []NotFolded
}

// Folded returns the number of distinct normalization nodes with plans.
func (a *Analysis) Folded() int {
	seen := make(map[string]bool)
	for _, p := range a.Plans {
		seen[p.NormalizationID] = true
	}
	return len(seen)
}

// Analyze classifies every normalization node of g, in topological order.
//
// A node fed by a channel concatenation is split into one backward plan
// per branch, and folds only when every branch does. Any other node is
// folded backward into its affine producer when possible, otherwise
// forward into its affine consumer. When both directions are possible,
// backward wins.
//
// Analyze returns FOLD_SHAPE_MISMATCH when concatenation branch widths
// are known but do not add up to the normalization width.
func Analyze(g *dag.Graph) (*Analysis, error) {
	a := &Analysis{}
	for _, n := range g.NodesOfKind(dag.KindNormalization) {
		producer, _ := g.Node(n.Inputs[0])
		if producer.IsConcatenate() {
			plans, failed, err := expandBranches(g, n, producer)
			if err != nil {
				return nil, err
			}
			if len(failed) > 0 {
				a.NotFolded = append(a.NotFolded, failed...)
				continue
			}
			a.Plans = append(a.Plans, plans...)
			continue
		}

		plan, reason := classify(g, n)
		if plan != nil {
			a.Plans = append(a.Plans, *plan)
			continue
		}
		a.NotFolded = append(a.NotFolded, NotFolded{NodeID: n.ID, Reason: reason})
	}
	return a, nil
}

// classify tries backward then forward. On failure it returns the
// highest-precedence reason seen in either direction.
func classify(g *dag.Graph, n *dag.Node) (*FoldPlan, Reason) {
	back := g.WalkBackwardUntil(n.ID, isAffine, isPassThrough)
	backReason := backwardReason(g, back)
	if backReason == "" {
		return ptr(newPlan(n.ID, Backward, back.Nodes, nil)), ""
	}

	fwd := g.WalkForwardUntil(n.ID, isAffine, isPassThrough)
	fwdReason := forwardReason(g, fwd)
	if fwdReason == "" {
		return ptr(newPlan(n.ID, Forward, fwd.Nodes, nil)), ""
	}
	return nil, worse(backReason, fwdReason)
}

// backwardReason returns "" when f names a usable affine root.
func backwardReason(g *dag.Graph, f dag.Frontier) Reason {
	if r := frontierReason(g, f); r != "" {
		return r
	}
	root, _ := g.Node(f.Nodes[0])
	if root.HasActivation() {
		return NonlinearPathBlocked
	}
	return ""
}

// forwardReason returns "" when f names a usable affine leaf.
func forwardReason(g *dag.Graph, f dag.Frontier) Reason {
	if r := frontierReason(g, f); r != "" {
		return r
	}
	leaf, _ := g.Node(f.Nodes[0])
	if paddingUnsafe(leaf) {
		return UnsafePadding
	}
	return ""
}

func frontierReason(g *dag.Graph, f dag.Frontier) Reason {
	if f.Found() {
		return ""
	}
	var r Reason
	if f.Branched {
		r = AmbiguousBranching
	}
	for _, id := range f.Blocked {
		n, _ := g.Node(id)
		r = worse(r, blockedReason(n))
	}
	if len(f.Nodes) > 1 {
		r = worse(r, AmbiguousBranching)
	}
	if r == "" {
		r = NoReachableAffineNode
	}
	return r
}

// blockedReason maps a node a walk could not cross to a reason.
func blockedReason(n *dag.Node) Reason {
	switch n.Kind {
	case dag.KindElementwise:
		return NonlinearPathBlocked
	case dag.KindMerge:
		if n.IsConcatenate() {
			return ShapeAlteringPathBlocked
		}
		return AmbiguousBranching
	case dag.KindOpaque:
		return ShapeAlteringPathBlocked
	case dag.KindInput, dag.KindOutput, dag.KindNormalization, dag.KindAffine:
		return NoReachableAffineNode
	default:
		panic("unknown kind")
	}
}

// paddingUnsafe reports whether folding a shift into the input side of n
// would be inexact: zero padding of a spatial window would see the shift
// on border positions where the original saw zeros.
func paddingUnsafe(n *dag.Node) bool {
	if n.Op != dag.OpConv || n.Config.Padding != dag.PaddingSame {
		return false
	}
	shape := n.Weight(dag.RoleKernel).Shape()
	for _, d := range shape[:len(shape)-2] {
		if d > 1 {
			return true
		}
	}
	return false
}

func isAffine(n *dag.Node) bool { return n.Kind == dag.KindAffine }

func isPassThrough(n *dag.Node) bool { return n.IsIdentityLike() }

func ptr[T any](v T) *T { return &v }

// checkWidth verifies a plan's channel count against the normalization.
func checkWidth(n *dag.Node, width int, what string) error {
	if c := n.Weight(dag.RoleMean).Len(); c != width {
		return errors.New(errors.ErrCodeShapeMismatch,
			"normalization %q has %d channels but %s has %d", n.ID, c, what, width)
	}
	return nil
}
