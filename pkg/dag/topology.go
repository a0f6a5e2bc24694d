package dag

import (
	"slices"

	"github.com/matzehuels/bnfold/pkg/errors"
)

// Adjacency derives the forward (consumers) and backward (producers) views
// of nodes in one pass over their Inputs lists.
//
// A producer listed twice by the same consumer appears twice in the
// forward view. Consumer lists follow the order of nodes.
func Adjacency(nodes []*Node) (forward, backward map[string][]string) {
	forward = make(map[string][]string, len(nodes))
	backward = make(map[string][]string, len(nodes))
	for _, n := range nodes {
		backward[n.ID] = slices.Clone(n.Inputs)
		for _, in := range n.Inputs {
			forward[in] = append(forward[in], n.ID)
		}
	}
	return forward, backward
}

// topologicalOrder runs Kahn's algorithm seeded in insertion order.
func topologicalOrder(order []string, forward, backward map[string][]string) ([]string, error) {
	inDegree := make(map[string]int, len(order))
	queue := make([]string, 0, len(order))
	for _, id := range order {
		degree := len(backward[id])
		inDegree[id] = degree
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	out := make([]string, 0, len(order))
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		out = append(out, curr)

		for _, child := range forward[curr] {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(out) != len(order) {
		var stuck []string
		for _, id := range order {
			if inDegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, errors.New(errors.ErrCodeCyclic, "graph has a cycle through %v", stuck)
	}
	return out, nil
}

// Frontier is the result of a bounded walk from a start node.
type Frontier struct {
	// Nodes are the matched nodes, in discovery order.
	Nodes []string
	// Crossed are the pass-through nodes the walk stepped over.
	Crossed []string
	// Blocked are nodes that neither matched nor passed.
	Blocked []string
	// Branched is set when the walk stopped at a fan-out or fan-in.
	Branched bool
}

// Found reports whether the walk reached exactly one matching node and
// was not stopped along the way.
func (f Frontier) Found() bool {
	return len(f.Nodes) == 1 && len(f.Blocked) == 0 && !f.Branched
}

// WalkBackwardUntil walks from start towards its producers and returns the
// nodes satisfying match.
//
// A reached node that does not match is crossed when pass accepts it and
// recorded as blocked otherwise. Every reached node, matched or crossed,
// must have exactly one consumer; a node read by several consumers stops
// the walk with Branched set, since folding into it would change the other
// readers.
func (g *Graph) WalkBackwardUntil(start string, match, pass func(*Node) bool) Frontier {
	return g.walkBackward(start, slices.Clone(g.backward[start]), match, pass)
}

// WalkBackwardFrom is like [Graph.WalkBackwardUntil] but treats first as
// the first reached node, so first itself may match. It is used to search
// one input of a merge independently of the others.
func (g *Graph) WalkBackwardFrom(first string, match, pass func(*Node) bool) Frontier {
	return g.walkBackward("", []string{first}, match, pass)
}

func (g *Graph) walkBackward(start string, queue []string, match, pass func(*Node) bool) Frontier {
	var f Frontier
	seen := map[string]bool{}
	if start != "" {
		seen[start] = true
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			f.Branched = true
			continue
		}
		seen[id] = true

		n := g.nodes[id]
		if len(g.forward[id]) != 1 {
			f.Branched = true
			continue
		}
		switch {
		case match(n):
			f.Nodes = append(f.Nodes, id)
		case pass(n):
			f.Crossed = append(f.Crossed, id)
			queue = append(queue, g.backward[id]...)
		default:
			f.Blocked = append(f.Blocked, id)
		}
	}
	return f
}

// WalkForwardUntil walks from start towards its consumers and returns the
// nodes satisfying match.
//
// The start node and every crossed node must have exactly one consumer,
// and every reached node must read exactly one input; otherwise the walk
// stops with Branched set. Reached nodes that neither match nor pass are
// recorded as blocked.
func (g *Graph) WalkForwardUntil(start string, match, pass func(*Node) bool) Frontier {
	var f Frontier
	curr := start
	for {
		consumers := g.forward[curr]
		if len(consumers) == 0 {
			return f
		}
		if len(consumers) > 1 {
			f.Branched = true
			return f
		}
		id := consumers[0]
		n := g.nodes[id]
		if len(g.backward[id]) != 1 {
			f.Branched = true
			return f
		}
		switch {
		case match(n):
			f.Nodes = append(f.Nodes, id)
			return f
		case pass(n):
			f.Crossed = append(f.Crossed, id)
			curr = id
		default:
			f.Blocked = append(f.Blocked, id)
			return f
		}
	}
}

// Channels infers the output channel count of id. It returns 0 when the
// width cannot be determined.
//
// Affine nodes report their kernel's last dimension and normalization
// nodes their statistics length. Input and opaque nodes report
// Config.Channels. Channel concatenations sum their inputs, everything
// else forwards its first input's width.
func (g *Graph) Channels(id string) int {
	return g.channels(id, make(map[string]int))
}

func (g *Graph) channels(id string, memo map[string]int) int {
	if c, ok := memo[id]; ok {
		return c
	}
	n, ok := g.nodes[id]
	if !ok {
		return 0
	}
	var c int
	switch n.Kind {
	case KindInput, KindOpaque:
		c = n.Config.Channels
	case KindAffine:
		if k := n.Weight(RoleKernel); k != nil {
			c = k.Dim(-1)
		}
	case KindNormalization:
		if m := n.Weight(RoleMean); m != nil {
			c = m.Len()
		}
	case KindOutput, KindElementwise:
		c = g.channels(n.Inputs[0], memo)
	case KindMerge:
		if n.ConcatenatesChannels() {
			for _, in := range n.Inputs {
				w := g.channels(in, memo)
				if w == 0 {
					c = 0
					break
				}
				c += w
			}
		} else {
			for _, in := range n.Inputs {
				if c = g.channels(in, memo); c != 0 {
					break
				}
			}
		}
	default:
		panic("unknown kind")
	}
	memo[id] = c
	return c
}
