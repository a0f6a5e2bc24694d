package transform

import (
	"github.com/matzehuels/bnfold/pkg/dag"
)

// rewrite removes the folded normalization nodes from g and points their
// consumers at the first surviving producer upstream. Surviving nodes keep
// their IDs, their relative order and the order of their inputs.
func rewrite(g *dag.Graph, folded map[string]bool) (*dag.Graph, error) {
	if len(folded) == 0 {
		return g, nil
	}

	replacement := make(map[string]string, len(folded))
	for _, id := range g.Order() {
		if !folded[id] {
			continue
		}
		n, _ := g.Node(id)
		src := n.Inputs[0]
		if r, ok := replacement[src]; ok {
			src = r
		}
		replacement[id] = src
	}

	survivors := make([]*dag.Node, 0, g.NodeCount()-len(folded))
	for _, n := range g.Nodes() {
		if folded[n.ID] {
			continue
		}
		for i, in := range n.Inputs {
			if r, ok := replacement[in]; ok {
				n.Inputs[i] = r
			}
		}
		survivors = append(survivors, n)
	}
	return dag.FromNodes(survivors)
}
