package transform

import (
	"github.com/matzehuels/bnfold/pkg/dag"
	"github.com/matzehuels/bnfold/pkg/tensor"
)

// completeBiases gives every plan target without a bias a zero bias of
// shape [out] in the kernel's dtype. It returns the IDs that gained one.
func completeBiases(g *dag.Graph, plans []FoldPlan) []string {
	var added []string
	for _, p := range plans {
		for _, id := range p.Targets() {
			n, _ := g.Node(id)
			if n.Weight(dag.RoleBias) != nil {
				continue
			}
			k := n.Weight(dag.RoleKernel)
			n.SetWeight(dag.RoleBias, tensor.Zeros(k.DType(), k.Dim(-1)))
			added = append(added, id)
		}
	}
	return added
}
