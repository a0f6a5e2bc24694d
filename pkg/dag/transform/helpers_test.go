package transform

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matzehuels/bnfold/pkg/dag"
	"github.com/matzehuels/bnfold/pkg/tensor"
)

// builder creates nodes with reproducible random weights.
type builder struct {
	rng   *rand.Rand
	dtype tensor.DType
}

func newBuilder(dtype tensor.DType) *builder {
	return &builder{rng: rand.New(rand.NewPCG(7, 11)), dtype: dtype}
}

func (b *builder) random(lo, hi float64, shape ...int) *tensor.Tensor {
	t := tensor.Zeros(b.dtype, shape...)
	for i := range t.Len() {
		t.Set(i, lo+(hi-lo)*b.rng.Float64())
	}
	return t
}

func input(id string, c int) dag.Node {
	return dag.Node{ID: id, Kind: dag.KindInput, Config: dag.Config{Channels: c}}
}

func output(id, in string) dag.Node {
	return dag.Node{ID: id, Kind: dag.KindOutput, Inputs: []string{in}}
}

func elementwise(id, op, in string) dag.Node {
	return dag.Node{ID: id, Kind: dag.KindElementwise, Op: op, Inputs: []string{in}}
}

func merge(id, op string, ins ...string) dag.Node {
	return dag.Node{ID: id, Kind: dag.KindMerge, Op: op, Inputs: ins}
}

func (b *builder) dense(id, in string, cin, cout int, withBias bool) dag.Node {
	n := dag.Node{ID: id, Kind: dag.KindAffine, Op: dag.OpDense, Inputs: []string{in},
		Weights: map[dag.Role]*tensor.Tensor{dag.RoleKernel: b.random(-1, 1, cin, cout)}}
	if withBias {
		n.Weights[dag.RoleBias] = b.random(-1, 1, cout)
	}
	return n
}

// conv returns a convolution with a [k, k, cin, cout] kernel and a bias.
func (b *builder) conv(id, in string, k, cin, cout int, padding string) dag.Node {
	return dag.Node{ID: id, Kind: dag.KindAffine, Op: dag.OpConv, Inputs: []string{in},
		Config: dag.Config{Padding: padding},
		Weights: map[dag.Role]*tensor.Tensor{
			dag.RoleKernel: b.random(-1, 1, k, k, cin, cout),
			dag.RoleBias:   b.random(-1, 1, cout),
		}}
}

func (b *builder) norm(id, in string, c int) dag.Node {
	return dag.Node{ID: id, Kind: dag.KindNormalization, Inputs: []string{in},
		Config: dag.Config{Epsilon: 1e-3},
		Weights: map[dag.Role]*tensor.Tensor{
			dag.RoleGamma:    b.random(0.5, 2, c),
			dag.RoleBeta:     b.random(-1, 1, c),
			dag.RoleMean:     b.random(-1, 1, c),
			dag.RoleVariance: b.random(0.1, 2, c),
		}}
}

// evaluate runs g on one sample per input node and returns the values at
// the output nodes. Affine kernels must have unit spatial extent.
func evaluate(t *testing.T, g *dag.Graph, inputs map[string][]float64) map[string][]float64 {
	t.Helper()
	vals := make(map[string][]float64)
	outs := make(map[string][]float64)
	for _, id := range g.Order() {
		n, _ := g.Node(id)
		var x []float64
		if len(n.Inputs) > 0 {
			x = vals[n.Inputs[0]]
		}
		switch n.Kind {
		case dag.KindInput:
			vals[id] = inputs[id]
		case dag.KindOutput:
			outs[id] = x
			vals[id] = x
		case dag.KindAffine:
			vals[id] = evalAffine(t, n, x)
		case dag.KindNormalization:
			vals[id] = evalNorm(n, x)
		case dag.KindElementwise:
			vals[id] = evalElementwise(t, n, x)
		case dag.KindMerge:
			vals[id] = evalMerge(t, n, vals)
		case dag.KindOpaque:
			vals[id] = x
		default:
			t.Fatalf("unknown kind %v", n.Kind)
		}
	}
	return outs
}

func evalAffine(t *testing.T, n *dag.Node, x []float64) []float64 {
	k := n.Weight(dag.RoleKernel)
	in, out := k.Dim(-2), k.Dim(-1)
	require.Equal(t, in*out, k.Len(), "evaluator only supports unit spatial kernels")
	require.Len(t, x, in)
	y := make([]float64, out)
	for o := range out {
		for c := range in {
			y[o] += x[c] * k.At(c*out+o)
		}
		if bias := n.Weight(dag.RoleBias); bias != nil {
			y[o] += bias.At(o)
		}
		if n.Config.Activation == dag.OpReLU {
			y[o] = math.Max(0, y[o])
		}
	}
	return y
}

func evalNorm(n *dag.Node, x []float64) []float64 {
	y := make([]float64, len(x))
	for c := range x {
		v := (x[c] - n.Weight(dag.RoleMean).At(c)) / math.Sqrt(n.Weight(dag.RoleVariance).At(c)+n.Epsilon())
		if g := n.Weight(dag.RoleGamma); g != nil {
			v *= g.At(c)
		}
		if b := n.Weight(dag.RoleBeta); b != nil {
			v += b.At(c)
		}
		y[c] = v
	}
	return y
}

func evalElementwise(t *testing.T, n *dag.Node, x []float64) []float64 {
	y := make([]float64, len(x))
	for i, v := range x {
		switch n.Op {
		case dag.OpReLU:
			y[i] = math.Max(0, v)
		case dag.OpIdentity, dag.OpDropout, "":
			y[i] = v
		case "sigmoid":
			y[i] = 1 / (1 + math.Exp(-v))
		default:
			t.Fatalf("evaluator does not support %q", n.Op)
		}
	}
	return y
}

func evalMerge(t *testing.T, n *dag.Node, vals map[string][]float64) []float64 {
	if n.Op == dag.OpConcatenate {
		var y []float64
		for _, in := range n.Inputs {
			y = append(y, vals[in]...)
		}
		return y
	}
	y := append([]float64(nil), vals[n.Inputs[0]]...)
	for _, in := range n.Inputs[1:] {
		for i, v := range vals[in] {
			switch n.Op {
			case dag.OpAdd:
				y[i] += v
			case dag.OpMultiply:
				y[i] *= v
			default:
				t.Fatalf("evaluator does not support merge %q", n.Op)
			}
		}
	}
	return y
}

// sampleInputs draws one random vector per input node of g.
func sampleInputs(g *dag.Graph, seed uint64) map[string][]float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	in := make(map[string][]float64)
	for _, n := range g.Sources() {
		v := make([]float64, g.Channels(n.ID))
		for i := range v {
			v[i] = rng.Float64()*4 - 2
		}
		in[n.ID] = v
	}
	return in
}

// requireEquivalent checks that before and after agree on random samples
// within a relative tolerance.
func requireEquivalent(t *testing.T, before, after *dag.Graph, tol float64) {
	t.Helper()
	for seed := uint64(1); seed <= 5; seed++ {
		in := sampleInputs(before, seed)
		want := evaluate(t, before, in)
		got := evaluate(t, after, in)
		require.Equal(t, len(want), len(got))
		for id, w := range want {
			require.Len(t, got[id], len(w), "output %s", id)
			for i := range w {
				delta := tol * math.Max(1, math.Abs(w[i]))
				require.InDelta(t, w[i], got[id][i], delta, "output %s[%d] seed %d", id, i, seed)
			}
		}
	}
}

func mustBuild(t *testing.T, nodes []dag.Node) *dag.Graph {
	t.Helper()
	g, err := dag.Build(nodes)
	require.NoError(t, err)
	return g
}

func countKind(g *dag.Graph, k dag.Kind) int {
	return len(g.NodesOfKind(k))
}

func node(t *testing.T, g *dag.Graph, id string) *dag.Node {
	t.Helper()
	n, ok := g.Node(id)
	require.True(t, ok, "node %s missing", id)
	return n
}
