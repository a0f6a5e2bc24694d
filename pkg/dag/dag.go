package dag

import (
	"maps"
	"slices"

	"github.com/matzehuels/bnfold/pkg/errors"
	"github.com/matzehuels/bnfold/pkg/tensor"
)

// Kind is the closed set of layer kinds the folding pass understands.
//
// Every switch over Kind in this module lists all seven values and panics
// in its default branch, so adding a kind forces each consumer to decide
// how to treat it.
type Kind int

const (
	// KindInput is a graph entry point. It has no inputs.
	KindInput Kind = iota
	// KindOutput is a graph exit point. It forwards its single input.
	KindOutput
	// KindAffine computes input·kernel + bias (dense or convolution).
	KindAffine
	// KindNormalization computes (x-mean)/sqrt(variance+eps)·gamma + beta
	// per channel.
	KindNormalization
	// KindElementwise is a shape-preserving op without learnable affine
	// parameters (activations, dropout, identity).
	KindElementwise
	// KindMerge combines several inputs (add, multiply, concatenate).
	KindMerge
	// KindOpaque is anything else. It is copied verbatim and never crossed.
	KindOpaque
)

var kindNames = [...]string{
	KindInput:         "input",
	KindOutput:        "output",
	KindAffine:        "affine",
	KindNormalization: "normalization",
	KindElementwise:   "elementwise",
	KindMerge:         "merge",
	KindOpaque:        "opaque",
}

// String returns the lower-case kind name used in model files.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool { return k >= 0 && int(k) < len(kindNames) }

// ParseKind is the inverse of [Kind.String].
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, errors.New(errors.ErrCodeUnknownKind, "unknown layer kind %q", s)
}

// Role names a weight tensor slot on a node.
type Role string

// Weight roles.
const (
	RoleKernel   Role = "kernel"
	RoleBias     Role = "bias"
	RoleGamma    Role = "gamma"
	RoleBeta     Role = "beta"
	RoleMean     Role = "mean"
	RoleVariance Role = "variance"
)

// Op names for the kinds that carry a sub-type.
const (
	OpAdd         = "add"
	OpMultiply    = "multiply"
	OpConcatenate = "concatenate"

	OpIdentity = "identity"
	OpDropout  = "dropout"
	OpReLU     = "relu"

	OpDense = "dense"
	OpConv  = "conv"
)

// Padding modes for convolutions.
const (
	PaddingValid = "valid"
	PaddingSame  = "same"
)

// ChannelAxis is the axis value meaning "the channel axis" (the last one).
const ChannelAxis = -1

// DefaultEpsilon is used when a normalization node does not set one.
const DefaultEpsilon = 1e-3

// Config is the small set of layer attributes the folding pass reads.
// Attrs carries everything else through untouched.
type Config struct {
	// Channels declares the output channel count of Input and Opaque nodes.
	// Zero means unknown.
	Channels int
	// Axis is the concatenation axis of a concatenate merge. Zero value and
	// ChannelAxis both select the channel axis.
	Axis int
	// Epsilon is the normalization variance epsilon. Zero selects
	// DefaultEpsilon.
	Epsilon float64
	// Padding is the convolution padding mode ("valid" or "same").
	Padding string
	// Activation is a fused activation applied after an affine layer.
	// Empty and "linear" mean none.
	Activation string
	// Attrs holds opaque configuration copied verbatim.
	Attrs map[string]any
}

// Node is a layer in an inference graph.
//
// Inputs lists producer IDs in call order; the order matters for merges.
// Weights is only populated for affine and normalization layers.
type Node struct {
	ID      string
	Kind    Kind
	Op      string
	Inputs  []string
	Config  Config
	Weights map[Role]*tensor.Tensor
}

// Weight returns the tensor stored under role, or nil.
func (n *Node) Weight(r Role) *tensor.Tensor {
	if n.Weights == nil {
		return nil
	}
	return n.Weights[r]
}

// SetWeight stores t under role, allocating the map if needed.
func (n *Node) SetWeight(r Role, t *tensor.Tensor) {
	if n.Weights == nil {
		n.Weights = make(map[Role]*tensor.Tensor)
	}
	n.Weights[r] = t
}

// Epsilon returns the normalization epsilon with the default applied.
func (n *Node) Epsilon() float64 {
	if n.Config.Epsilon == 0 {
		return DefaultEpsilon
	}
	return n.Config.Epsilon
}

// IsConcatenate reports whether n is a concatenate merge.
func (n *Node) IsConcatenate() bool {
	return n.Kind == KindMerge && n.Op == OpConcatenate
}

// ConcatenatesChannels reports whether n concatenates along the channel axis.
func (n *Node) ConcatenatesChannels() bool {
	return n.IsConcatenate() && (n.Config.Axis == 0 || n.Config.Axis == ChannelAxis)
}

// IsIdentityLike reports whether n is an elementwise op that returns its
// input unchanged at inference time.
func (n *Node) IsIdentityLike() bool {
	return n.Kind == KindElementwise && (n.Op == OpIdentity || n.Op == OpDropout || n.Op == "")
}

// HasActivation reports whether an affine node applies a fused activation.
func (n *Node) HasActivation() bool {
	return n.Config.Activation != "" && n.Config.Activation != "linear"
}

// Clone returns a deep copy of the node, including its tensors.
// Attrs is copied one level deep.
func (n *Node) Clone() *Node {
	c := &Node{
		ID:     n.ID,
		Kind:   n.Kind,
		Op:     n.Op,
		Inputs: slices.Clone(n.Inputs),
		Config: n.Config,
	}
	if n.Config.Attrs != nil {
		c.Config.Attrs = maps.Clone(n.Config.Attrs)
	}
	if n.Weights != nil {
		c.Weights = make(map[Role]*tensor.Tensor, len(n.Weights))
		for r, t := range n.Weights {
			c.Weights[r] = t.Clone()
		}
	}
	return c
}

// Graph is an arena of layer nodes plus two derived adjacency views.
//
// Each node's Inputs list is the single source of truth. The forward
// (consumers) and backward (producers) views and the topological order are
// recomputed from it by [Graph.Reindex]; nodes never point at each other.
//
// The zero value is not usable - use [Build] or [FromNodes].
// Graph is not safe for concurrent use without external synchronization.
type Graph struct {
	nodes    map[string]*Node
	order    []string            // insertion order
	forward  map[string][]string // nodeID -> consumer IDs (one per edge)
	backward map[string][]string // nodeID -> producer IDs
	topo     []string
}

// Build creates a graph from a caller-owned node list.
//
// Every node, its configuration and its tensors are deep-copied, so later
// mutation of the graph never reaches the caller's data. Build fails with
// a GRAPH_* coded error when the input is malformed; see [FromNodes].
func Build(nodes []Node) (*Graph, error) {
	owned := make([]*Node, len(nodes))
	for i := range nodes {
		owned[i] = nodes[i].Clone()
	}
	return FromNodes(owned)
}

// FromNodes creates a graph that takes ownership of nodes without copying.
//
// It returns:
//   - GRAPH_INVALID_NODE_ID for empty or malformed IDs
//   - GRAPH_UNKNOWN_KIND for a kind outside the closed set
//   - GRAPH_DUPLICATE_ID when two nodes share an ID
//   - GRAPH_INVALID_ARITY when a node has the wrong number of inputs
//   - GRAPH_DANGLING_REFERENCE when an input names a missing node
//   - GRAPH_MISSING_WEIGHT when an affine or normalization node lacks tensors
//   - GRAPH_CYCLIC when no topological order exists
func FromNodes(nodes []*Node) (*Graph, error) {
	g := &Graph{
		nodes: make(map[string]*Node, len(nodes)),
		order: make([]string, 0, len(nodes)),
	}
	for _, n := range nodes {
		if err := errors.ValidateNodeID(n.ID); err != nil {
			return nil, err
		}
		if !n.Kind.Valid() {
			return nil, errors.New(errors.ErrCodeUnknownKind, "node %q has unknown kind %d", n.ID, int(n.Kind))
		}
		if _, exists := g.nodes[n.ID]; exists {
			return nil, errors.New(errors.ErrCodeDuplicateID, "duplicate node id %q", n.ID)
		}
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}
	for _, id := range g.order {
		if err := g.validateNode(g.nodes[id]); err != nil {
			return nil, err
		}
	}
	if err := g.Reindex(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) validateNode(n *Node) error {
	if err := checkArity(n); err != nil {
		return err
	}
	for _, in := range n.Inputs {
		if _, ok := g.nodes[in]; !ok {
			return errors.New(errors.ErrCodeDanglingReference, "node %q references unknown input %q", n.ID, in)
		}
	}
	return checkWeights(n)
}

func checkArity(n *Node) error {
	got := len(n.Inputs)
	switch n.Kind {
	case KindInput:
		if got != 0 {
			return errors.New(errors.ErrCodeInvalidArity, "input node %q must not have inputs, has %d", n.ID, got)
		}
	case KindMerge, KindOpaque:
		if got == 0 {
			return errors.New(errors.ErrCodeInvalidArity, "%s node %q needs at least one input", n.Kind, n.ID)
		}
	case KindOutput, KindAffine, KindNormalization, KindElementwise:
		if got != 1 {
			return errors.New(errors.ErrCodeInvalidArity, "%s node %q needs exactly one input, has %d", n.Kind, n.ID, got)
		}
	default:
		panic("unknown kind")
	}
	return nil
}

func checkWeights(n *Node) error {
	switch n.Kind {
	case KindAffine:
		k := n.Weight(RoleKernel)
		if k == nil {
			return errors.New(errors.ErrCodeMissingWeight, "affine node %q has no kernel", n.ID)
		}
		if k.Rank() < 2 {
			return errors.New(errors.ErrCodeMissingWeight, "affine node %q kernel must have rank >= 2, got %v", n.ID, k)
		}
	case KindNormalization:
		for _, r := range []Role{RoleMean, RoleVariance} {
			if n.Weight(r) == nil {
				return errors.New(errors.ErrCodeMissingWeight, "normalization node %q has no %s", n.ID, r)
			}
		}
	case KindInput, KindOutput, KindElementwise, KindMerge, KindOpaque:
	default:
		panic("unknown kind")
	}
	return nil
}

// Reindex recomputes the adjacency views and the topological order from
// the nodes' Inputs lists. It returns GRAPH_CYCLIC if the graph has a cycle.
func (g *Graph) Reindex() error {
	nodes := make([]*Node, len(g.order))
	for i, id := range g.order {
		nodes[i] = g.nodes[id]
	}
	g.forward, g.backward = Adjacency(nodes)
	topo, err := topologicalOrder(g.order, g.forward, g.backward)
	if err != nil {
		return err
	}
	g.topo = topo
	return nil
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		nodes:    make(map[string]*Node, len(g.nodes)),
		order:    slices.Clone(g.order),
		forward:  cloneIndex(g.forward),
		backward: cloneIndex(g.backward),
		topo:     slices.Clone(g.topo),
	}
	for id, n := range g.nodes {
		c.nodes[id] = n.Clone()
	}
	return c
}

func cloneIndex(m map[string][]string) map[string][]string {
	c := make(map[string][]string, len(m))
	for k, v := range m {
		c[k] = slices.Clone(v)
	}
	return c
}

// Node returns the node with the given ID and true, or nil and false.
// The returned pointer refers to the node inside the graph.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
// The pointers refer to the nodes inside the graph.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.order))
	for i, id := range g.order {
		out[i] = g.nodes[id]
	}
	return out
}

// NodesOfKind returns the nodes of kind k in topological order.
func (g *Graph) NodesOfKind(k Kind) []*Node {
	var out []*Node
	for _, id := range g.topo {
		if n := g.nodes[id]; n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of producer→consumer edges, counting a
// producer used twice by the same consumer twice.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, ins := range g.backward {
		n += len(ins)
	}
	return n
}

// Consumers returns the IDs of nodes that read id's output, one entry per
// edge. The returned slice is a read-only view.
func (g *Graph) Consumers(id string) []string { return g.forward[id] }

// Producers returns the IDs id reads from, in input order.
// The returned slice is a read-only view.
func (g *Graph) Producers(id string) []string { return g.backward[id] }

// OutDegree returns the number of consumer edges of id.
func (g *Graph) OutDegree(id string) int { return len(g.forward[id]) }

// Order returns the node IDs in topological order. Ties are broken by
// insertion order, so the order is deterministic for a given input.
func (g *Graph) Order() []string { return slices.Clone(g.topo) }

// IDs returns the node IDs in insertion order.
func (g *Graph) IDs() []string { return slices.Clone(g.order) }

// Sources returns the input nodes in insertion order.
func (g *Graph) Sources() []*Node {
	var out []*Node
	for _, id := range g.order {
		if n := g.nodes[id]; n.Kind == KindInput {
			out = append(out, n)
		}
	}
	return out
}

// Sinks returns the output nodes in insertion order.
func (g *Graph) Sinks() []*Node {
	var out []*Node
	for _, id := range g.order {
		if n := g.nodes[id]; n.Kind == KindOutput {
			out = append(out, n)
		}
	}
	return out
}
