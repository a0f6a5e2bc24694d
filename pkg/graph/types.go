package graph

import (
	"fmt"
	"maps"

	"github.com/matzehuels/bnfold/pkg/dag"
	"github.com/matzehuels/bnfold/pkg/errors"
	"github.com/matzehuels/bnfold/pkg/tensor"
)

// =============================================================================
// Model - Inference Graph Serialization
// =============================================================================

// Model is the canonical serialization format for inference graphs.
// Used for model files, API requests and responses, and cache payloads.
//
// Node order is preserved through a round-trip; it breaks ties in the
// topological order, so it is part of the model.
type Model struct {
	Name  string     `json:"name,omitempty" msgpack:"name,omitempty"`
	Nodes []NodeSpec `json:"nodes" msgpack:"nodes"`
}

// NodeSpec describes one layer.
type NodeSpec struct {
	ID      string                `json:"id" msgpack:"id"`
	Kind    string                `json:"kind" msgpack:"kind"` // input, output, affine, normalization, elementwise, merge, opaque
	Op      string                `json:"op,omitempty" msgpack:"op,omitempty"`
	Inputs  []string              `json:"inputs,omitempty" msgpack:"inputs,omitempty"`
	Config  *ConfigSpec           `json:"config,omitempty" msgpack:"config,omitempty"`
	Weights map[string]TensorSpec `json:"weights,omitempty" msgpack:"weights,omitempty"` // keyed by role
}

// ConfigSpec mirrors [dag.Config]. Zero fields are omitted.
type ConfigSpec struct {
	Channels   int            `json:"channels,omitempty" msgpack:"channels,omitempty"`
	Axis       int            `json:"axis,omitempty" msgpack:"axis,omitempty"`
	Epsilon    float64        `json:"epsilon,omitempty" msgpack:"epsilon,omitempty"`
	Padding    string         `json:"padding,omitempty" msgpack:"padding,omitempty"`
	Activation string         `json:"activation,omitempty" msgpack:"activation,omitempty"`
	Attrs      map[string]any `json:"attrs,omitempty" msgpack:"attrs,omitempty"`
}

// TensorSpec is a dense row-major tensor. Data is always written as
// float64; float32 values widen and narrow back without loss.
type TensorSpec struct {
	DType string    `json:"dtype" msgpack:"dtype"`
	Shape []int     `json:"shape" msgpack:"shape"`
	Data  []float64 `json:"data" msgpack:"data"`
}

var knownRoles = map[string]dag.Role{
	string(dag.RoleKernel):   dag.RoleKernel,
	string(dag.RoleBias):     dag.RoleBias,
	string(dag.RoleGamma):    dag.RoleGamma,
	string(dag.RoleBeta):     dag.RoleBeta,
	string(dag.RoleMean):     dag.RoleMean,
	string(dag.RoleVariance): dag.RoleVariance,
}

// =============================================================================
// dag.Graph ↔ Model Conversion
// =============================================================================

// FromDAG converts a graph to its serialization format, in insertion order.
func FromDAG(name string, g *dag.Graph) *Model {
	nodes := g.Nodes()
	m := &Model{Name: name, Nodes: make([]NodeSpec, len(nodes))}
	for i, n := range nodes {
		m.Nodes[i] = nodeSpec(n)
	}
	return m
}

// DAGNodes converts the model to freshly allocated graph nodes.
func (m *Model) DAGNodes() ([]dag.Node, error) {
	out := make([]dag.Node, len(m.Nodes))
	for i, ns := range m.Nodes {
		n, err := ns.toNode()
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", ns.ID, err)
		}
		out[i] = n
	}
	return out, nil
}

// ToDAG converts the model to a validated graph.
func (m *Model) ToDAG() (*dag.Graph, error) {
	nodes, err := m.DAGNodes()
	if err != nil {
		return nil, err
	}
	ptrs := make([]*dag.Node, len(nodes))
	for i := range nodes {
		ptrs[i] = &nodes[i]
	}
	return dag.FromNodes(ptrs)
}

// CountKind returns the number of nodes whose kind is k.
func (m *Model) CountKind(k dag.Kind) int {
	n := 0
	for _, ns := range m.Nodes {
		if ns.Kind == k.String() {
			n++
		}
	}
	return n
}

func (ns NodeSpec) toNode() (dag.Node, error) {
	kind, err := dag.ParseKind(ns.Kind)
	if err != nil {
		return dag.Node{}, err
	}
	n := dag.Node{
		ID:     ns.ID,
		Kind:   kind,
		Op:     ns.Op,
		Inputs: append([]string(nil), ns.Inputs...),
	}
	if c := ns.Config; c != nil {
		n.Config = dag.Config{
			Channels:   c.Channels,
			Axis:       c.Axis,
			Epsilon:    c.Epsilon,
			Padding:    c.Padding,
			Activation: c.Activation,
			Attrs:      maps.Clone(c.Attrs),
		}
	}
	for name, ts := range ns.Weights {
		role, ok := knownRoles[name]
		if !ok {
			return dag.Node{}, errors.New(errors.ErrCodeInvalidFormat, "unknown weight role %q", name)
		}
		t, err := ts.toTensor()
		if err != nil {
			return dag.Node{}, fmt.Errorf("weight %s: %w", name, err)
		}
		n.SetWeight(role, t)
	}
	return n, nil
}

func (ts TensorSpec) toTensor() (*tensor.Tensor, error) {
	dt, err := tensor.ParseDType(ts.DType)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "tensor")
	}
	return tensor.FromValues(dt, ts.Shape, ts.Data)
}

func nodeSpec(n *dag.Node) NodeSpec {
	ns := NodeSpec{
		ID:     n.ID,
		Kind:   n.Kind.String(),
		Op:     n.Op,
		Inputs: append([]string(nil), n.Inputs...),
	}
	if c := n.Config; c.Channels != 0 || c.Axis != 0 || c.Epsilon != 0 || c.Padding != "" || c.Activation != "" || len(c.Attrs) > 0 {
		ns.Config = &ConfigSpec{
			Channels:   c.Channels,
			Axis:       c.Axis,
			Epsilon:    c.Epsilon,
			Padding:    c.Padding,
			Activation: c.Activation,
			Attrs:      maps.Clone(c.Attrs),
		}
	}
	if len(n.Weights) > 0 {
		ns.Weights = make(map[string]TensorSpec, len(n.Weights))
		for role, t := range n.Weights {
			ns.Weights[string(role)] = TensorSpec{DType: t.DType().String(), Shape: t.Shape(), Data: t.Values()}
		}
	}
	return ns
}
