// Package graph provides the serialization format for inference graphs.
//
// This package defines the wire format for model files, fold-server
// requests and responses, and cache payloads. It sits at the boundary
// between files and the in-memory [dag.Graph].
//
// # Core Types
//
//   - [Model]: a named, ordered list of layers
//   - [NodeSpec]: one layer with its kind, op, inputs, config and weights
//   - [TensorSpec]: a dense tensor as dtype, shape and flat data
//
// # Encodings
//
// The same structs encode as indented JSON or as msgpack. Files choose by
// extension (.json, .msgpack, .mp):
//
//	m, err := graph.ReadFile("resnet.msgpack")
//	g, err := m.ToDAG()
//	err = graph.WriteFile(graph.FromDAG(m.Name, g), "resnet.folded.json")
//
// A JSON model looks like:
//
//	{
//	  "name": "tiny",
//	  "nodes": [
//	    {"id": "in", "kind": "input", "config": {"channels": 3}},
//	    {"id": "fc", "kind": "affine", "op": "dense", "inputs": ["in"],
//	     "weights": {"kernel": {"dtype": "float32", "shape": [3, 8], "data": [...]}}},
//	    {"id": "bn", "kind": "normalization", "inputs": ["fc"],
//	     "config": {"epsilon": 0.001},
//	     "weights": {"mean": {...}, "variance": {...}, "gamma": {...}, "beta": {...}}},
//	    {"id": "out", "kind": "output", "inputs": ["bn"]}
//	  ]
//	}
//
// Tensor data is written as float64. A float32 tensor widens exactly and
// narrows back to the same bits, so round-trips are lossless.
//
// # Concurrency
//
// All functions are safe for concurrent use on distinct values.
package graph
