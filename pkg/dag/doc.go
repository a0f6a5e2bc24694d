// Package dag provides the inference-graph model that batch-normalization
// folding operates on.
//
// # Overview
//
// A [Graph] is an arena of [Node] values keyed by ID. Each node lists the
// IDs it reads from in Inputs, and that list is the only place edges are
// stored. Consumer and producer views are derived from it by [Adjacency]
// and rebuilt with [Graph.Reindex] after a rewrite, so there are no
// back-pointers to keep in sync.
//
// # Building
//
// [Build] deep-copies a caller-owned node list and validates it:
//
//	g, err := dag.Build([]dag.Node{
//		{ID: "in", Kind: dag.KindInput, Config: dag.Config{Channels: 4}},
//		{ID: "fc", Kind: dag.KindAffine, Op: dag.OpDense, Inputs: []string{"in"},
//			Weights: map[dag.Role]*tensor.Tensor{dag.RoleKernel: kernel}},
//		{ID: "out", Kind: dag.KindOutput, Inputs: []string{"fc"}},
//	})
//
// Validation errors carry GRAPH_* codes from the errors package, so
// callers can branch with errors.Is(err, errors.ErrCodeCyclic) and friends.
// [FromNodes] performs the same validation but adopts the nodes without
// copying; rewriting passes use it for graphs they already own.
//
// # Layer Kinds
//
// [Kind] is closed: input, output, affine, normalization, elementwise,
// merge and opaque. Ops such as [OpDense], [OpConcatenate] or [OpDropout]
// refine a kind without widening the set.
//
// # Walking
//
// [Graph.WalkBackwardUntil] and [Graph.WalkForwardUntil] return a
// [Frontier]: the nodes satisfying a predicate, reached only through nodes
// a pass-through predicate accepts. A walk never crosses a fan-out, so a
// node found this way can be rewritten without affecting other readers.
//
// [Graph.Channels] infers channel widths from kernels, normalization
// statistics and declared input widths.
package dag
