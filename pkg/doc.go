// Package pkg provides the core libraries for bnfold, a batch normalization
// folding tool for inference graphs.
//
// # Overview
//
// A trained network usually keeps its batch normalization layers at
// inference time even though each one is a per-channel affine map. bnfold
// absorbs those layers into an adjacent dense or convolution layer, which
// removes a node and a memory pass per layer without changing the
// network's output. The pkg directory is organized into four areas:
//
//  1. [dag] and [dag/transform] - the graph model and the folding pass
//  2. [tensor] - dense float32/float64 tensors for weights and statistics
//  3. [graph] - the model file format (JSON and msgpack)
//  4. [pipeline], [cache], [httputil] - orchestration shared by CLI and server
//
// # Architecture
//
// The data flow through bnfold:
//
//	model.json / model.msgpack
//	         ↓
//	    [graph] package (decode, validate into a dag.Graph)
//	         ↓
//	    [dag/transform] package (analyze → fold weights → rewrite, to a fixpoint)
//	         ↓
//	    [graph] package (encode the folded model)
//
// [pipeline] wraps this flow with content-hash caching and batch
// execution; [render/nodelink] draws graphs before or after folding.
//
// # Quick Start
//
// Fold a model in memory:
//
//	m, _ := graph.ReadFile("resnet.json")
//	nodes, _ := m.DAGNodes()
//	res, err := transform.Run(nodes, transform.Options{})
//	if err != nil {
//	    log.Fatal(err) // GRAPH_* or FOLD_* error
//	}
//	fmt.Println(res.Report.FoldedCount, "layers folded")
//	_ = graph.WriteFile(graph.FromDAG(m.Name, res.Graph), "resnet.folded.json")
//
// Or let the pipeline handle files and caching:
//
//	runner := pipeline.NewRunner(fileCache, nil, logger)
//	res, err := runner.FoldFile(ctx, "resnet.json", "", pipeline.Options{})
//
// # Main Packages
//
// [dag] - Graph of typed layers (input, output, affine, normalization,
// elementwise, merge, opaque) with validation, topological order, single-
// path walks and channel inference.
//
// [dag/transform] - The folding pass. Decides per normalization layer
// whether it folds backward into its producer, forward into its consumers,
// per branch through a channel concatenation, or not at all (with a
// reason), then rewrites weights and graph.
//
// [errors] - Coded errors (GRAPH_*, FOLD_*, INVALID_*) shared by every layer.
//
// [observability] - Hook interfaces for fold, cache and HTTP events.
//
// [render/nodelink] - Graphviz diagrams of graphs.
//
// [buildinfo] - Version information set at link time.
//
// # Testing
//
// Run tests:
//
//	go test ./...                         # All tests
//	go test ./pkg/dag/transform/...       # The folding pass
//	go test -run Example ./...            # Examples only
//	BNFOLD_TEST_REDIS_ADDR=localhost:6379 go test ./pkg/cache/...
//
// [dag]: https://pkg.go.dev/github.com/matzehuels/bnfold/pkg/dag
// [dag/transform]: https://pkg.go.dev/github.com/matzehuels/bnfold/pkg/dag/transform
// [tensor]: https://pkg.go.dev/github.com/matzehuels/bnfold/pkg/tensor
// [graph]: https://pkg.go.dev/github.com/matzehuels/bnfold/pkg/graph
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/bnfold/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/bnfold/pkg/cache
// [httputil]: https://pkg.go.dev/github.com/matzehuels/bnfold/pkg/httputil
// [errors]: https://pkg.go.dev/github.com/matzehuels/bnfold/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/bnfold/pkg/observability
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/bnfold/pkg/render/nodelink
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/bnfold/pkg/buildinfo
package pkg
