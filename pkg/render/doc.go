// Package render groups the visualization backends for inference graphs.
//
// The [nodelink] subpackage renders directed node-link diagrams using
// Graphviz:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// [nodelink]: github.com/matzehuels/bnfold/pkg/render/nodelink
package render
