// Package nodelink renders inference graphs as node-link diagrams.
//
// # Usage
//
// Convert a graph to DOT format, then render to SVG:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// # Styling
//
// Each node kind has its own fill: affine layers blue, normalization
// yellow, elementwise red, merges green trapezoids, inputs and outputs
// grey ovals, opaque layers dashed. Nodes named in [Options].Highlight get
// a heavy outline; the CLI uses it to mark the layers a fold rewrote.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering, so no Graphviz installation is required.
package nodelink
