package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/bnfold/pkg/dag"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds the op, channel count and weight shapes to labels.
	// When false, only the node ID is shown.
	Detailed bool

	// Highlight marks nodes (typically the affine targets of a fold) with
	// a heavy outline.
	Highlight map[string]bool
}

// ToDOT converts a graph to Graphviz DOT format for node-link visualization.
// Nodes are emitted in insertion order and edges in input order, so the
// output is stable for a given graph.
func ToDOT(g *dag.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.4;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		label := fmtLabel(g, n, opts.Detailed)
		attrs := fmtAttrs(n, label, opts.Highlight[n.ID])
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, n := range g.Nodes() {
		for _, in := range n.Inputs {
			fmt.Fprintf(&buf, "  %q -> %q;\n", in, n.ID)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(g *dag.Graph, n *dag.Node, detailed bool) string {
	if !detailed {
		return n.ID
	}

	head := n.Kind.String()
	if n.Op != "" {
		head = n.Op
	}
	parts := []string{head}
	if c := g.Channels(n.ID); c > 0 {
		parts = append(parts, fmt.Sprintf("channels: %d", c))
	}
	roles := make([]string, 0, len(n.Weights))
	for r := range n.Weights {
		roles = append(roles, string(r))
	}
	slices.Sort(roles)
	for _, r := range roles {
		parts = append(parts, fmt.Sprintf("%s: %v", r, n.Weights[dag.Role(r)].Shape()))
	}

	return n.ID + "\n" + strings.Join(parts, "\n")
}

// kindStyles maps node kinds to DOT attributes. Kinds without an entry
// use the graph defaults.
var kindStyles = map[dag.Kind][]string{
	dag.KindInput:         {"shape=oval", "fillcolor=\"#e8e8e8\""},
	dag.KindOutput:        {"shape=oval", "fillcolor=\"#e8e8e8\""},
	dag.KindAffine:        {"fillcolor=\"#cfe2f3\""},
	dag.KindNormalization: {"fillcolor=\"#fff2cc\""},
	dag.KindElementwise:   {"fillcolor=\"#f4cccc\""},
	dag.KindMerge:         {"shape=invtrapezium", "style=filled", "fillcolor=\"#d9ead3\""},
	dag.KindOpaque:        {"style=\"rounded,filled,dashed\"", "fillcolor=lightgrey"},
}

func fmtAttrs(n *dag.Node, label string, highlight bool) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	attrs = append(attrs, kindStyles[n.Kind]...)
	if highlight {
		attrs = append(attrs, "penwidth=3", "color=\"#1c4587\"")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with one
// whose viewBox starts at the origin.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(header))
}
