package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/bnfold/pkg/dag/transform"
	"github.com/matzehuels/bnfold/pkg/graph"
	"github.com/matzehuels/bnfold/pkg/render/nodelink"
)

// dotOpts holds the command-line flags for the dot command.
type dotOpts struct {
	output   string // output file; stdout when empty
	svg      bool   // render SVG instead of DOT source
	folded   bool   // draw the folded graph with rewritten layers highlighted
	detailed bool   // include op, channels and weight shapes in labels
}

// dotCommand creates the dot command.
func (c *CLI) dotCommand() *cobra.Command {
	var opts dotOpts

	cmd := &cobra.Command{
		Use:   "dot <model>",
		Short: "Write a Graphviz diagram of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if opts.output != "" {
				f, err := os.Create(opts.output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := c.runDot(cmd.Context(), w, args[0], opts); err != nil {
				return err
			}
			if opts.output != "" {
				printFile(cmd.ErrOrStderr(), opts.output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.svg, "svg", false, "render SVG instead of DOT")
	cmd.Flags().BoolVar(&opts.folded, "folded", false, "draw the folded graph and highlight rewritten layers")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show op, channels and weight shapes")

	return cmd
}

func (c *CLI) runDot(ctx context.Context, w io.Writer, path string, opts dotOpts) error {
	m, err := graph.ReadFile(path)
	if err != nil {
		return err
	}
	g, err := m.ToDAG()
	if err != nil {
		return err
	}

	nopts := nodelink.Options{Detailed: opts.detailed}
	if opts.folded {
		res, err := transform.RunGraph(ctx, g, transform.Options{Logger: c.Logger})
		if err != nil {
			return err
		}
		g = res.Graph
		nopts.Highlight = make(map[string]bool)
		for _, p := range res.Report.Plans {
			for _, id := range p.Targets() {
				nopts.Highlight[id] = true
			}
		}
	}

	dot := nodelink.ToDOT(g, nopts)
	if !opts.svg {
		_, err = io.WriteString(w, dot)
		return err
	}
	svg, err := nodelink.RenderSVG(ctx, dot)
	if err != nil {
		return err
	}
	_, err = w.Write(svg)
	return err
}
