package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/bnfold/pkg/dag"
	"github.com/matzehuels/bnfold/pkg/dag/transform"
	"github.com/matzehuels/bnfold/pkg/graph"
	"github.com/matzehuels/bnfold/pkg/observability"
)

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <model>",
		Short: "Show which normalization layers fold and why others do not",
		Long: `Run the fold in memory and print one row per normalization layer: the
direction and target layers when it folds, the reason when it stays.
Nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInspect(cmd.Context(), cmd.OutOrStdout(), args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the fold report as JSON")

	return cmd
}

func (c *CLI) runInspect(ctx context.Context, w io.Writer, path string, asJSON bool) error {
	m, err := graph.ReadFile(path)
	if err != nil {
		return err
	}
	g, err := m.ToDAG()
	if err != nil {
		return err
	}
	res, err := transform.RunGraph(ctx, g, transform.Options{
		Logger: c.Logger,
		Hooks:  observability.LogFoldHooks{Logger: c.Logger},
	})
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Report)
	}

	fmt.Fprintln(w, StyleTitle.Render(path))
	printFoldStats(w, res.Report, g.NodeCount(), res.Graph.NodeCount(), false)
	norms := g.NodesOfKind(dag.KindNormalization)
	if len(norms) == 0 {
		printInfo(w, "No normalization layers")
		return nil
	}
	fmt.Fprintln(w, renderTable([]string{"Layer", "Status", "Detail", "Channels"}, inspectRows(norms, res.Report)))
	if n := len(res.Report.NotFoldedIDs()); n > 0 {
		printWarning(w, "%d normalization layer(s) stay in the graph", n)
	}
	return nil
}

// inspectRows builds one row per plan or not-folded entry, grouped by
// normalization layer in topological order.
func inspectRows(norms []*dag.Node, r transform.Report) [][]string {
	var rows [][]string
	for _, n := range norms {
		for _, p := range r.Plans {
			if p.NormalizationID != n.ID {
				continue
			}
			rows = append(rows, []string{n.ID, "folded " + string(p.Direction), strings.Join(p.Targets(), ", "), sliceLabel(p.Slice)})
		}
		for _, nf := range r.NotFolded {
			if nf.NodeID != n.ID {
				continue
			}
			detail := string(nf.Reason)
			if nf.Branch != "" {
				detail += " (via " + nf.Branch + ")"
			}
			rows = append(rows, []string{n.ID, "kept", detail, sliceLabel(nf.Slice)})
		}
	}
	return rows
}

func sliceLabel(s *transform.ChannelSlice) string {
	if s == nil {
		return "all"
	}
	return s.String()
}
