package transform

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/bnfold/pkg/dag"
	"github.com/matzehuels/bnfold/pkg/observability"
)

// Options configures a folding pass. The zero value is valid.
type Options struct {
	// Logger receives round-level debug output. Nil discards.
	Logger *log.Logger
	// Hooks receives per-node events. Nil means no-op.
	Hooks observability.FoldHooks
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if o.Hooks == nil {
		o.Hooks = observability.NoopFoldHooks{}
	}
	return o
}

// Result is the output of a folding pass.
type Result struct {
	Graph  *dag.Graph
	Report Report
}

// Run folds every foldable normalization node of the graph described by
// nodes. The caller's nodes and tensors are copied once and never mutated.
//
// Run fails with a GRAPH_* error when nodes do not form a valid graph and
// with a FOLD_* error when tensors are inconsistent. Nodes that merely
// cannot be folded are listed in the report.
func Run(nodes []dag.Node, opts Options) (*Result, error) {
	return RunContext(context.Background(), nodes, opts)
}

// RunContext is [Run] with a context that is checked between rounds and
// passed to hooks.
func RunContext(ctx context.Context, nodes []dag.Node, opts Options) (*Result, error) {
	g, err := dag.Build(nodes)
	if err != nil {
		return nil, err
	}
	return run(ctx, g, opts.withDefaults())
}

// RunGraph folds a copy of g. g itself is not modified.
func RunGraph(ctx context.Context, g *dag.Graph, opts Options) (*Result, error) {
	return run(ctx, g.Clone(), opts.withDefaults())
}

// run repeats analyze, expand, complete, fold and rewrite on the owned
// graph g until a round folds nothing. Chains of normalization nodes need
// one round per link.
func run(ctx context.Context, g *dag.Graph, opts Options) (_ *Result, err error) {
	start := time.Now()
	report := Report{NotFolded: []NotFolded{}, Plans: []FoldPlan{}}
	defer func() {
		opts.Hooks.OnPassComplete(ctx, report.FoldedCount, len(report.NotFolded), report.Rounds, time.Since(start), err)
	}()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report.Rounds++
		opts.Hooks.OnRoundStart(ctx, report.Rounds, g.NodeCount())

		a, err := Analyze(g)
		if err != nil {
			return nil, err
		}
		opts.Logger.Debug("analyzed", "round", report.Rounds, "plans", len(a.Plans), "not_folded", len(a.NotFolded))
		if len(a.Plans) == 0 {
			report.NotFolded = append(report.NotFolded, a.NotFolded...)
			for _, nf := range a.NotFolded {
				opts.Hooks.OnNotFolded(ctx, nf.NodeID, string(nf.Reason))
			}
			break
		}

		if added := completeBiases(g, a.Plans); len(added) > 0 {
			opts.Logger.Debug("added zero bias", "nodes", added)
		}
		if err := foldWeights(g, a.Plans); err != nil {
			return nil, err
		}

		folded := make(map[string]bool)
		for _, p := range a.Plans {
			if !folded[p.NormalizationID] {
				folded[p.NormalizationID] = true
				opts.Hooks.OnFolded(ctx, p.NormalizationID, string(p.Direction), targetsOf(a.Plans, p.NormalizationID))
			}
		}
		if g, err = rewrite(g, folded); err != nil {
			return nil, err
		}
		report.FoldedCount += len(folded)
		report.Plans = append(report.Plans, a.Plans...)
	}

	return &Result{Graph: g, Report: report}, nil
}

func targetsOf(plans []FoldPlan, normID string) []string {
	var out []string
	for _, p := range plans {
		if p.NormalizationID == normID {
			out = append(out, p.Targets()...)
		}
	}
	return out
}
