package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/bnfold/pkg/errors"
	"github.com/matzehuels/bnfold/pkg/pipeline"
)

// foldOpts holds the command-line flags for the fold command.
type foldOpts struct {
	output  string // output path, single input only
	noCache bool   // bypass the result cache entirely
	refresh bool   // recompute but still store the result
	jobs    int    // parallel folds; 0 keeps the config value
}

// foldCommand creates the fold command.
func (c *CLI) foldCommand() *cobra.Command {
	var opts foldOpts

	cmd := &cobra.Command{
		Use:   "fold <model>...",
		Short: "Fold normalization layers and write <name>.folded.<ext>",
		Long: `Fold batch normalization layers into adjacent dense and convolution layers.

Each model is read as JSON (.json) or msgpack (.msgpack, .mp) and written
next to the input as <name>.folded.<ext> unless --output is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != "" && len(args) > 1 {
				return errors.New(errors.ErrCodeInvalidInput, "--output needs exactly one model, got %d", len(args))
			}
			return c.runFold(cmd.Context(), cmd.OutOrStdout(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single model only)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the result cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompute even if a cached result exists")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 0, "number of models folded in parallel (default from config)")

	return cmd
}

func (c *CLI) runFold(ctx context.Context, w io.Writer, inputs []string, opts foldOpts) error {
	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	popts := c.pipelineOptions()
	popts.Refresh = opts.refresh
	if opts.jobs != 0 {
		popts.Concurrency = opts.jobs
	}

	jobs := make([]pipeline.Job, len(inputs))
	for i, in := range inputs {
		jobs[i] = pipeline.Job{Input: in, Output: opts.output}
	}

	prog := newProgress(c.Logger)
	results, err := runner.FoldAll(ctx, jobs, popts)
	if results == nil {
		return err
	}

	failed := 0
	for _, jr := range results {
		if jr.Err != nil {
			failed++
			printError(w, "%s: %s", jr.Job.Input, errors.UserMessage(jr.Err))
			continue
		}
		res := jr.Result
		printSuccess(w, "Folded %s", jr.Job.Input)
		printFile(w, res.OutputPath)
		printFoldStats(w, res.Report, res.Stats.NodesBefore, res.Stats.NodesAfter, res.CacheHit)
		printReasons(w, res.Report)
	}
	if len(results) > 1 {
		prog.done(fmt.Sprintf("Folded %d of %d models", len(results)-failed, len(results)))
	}

	if failed > 0 {
		if len(results) == 1 {
			return err
		}
		return fmt.Errorf("%d of %d models failed", failed, len(results))
	}
	return nil
}
