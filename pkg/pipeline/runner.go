package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/bnfold/pkg/cache"
	"github.com/matzehuels/bnfold/pkg/dag/transform"
	"github.com/matzehuels/bnfold/pkg/graph"
	"github.com/matzehuels/bnfold/pkg/observability"
)

// Runner encapsulates fold execution with caching.
// Both CLI and server use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache      cache.Cache
	Keyer      cache.Keyer
	Logger     *log.Logger
	Hooks      observability.FoldHooks
	CacheHooks observability.CacheHooks
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:      c,
		Keyer:      keyer,
		Logger:     logger,
		Hooks:      observability.NoopFoldHooks{},
		CacheHooks: observability.NoopCacheHooks{},
	}
}

// FoldWithCacheInfo folds m, consulting the cache first unless
// opts.Refresh is set. The returned Result carries the hit flag.
func (r *Runner) FoldWithCacheInfo(ctx context.Context, m *graph.Model, opts Options) (*Result, error) {
	if m == nil {
		return nil, fmt.Errorf("invalid options: nil model")
	}
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	start := time.Now()

	input, err := graph.Marshal(m, graph.FormatMsgpack)
	if err != nil {
		return nil, fmt.Errorf("hash model: %w", err)
	}
	inputHash := cache.Hash(input)
	cacheKey := r.Keyer.FoldKey(inputHash, cache.FoldKeyOpts{Format: string(graph.FormatMsgpack)})

	result := &Result{InputHash: inputHash}
	result.Stats.NodesBefore = len(m.Nodes)

	if !opts.Refresh {
		if cached, ok := r.lookup(ctx, cacheKey); ok {
			result.Model = cached.Model
			result.Report = cached.Report
			result.CacheHit = true
			result.Stats.NodesAfter = len(cached.Model.Nodes)
			result.Stats.Duration = time.Since(start)
			opts.Logger.Debug("fold cache hit", "model", m.Name, "hash", inputHash[:12])
			return result, nil
		}
	}

	nodes, err := m.DAGNodes()
	if err != nil {
		return nil, err
	}
	folded, err := transform.RunContext(ctx, nodes, transform.Options{
		Logger: opts.Logger,
		Hooks:  r.foldHooks(),
	})
	if err != nil {
		return nil, err
	}

	result.Model = graph.FromDAG(m.Name, folded.Graph)
	result.Report = folded.Report
	result.Stats.NodesAfter = len(result.Model.Nodes)
	result.Stats.Duration = time.Since(start)

	r.store(ctx, cacheKey, cachedFold{Model: result.Model, Report: result.Report}, opts.TTL)

	opts.Logger.Debug("folded model",
		"model", m.Name,
		"folded", result.Report.FoldedCount,
		"not_folded", len(result.Report.NotFoldedIDs()),
		"rounds", result.Report.Rounds,
		"duration", result.Stats.Duration)

	return result, nil
}

// Fold is a convenience wrapper that calls FoldWithCacheInfo and returns
// only the folded model and its report.
func (r *Runner) Fold(ctx context.Context, m *graph.Model, opts Options) (*graph.Model, transform.Report, error) {
	res, err := r.FoldWithCacheInfo(ctx, m, opts)
	if err != nil {
		return nil, transform.Report{}, err
	}
	return res.Model, res.Report, nil
}

// FoldFile reads the model at input, folds it, and writes the result to
// output in the format implied by its extension. An empty output derives
// the path with [OutputPath].
func (r *Runner) FoldFile(ctx context.Context, input, output string, opts Options) (*Result, error) {
	m, err := graph.ReadFile(input)
	if err != nil {
		return nil, err
	}
	if m.Name == "" {
		m.Name = baseName(input)
	}
	res, err := r.FoldWithCacheInfo(ctx, m, opts)
	if err != nil {
		return nil, fmt.Errorf("fold %s: %w", input, err)
	}
	if output == "" {
		output = OutputPath(input)
	}
	if err := graph.WriteFile(res.Model, output); err != nil {
		return nil, err
	}
	res.OutputPath = output
	return res, nil
}

// FoldAll folds every job with at most opts.Concurrency folds in flight.
//
// Results are returned in job order. A failing job does not stop the
// others; the returned error joins every job error. Cancelling ctx stops
// jobs that have not started.
func (r *Runner) FoldAll(ctx context.Context, jobs []Job, opts Options) ([]JobResult, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	results := make([]JobResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, job := range jobs {
		results[i].Job = job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			res, err := r.FoldFile(gctx, job.Input, job.Output, opts)
			results[i].Result, results[i].Err = res, err
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, jr := range results {
		if jr.Err != nil {
			errs = append(errs, jr.Err)
		}
	}
	return results, errors.Join(errs...)
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) lookup(ctx context.Context, key string) (*cachedFold, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		r.cacheHooks().OnCacheMiss(ctx, "fold")
		return nil, false
	}
	var cached cachedFold
	if err := msgpack.Unmarshal(data, &cached); err != nil || cached.Model == nil {
		// Undecodable entries are treated as misses and overwritten.
		r.cacheHooks().OnCacheMiss(ctx, "fold")
		return nil, false
	}
	r.cacheHooks().OnCacheHit(ctx, "fold")
	return &cached, true
}

func (r *Runner) store(ctx context.Context, key string, v cachedFold, ttl time.Duration) {
	data, err := graph.Marshal(v, graph.FormatMsgpack)
	if err != nil {
		r.Logger.Warn("encode cache entry", "error", err)
		return
	}
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Warn("store cache entry", "error", err)
		return
	}
	r.cacheHooks().OnCacheSet(ctx, "fold", len(data))
}

func (r *Runner) foldHooks() observability.FoldHooks {
	if r.Hooks == nil {
		return observability.NoopFoldHooks{}
	}
	return r.Hooks
}

func (r *Runner) cacheHooks() observability.CacheHooks {
	if r.CacheHooks == nil {
		return observability.NoopCacheHooks{}
	}
	return r.CacheHooks
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
