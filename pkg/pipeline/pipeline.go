// Package pipeline provides the load → fold → save pipeline for bnfold.
//
// This package wraps the folding pass with model codecs, result caching
// and batch execution, so the CLI and the fold server share one code path.
//
// # Architecture
//
// A fold consists of three stages:
//
//  1. Load: read a model file (JSON or msgpack) into a [graph.Model]
//  2. Fold: hash the model, consult the cache, run the pass on a miss
//  3. Save: write the folded model next to the input or to a given path
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	res, err := runner.FoldFile(ctx, "resnet.json", "", pipeline.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Report.FoldedCount)
//
// Fold many files with bounded concurrency:
//
//	results, err := runner.FoldAll(ctx, jobs, pipeline.Options{Concurrency: 8})
package pipeline

import (
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/bnfold/pkg/dag/transform"
	"github.com/matzehuels/bnfold/pkg/errors"
	"github.com/matzehuels/bnfold/pkg/graph"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultConcurrency bounds parallel folds in FoldAll.
	DefaultConcurrency = 4

	// DefaultTTL is how long fold results stay cached.
	DefaultTTL = 7 * 24 * time.Hour

	// MaxConcurrency caps user-supplied concurrency.
	MaxConcurrency = 64
)

// FoldedSuffix is inserted before the extension of derived output paths.
const FoldedSuffix = ".folded"

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options configures a fold run.
type Options struct {
	// Refresh skips the cache lookup but still stores the new result.
	Refresh bool `json:"refresh,omitempty"`
	// Concurrency bounds FoldAll. Zero selects DefaultConcurrency.
	Concurrency int `json:"concurrency,omitempty"`
	// TTL is the cache lifetime. Zero selects DefaultTTL.
	TTL time.Duration `json:"ttl,omitempty"`

	// Logger overrides the runner's logger for this run.
	Logger *log.Logger `json:"-"`

	validated bool
}

// ValidateAndSetDefaults checks fields and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Concurrency < 0 || o.Concurrency > MaxConcurrency {
		return errors.New(errors.ErrCodeInvalidInput, "concurrency must be between 1 and %d, got %d", MaxConcurrency, o.Concurrency)
	}
	if o.Concurrency == 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.TTL < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "ttl must not be negative, got %s", o.TTL)
	}
	if o.TTL == 0 {
		o.TTL = DefaultTTL
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// =============================================================================
// Results
// =============================================================================

// Result contains the outputs of one fold.
type Result struct {
	// Model is the folded model.
	Model *graph.Model

	// Report describes what was folded and what was not.
	Report transform.Report

	// InputHash is the content hash of the input model.
	InputHash string

	// OutputPath is where the model was written, for file folds.
	OutputPath string

	// CacheHit is true when the result came from the cache.
	CacheHit bool

	// Stats contains timing and size information.
	Stats Stats
}

// Stats contains fold statistics.
type Stats struct {
	NodesBefore int
	NodesAfter  int
	Duration    time.Duration
}

// Job is one file to fold in a batch. An empty Output derives the path
// with [OutputPath].
type Job struct {
	Input  string
	Output string
}

// JobResult pairs a job with its outcome. Exactly one of Result and Err
// is set.
type JobResult struct {
	Job    Job
	Result *Result
	Err    error
}

// OutputPath derives "<dir>/<base>.folded<ext>" from an input path.
func OutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + FoldedSuffix + ext
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// cachedFold is the cache payload.
type cachedFold struct {
	Model  *graph.Model     `msgpack:"model"`
	Report transform.Report `msgpack:"report"`
}
