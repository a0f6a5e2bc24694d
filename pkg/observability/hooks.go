// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Hooks are plain values
// passed through options structs ([transform.Options], [pipeline.Runner],
// the HTTP server); there is no global registry, so two passes running in
// the same process never share instrumentation by accident.
//
// # Architecture
//
//   - Hook interfaces for each event category
//   - No-op implementations used when a caller passes nil
//   - Logging implementations backed by charmbracelet/log
//
// # Usage
//
//	logger := log.New(os.Stderr)
//	res, err := transform.Run(nodes, transform.Options{
//	    Hooks: observability.LogFoldHooks{Logger: logger},
//	})
package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// =============================================================================
// Fold Hooks
// =============================================================================

// FoldHooks receives events from the normalization folding pass.
//
// Hooks are called synchronously from the goroutine running the pass and
// must not retain the targets slice.
type FoldHooks interface {
	// OnRoundStart is called before each analysis round.
	OnRoundStart(ctx context.Context, round, nodeCount int)

	// OnFolded is called for each normalization node that was folded.
	OnFolded(ctx context.Context, nodeID, direction string, targets []string)

	// OnNotFolded is called for each node (or branch) left in place.
	OnNotFolded(ctx context.Context, nodeID, reason string)

	// OnPassComplete is called once, after the last round or on failure.
	OnPassComplete(ctx context.Context, folded, notFolded, rounds int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the fold server.
type HTTPHooks interface {
	// OnRequest records an incoming request.
	OnRequest(ctx context.Context, requestID, method, path string)

	// OnResponse records the response written for a request.
	OnResponse(ctx context.Context, requestID, method, path string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopFoldHooks is a no-op implementation of FoldHooks.
type NoopFoldHooks struct{}

func (NoopFoldHooks) OnRoundStart(context.Context, int, int)                              {}
func (NoopFoldHooks) OnFolded(context.Context, string, string, []string)                  {}
func (NoopFoldHooks) OnNotFolded(context.Context, string, string)                         {}
func (NoopFoldHooks) OnPassComplete(context.Context, int, int, int, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}

// =============================================================================
// Logging Implementations
// =============================================================================

// LogFoldHooks writes fold events to a logger. Per-node events are logged
// at debug level, the pass summary at info.
type LogFoldHooks struct {
	Logger *log.Logger
}

func (h LogFoldHooks) OnRoundStart(_ context.Context, round, nodeCount int) {
	h.Logger.Debug("fold round", "round", round, "nodes", nodeCount)
}

func (h LogFoldHooks) OnFolded(_ context.Context, nodeID, direction string, targets []string) {
	h.Logger.Debug("folded", "node", nodeID, "direction", direction, "into", targets)
}

func (h LogFoldHooks) OnNotFolded(_ context.Context, nodeID, reason string) {
	h.Logger.Debug("not folded", "node", nodeID, "reason", reason)
}

func (h LogFoldHooks) OnPassComplete(_ context.Context, folded, notFolded, rounds int, duration time.Duration, err error) {
	if err != nil {
		h.Logger.Error("fold failed", "err", err, "duration", duration)
		return
	}
	h.Logger.Info("fold complete", "folded", folded, "not_folded", notFolded, "rounds", rounds, "duration", duration)
}

// LogCacheHooks writes cache events to a logger at debug level.
type LogCacheHooks struct {
	Logger *log.Logger
}

func (h LogCacheHooks) OnCacheHit(_ context.Context, keyType string) {
	h.Logger.Debug("cache hit", "type", keyType)
}

func (h LogCacheHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.Logger.Debug("cache miss", "type", keyType)
}

func (h LogCacheHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.Logger.Debug("cache set", "type", keyType, "bytes", size)
}

// LogHTTPHooks writes request events to a logger.
type LogHTTPHooks struct {
	Logger *log.Logger
}

func (h LogHTTPHooks) OnRequest(_ context.Context, requestID, method, path string) {
	h.Logger.Debug("request", "id", requestID, "method", method, "path", path)
}

func (h LogHTTPHooks) OnResponse(_ context.Context, requestID, method, path string, statusCode int, duration time.Duration) {
	h.Logger.Info("response", "id", requestID, "method", method, "path", path, "status", statusCode, "duration", duration)
}
