// Package cache stores fold results keyed by the content hash of the
// input model.
//
// # Backends
//
//   - [NullCache]: never stores anything (caching disabled)
//   - [FileCache]: one file per entry under a sharded directory, for the CLI
//   - [RedisCache]: a shared Redis instance, for the fold server
//
// # Keys
//
// A [Keyer] turns a model hash plus the options that affect the output
// into a cache key. [DefaultKeyer] includes a schema version, so a change
// to the stored payload never reads stale entries. [ScopedKeyer] adds a
// namespace prefix.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
//
// Get reports a miss as (nil, false, nil); errors are reserved for
// backend failures. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// FoldKeyOpts are the fold inputs, besides the model itself, that change
// the stored result.
type FoldKeyOpts struct {
	// Format is the encoding of the stored payload.
	Format string `json:"format"`
}

// Keyer generates cache keys.
type Keyer interface {
	// FoldKey returns the key for the fold result of the model whose
	// encoded bytes hash to modelHash.
	FoldKey(modelHash string, opts FoldKeyOpts) string
}

// foldSchemaVersion is bumped whenever the cached payload layout or the
// folding semantics change.
const foldSchemaVersion = "fold.v1"

// DefaultKeyer is the standard [Keyer].
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// FoldKey returns "fold:<sha256 of version, hash and options>".
func (DefaultKeyer) FoldKey(modelHash string, opts FoldKeyOpts) string {
	return hashKey("fold", foldSchemaVersion, modelHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = DefaultKeyer{}
