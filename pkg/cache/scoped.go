package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation, for
// example when several fold servers share one Redis instance:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// FoldKey generates a prefixed key for fold results.
func (k *ScopedKeyer) FoldKey(modelHash string, opts FoldKeyOpts) string {
	return k.prefix + k.inner.FoldKey(modelHash, opts)
}
