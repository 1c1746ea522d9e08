package cache

// ScopedKeyer prefixes every key of an inner Keyer. Server instances sharing
// one Redis database use it to keep their namespaces apart:
//
//	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "nvlviz:prod:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner uses DefaultKeyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ArtifactKey generates a prefixed artifact key.
func (k *ScopedKeyer) ArtifactKey(graphHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(graphHash, opts)
}

// ImportKey generates a prefixed import key.
func (k *ScopedKeyer) ImportKey(source, query string, opts ImportKeyOpts) string {
	return k.prefix + k.inner.ImportKey(source, query, opts)
}
