package cache

// ScopedKeyer prefixes every key of an inner [Keyer]. The serve command
// scopes keys by input file so that one shared cache can hold entries for
// several sources without mixing their statistics.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer uses
// [DefaultKeyer].
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ClosureKey generates a prefixed closure key.
func (k *ScopedKeyer) ClosureKey(graphHash string, opts ClosureKeyOpts) string {
	return k.prefix + k.inner.ClosureKey(graphHash, opts)
}

var _ Keyer = (*ScopedKeyer)(nil)
