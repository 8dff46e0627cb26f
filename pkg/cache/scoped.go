package cache

// ScopedKeyer prefixes every key of an inner Keyer. The CLI scopes result
// keys by release, since a new build may fill the same input differently:
//
//	keyer := cache.NewScopedKeyer(nil, buildinfo.Get().Version+":")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or the DefaultKeyer when inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) ResultKey(imageHash, maskHash string, opts ResultKeyOpts) string {
	return k.prefix + k.inner.ResultKey(imageHash, maskHash, opts)
}
