package vm

import "sync"

// Per-call-site caches
//
// Every instruction that resolves a constant-pool reference caches the
// result on its method, keyed by pc. The first successful resolution wins;
// a racing resolver that loses simply adopts the stored value, so entries
// are write-once and readers never see a partial update.
//
// invoke-interface sites additionally keep a polymorphic inline cache of
// receiver class to concrete method:
// - most sites see one receiver class (monomorphic)
// - some see a handful (polymorphic, up to MaxPICEntries)
// - a few see many (megamorphic, full lookup every time)

// cachedAt returns the value cached for (m, pc), resolving it on first use.
// Failed resolutions are not cached.
func cachedAt[T any](m *Method, pc int, resolve func() (T, error)) (T, error) {
	return cachedWhen(m, pc, func() (T, bool, error) {
		r, err := resolve()
		return r, true, err
	})
}

// cachedWhen is cachedAt for resolutions that are only stable once resolve
// reports them so. A static member whose class is still initializing on
// this interpreter is returned but not stored, so other interpreters at the
// same site go through class initialization themselves.
func cachedWhen[T any](m *Method, pc int, resolve func() (T, bool, error)) (T, error) {
	if v, ok := m.sites.Load(pc); ok {
		return v.(T), nil
	}
	r, stable, err := resolve()
	if err != nil {
		var zero T
		return zero, err
	}
	if !stable {
		return r, nil
	}
	v, _ := m.sites.LoadOrStore(pc, r)
	return v.(T), nil
}

// CacheState represents the current state of an inline cache.
type CacheState uint8

const (
	CacheEmpty       CacheState = iota // No cached lookup yet
	CacheMonomorphic                   // Single (class, method) cached
	CachePolymorphic                   // 2-6 entries
	CacheMegamorphic                   // Too many types, use full lookup
)

// MaxPICEntries is the maximum number of entries in a polymorphic inline cache.
const MaxPICEntries = 6

// InlineCacheEntry holds a single cached method lookup result.
type InlineCacheEntry struct {
	Class  *Class
	Method *Method
}

// InlineCache is the receiver-class cache for one call site. It moves
// Empty -> Monomorphic -> Polymorphic -> Megamorphic. Safe for concurrent
// use by interpreters sharing the method.
type InlineCache struct {
	mu      sync.Mutex
	State   CacheState
	Entries [MaxPICEntries]InlineCacheEntry
	Count   int

	Hits   uint64
	Misses uint64
}

// Lookup returns the cached method for a receiver class, or nil on a miss.
func (ic *InlineCache) Lookup(class *Class) *Method {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	switch ic.State {
	case CacheMonomorphic, CachePolymorphic:
		for i := 0; i < ic.Count; i++ {
			if ic.Entries[i].Class == class {
				ic.Hits++
				return ic.Entries[i].Method
			}
		}
	}
	ic.Misses++
	return nil
}

// Update records a (class, method) pair, upgrading the cache state.
func (ic *InlineCache) Update(class *Class, method *Method) {
	if method == nil {
		return
	}
	ic.mu.Lock()
	defer ic.mu.Unlock()

	switch ic.State {
	case CacheEmpty:
		ic.State = CacheMonomorphic
		ic.Entries[0] = InlineCacheEntry{Class: class, Method: method}
		ic.Count = 1

	case CacheMonomorphic, CachePolymorphic:
		for i := 0; i < ic.Count; i++ {
			if ic.Entries[i].Class == class {
				return
			}
		}
		if ic.Count < MaxPICEntries {
			ic.Entries[ic.Count] = InlineCacheEntry{Class: class, Method: method}
			ic.Count++
			ic.State = CachePolymorphic
			return
		}
		ic.State = CacheMegamorphic
		ic.Entries = [MaxPICEntries]InlineCacheEntry{}
		ic.Count = 0

	case CacheMegamorphic:
	}
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (ic *InlineCache) HitRate() float64 {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	total := ic.Hits + ic.Misses
	if total == 0 {
		return 0
	}
	return float64(ic.Hits) * 100 / float64(total)
}

// Reset clears the cache back to empty state.
func (ic *InlineCache) Reset() {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.State = CacheEmpty
	ic.Count = 0
	ic.Hits = 0
	ic.Misses = 0
	ic.Entries = [MaxPICEntries]InlineCacheEntry{}
}

// interfaceSite is the cache entry of an invoke-interface instruction.
type interfaceSite struct {
	base *Method
	ic   InlineCache
}

// InterfaceCache returns the inline cache of the invoke-interface at pc in
// m, or nil if that site has not executed.
func InterfaceCache(m *Method, pc int) *InlineCache {
	if v, ok := m.sites.Load(pc); ok {
		if site, ok := v.(*interfaceSite); ok {
			return &site.ic
		}
	}
	return nil
}
