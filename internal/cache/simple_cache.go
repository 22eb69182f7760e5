package cache

import (
	"sync"
	"time"
)

// entry stores a cached value, its absolute expiration and insertion order.
type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means no expiration
	seq       uint64
}

// SimpleCache is a map-backed cache with optional locking and an optional
// size bound. When full, the oldest inserted entry is evicted.
type SimpleCache[K comparable, V any] struct {
	// nil means the cache is not goroutine-safe
	muPtr *sync.RWMutex

	items   map[K]entry[V]
	max     int
	nextSeq uint64
}

// Options controls construction of a SimpleCache.
type Options struct {
	// ConcurrencySafe guards every operation with a RWMutex.
	ConcurrencySafe bool

	// MaxEntries bounds the cache; <= 0 means unbounded.
	MaxEntries int
}

// NewSimpleCache constructs a new SimpleCache with the given options.
func NewSimpleCache[K comparable, V any](opts Options) *SimpleCache[K, V] {
	var mu *sync.RWMutex
	if opts.ConcurrencySafe {
		mu = &sync.RWMutex{}
	}
	return &SimpleCache[K, V]{
		muPtr: mu,
		items: make(map[K]entry[V]),
		max:   opts.MaxEntries,
	}
}

func (c *SimpleCache[K, V]) lockR() func() {
	if c.muPtr == nil {
		return func() {}
	}
	c.muPtr.RLock()
	return c.muPtr.RUnlock
}

func (c *SimpleCache[K, V]) lockW() func() {
	if c.muPtr == nil {
		return func() {}
	}
	c.muPtr.Lock()
	return c.muPtr.Unlock
}

// now is swapped in tests.
var now = time.Now

func (e entry[V]) expired(at time.Time) bool {
	return !e.expiresAt.IsZero() && at.After(e.expiresAt)
}

func (c *SimpleCache[K, V]) Get(key K) (V, bool) {
	unlock := c.lockR()
	defer unlock()

	var zero V
	e, ok := c.items[key]
	if !ok || e.expired(now()) {
		return zero, false
	}
	return e.value, true
}

func (c *SimpleCache[K, V]) Set(key K, value V, ttl time.Duration) {
	unlock := c.lockW()
	defer unlock()

	var exp time.Time
	if ttl > 0 {
		exp = now().Add(ttl)
	}
	if _, exists := c.items[key]; !exists && c.max > 0 && len(c.items) >= c.max {
		c.evictLocked()
	}
	c.nextSeq++
	c.items[key] = entry[V]{value: value, expiresAt: exp, seq: c.nextSeq}
}

// evictLocked drops expired entries, or the oldest one when none expired.
func (c *SimpleCache[K, V]) evictLocked() {
	ts := now()
	removed := false
	var oldestKey K
	var oldestSeq uint64
	found := false
	for k, e := range c.items {
		if e.expired(ts) {
			delete(c.items, k)
			removed = true
			continue
		}
		if !found || e.seq < oldestSeq {
			oldestKey, oldestSeq, found = k, e.seq, true
		}
	}
	if !removed && found {
		delete(c.items, oldestKey)
	}
}

func (c *SimpleCache[K, V]) Delete(key K) {
	unlock := c.lockW()
	defer unlock()
	delete(c.items, key)
}

func (c *SimpleCache[K, V]) Has(key K) bool {
	unlock := c.lockR()
	defer unlock()
	e, ok := c.items[key]
	return ok && !e.expired(now())
}

// Len counts only non-expired entries.
func (c *SimpleCache[K, V]) Len() int {
	unlock := c.lockR()
	defer unlock()
	ts := now()
	count := 0
	for _, e := range c.items {
		if !e.expired(ts) {
			count++
		}
	}
	return count
}

func (c *SimpleCache[K, V]) Clear() {
	unlock := c.lockW()
	defer unlock()
	c.items = make(map[K]entry[V])
}

func (c *SimpleCache[K, V]) PurgeExpired() {
	unlock := c.lockW()
	defer unlock()
	ts := now()
	for k, e := range c.items {
		if e.expired(ts) {
			delete(c.items, k)
		}
	}
}

var _ Cache[any, any] = (*SimpleCache[any, any])(nil)
