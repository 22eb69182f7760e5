package cache

import "time"

// Cache is the key-value API behind the session lookups (product owners per
// project, users whose lookup already failed).
type Cache[K comparable, V any] interface {
	// Get returns the value and whether it was present and not expired.
	Get(key K) (V, bool)

	// Set stores the value with an optional TTL. If ttl <= 0, the entry does not expire.
	Set(key K, value V, ttl time.Duration)

	Delete(key K)

	// Has reports whether a key is present and not expired.
	Has(key K) bool

	// Len returns the number of non-expired items currently stored.
	Len() int

	// Clear removes all entries. Sessions call it on logout.
	Clear()

	PurgeExpired()
}

// IDSet is a bounded set of ids, e.g. the lookups that already failed.
type IDSet struct {
	c Cache[string, struct{}]
}

// NewIDSet builds a set holding at most max ids.
func NewIDSet(max int) *IDSet {
	return &IDSet{c: NewSimpleCache[string, struct{}](Options{ConcurrencySafe: true, MaxEntries: max})}
}

func (s *IDSet) Add(id string)           { s.c.Set(id, struct{}{}, 0) }
func (s *IDSet) Contains(id string) bool { return s.c.Has(id) }
func (s *IDSet) Remove(id string)        { s.c.Delete(id) }
func (s *IDSet) Len() int                { return s.c.Len() }
func (s *IDSet) Clear()                  { s.c.Clear() }
