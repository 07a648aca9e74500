package domain

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheEntry pairs a cached value with its expiry, since golang-lru/v2 has
// no TTL concept of its own. Grounded on dotsetgreg-dotagent's direct use
// of the same library for its own bounded caches, extended here with the
// thin expiry wrapper §4.F calls for.
type cacheEntry[V any] struct {
	value   V
	expires time.Time
}

// ttlCache is a small fixed-capacity, TTL-bounded cache backed by
// golang-lru/v2. A value past its expiry is treated as a miss and evicted
// on the next read rather than proactively swept.
type ttlCache[V any] struct {
	lru *lru.Cache[string, cacheEntry[V]]
	ttl time.Duration
}

func newTTLCache[V any](size int, ttl time.Duration) *ttlCache[V] {
	c, _ := lru.New[string, cacheEntry[V]](size)
	return &ttlCache[V]{lru: c, ttl: ttl}
}

func (c *ttlCache[V]) Get(key string) (V, bool) {
	entry, ok := c.lru.Get(key)
	if !ok || time.Now().After(entry.expires) {
		var zero V
		if ok {
			c.lru.Remove(key)
		}
		return zero, false
	}
	return entry.value, true
}

func (c *ttlCache[V]) Set(key string, value V) {
	c.lru.Add(key, cacheEntry[V]{value: value, expires: time.Now().Add(c.ttl)})
}

func (c *ttlCache[V]) Purge() {
	c.lru.Purge()
}
