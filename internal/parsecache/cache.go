// Package parsecache is a bounded, time-limited cache for parse results,
// keyed by a hash of the cleaned content and the schema identity. Entries
// are written once and never mutated, so concurrent writers racing on the
// same key may both write without corruption; last write wins and the
// value is equivalent.
package parsecache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultSize = 512
	DefaultTTL  = 10 * time.Minute
)

// Cache wraps an expirable LRU. The zero value is not usable; a nil *Cache
// is, and behaves as a disabled cache.
type Cache[V any] struct {
	lru *expirable.LRU[string, V]
}

// New builds a cache holding up to size entries for at most ttl each.
// Non-positive arguments fall back to the defaults.
func New[V any](size int, ttl time.Duration) *Cache[V] {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{lru: expirable.NewLRU[string, V](size, nil, ttl)}
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil || c.lru == nil {
		return zero, false
	}
	return c.lru.Get(key)
}

// Add stores v under key.
func (c *Cache[V]) Add(key string, v V) {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Add(key, v)
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	if c == nil || c.lru == nil {
		return 0
	}
	return c.lru.Len()
}

// Key derives the cache key from cleaned content and a schema fingerprint.
func Key(content, schemaFingerprint string) string {
	h := sha256.New()
	h.Write([]byte(content))
	h.Write([]byte{0})
	h.Write([]byte(schemaFingerprint))
	return hex.EncodeToString(h.Sum(nil))
}
