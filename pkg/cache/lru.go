package cache

import (
	"context"
	"slices"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLRUSize is the entry capacity used when none is configured.
const DefaultLRUSize = 64

type entry struct {
	data    []byte
	expires time.Time // zero means no expiry
}

// LRUCache is a bounded in-memory [Cache]. The least recently used entry is
// evicted when the capacity is reached; expired entries are dropped lazily
// on lookup. It is safe for concurrent use.
type LRUCache struct {
	entries *lru.Cache[string, entry]
	now     func() time.Time
}

// NewLRUCache creates a cache holding at most size entries. A size below one
// uses [DefaultLRUSize].
func NewLRUCache(size int) (*LRUCache, error) {
	if size < 1 {
		size = DefaultLRUSize
	}
	entries, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{entries: entries, now: time.Now}, nil
}

// Get returns a copy of the stored value.
func (c *LRUCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.entries.Remove(key)
		return nil, false, nil
	}
	return slices.Clone(e.data), true, nil
}

// Set stores a copy of data.
func (c *LRUCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	e := entry{data: slices.Clone(data)}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.entries.Add(key, e)
	return nil
}

// Delete removes key.
func (c *LRUCache) Delete(_ context.Context, key string) error {
	c.entries.Remove(key)
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// dropped.
func (c *LRUCache) Len() int { return c.entries.Len() }

// Purge removes every entry.
func (c *LRUCache) Purge() { c.entries.Purge() }

// Close purges the cache.
func (c *LRUCache) Close() error {
	c.entries.Purge()
	return nil
}

var _ Cache = (*LRUCache)(nil)
