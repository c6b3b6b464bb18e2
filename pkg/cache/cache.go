// Package cache stores computed analysis results keyed by graph content.
//
// Closures are the expensive part of an analysis. Identical graphs (the same
// accepted nodes and edges) analyzed under the same filter yield identical
// closures, so the analysis pipeline looks them up here before computing.
//
// Two implementations are provided:
//   - [LRUCache]: bounded in-memory cache with per-entry TTL
//   - [NullCache]: never stores anything; used when caching is disabled
//
// Keys come from a [Keyer]. Nothing is persisted across process runs.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}
