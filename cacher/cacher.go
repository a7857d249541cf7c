// Package cacher caches the output of expensive command handlers so that
// repeated invocations within a TTL are answered without running them again.
package cacher

import (
	"context"
	"time"
)

// FetchFunc produces the value for a key on a cache miss.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Stats are the hit and miss counters of a cache.
type Stats struct {
	Hits   uint64
	Misses uint64
	Items  int
}

// Cacher caches values with fetch-on-miss. Implementations are safe for
// concurrent use and run at most one fetch per key at a time.
type Cacher[T any] interface {
	// GetOrFetch returns the cached value for key, or calls fetchFn and
	// caches its result for ttl. Errors from fetchFn are returned and not
	// cached.
	//
	// Parameters:
	//   - ctx: Passed to fetchFn; a cancelled ctx fails the lookup
	//   - key: The cache key
	//   - ttl: Lifetime of a fetched value; 0 uses the cache default
	//   - fetchFn: Producer called on a miss
	//
	// Returns:
	//   - The cached or fetched value, or the fetch error
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc[T]) (T, error)

	// Delete removes key.
	Delete(key string)

	// DeleteByPrefix removes every key starting with prefix.
	//
	// Returns:
	//   - The number of keys removed
	DeleteByPrefix(prefix string) int

	// Clear removes every key.
	Clear()

	// Stats returns the hit/miss counters and the current item count.
	Stats() Stats
}
