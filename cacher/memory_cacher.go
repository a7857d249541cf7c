package cacher

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// MemoryCacher is the in-process Cacher backed by go-cache. Concurrent
// misses on the same key share a single fetch through singleflight.
type MemoryCacher[T any] struct {
	cache  *cache.Cache
	group  singleflight.Group
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewMemoryCacher creates an empty in-memory cache.
//
// Parameters:
//   - defaultTTL: Lifetime used when GetOrFetch is called with ttl 0
//     (cache.NoExpiration keeps such entries forever)
//   - cleanupInterval: How often expired entries are purged; 0 disables the
//     background janitor and expired entries are dropped lazily
//
// Returns:
//   - A new *MemoryCacher
func NewMemoryCacher[T any](defaultTTL, cleanupInterval time.Duration) *MemoryCacher[T] {
	return &MemoryCacher[T]{
		cache: cache.New(defaultTTL, cleanupInterval),
	}
}

// GetOrFetch implements Cacher.
func (c *MemoryCacher[T]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc[T]) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	if v, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return v, nil
	}

	fetched := false
	res, err, _ := c.group.Do(key, func() (any, error) {
		// a concurrent fetch may have filled the entry while we waited
		if v, ok := c.lookup(key); ok {
			return v, nil
		}

		fetched = true
		v, err := fetchFn(ctx)
		if err != nil {
			return nil, err
		}

		if ttl == 0 {
			ttl = cache.DefaultExpiration
		}

		c.cache.Set(key, v, ttl)
		return v, nil
	})

	switch {
	case fetched:
		c.misses.Add(1)
	case err == nil:
		c.hits.Add(1)
	}

	if err != nil {
		return zero, fmt.Errorf("cacher: fetch %q: %w", key, err)
	}

	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("cacher: unexpected type %T for key %q", res, key)
	}

	return v, nil
}

func (c *MemoryCacher[T]) lookup(key string) (T, bool) {
	raw, found := c.cache.Get(key)
	if !found {
		var zero T
		return zero, false
	}

	v, ok := raw.(T)
	return v, ok
}

// Delete implements Cacher.
func (c *MemoryCacher[T]) Delete(key string) {
	c.cache.Delete(key)
}

// DeleteByPrefix implements Cacher.
func (c *MemoryCacher[T]) DeleteByPrefix(prefix string) int {
	n := 0
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
			n++
		}
	}

	return n
}

// Clear implements Cacher.
func (c *MemoryCacher[T]) Clear() {
	c.cache.Flush()
}

// Stats implements Cacher.
func (c *MemoryCacher[T]) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Items:  c.cache.ItemCount(),
	}
}
