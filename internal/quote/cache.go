package quote

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"coinwatch/internal/metrics"
)

// DefaultTTL is how long a resolution, successful or not, is served from cache.
const DefaultTTL = 30 * time.Second

// CacheOptions tune the cache.
type CacheOptions struct {
	TTL time.Duration
	Now Clock
}

type cacheEntry struct {
	value    Quote
	found    bool
	cachedAt time.Time
}

// Cache wraps a Source with a TTL cache keyed by the raw identifier and
// coalesces concurrent lookups of the same identifier into one resolution.
// Misses are cached too, so an unresolvable identifier is retried at most
// once per TTL.
type Cache struct {
	source Source
	ttl    time.Duration
	now    Clock
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[string]cacheEntry
	flights singleflight.Group
}

// NewCache constructs a Cache around source.
func NewCache(source Source, opts CacheOptions, logger zerolog.Logger) *Cache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := opts.Now
	if now == nil {
		now = systemClock
	}
	return &Cache{
		source:  source,
		ttl:     ttl,
		now:     now,
		logger:  logger.With().Str("component", "quote_cache").Logger(),
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached quote for identifier or resolves it. A caller whose
// ctx ends early gets "not found"; the shared resolution keeps running for
// the other waiters and still populates the cache.
func (c *Cache) Get(ctx context.Context, identifier string) (Quote, bool) {
	key := strings.TrimSpace(identifier)
	if key == "" {
		return Quote{}, false
	}

	if entry, ok := c.fresh(key); ok {
		metrics.QuoteCacheTotal.WithLabelValues("hit").Inc()
		return entry.value, entry.found
	}

	detached := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(key, func() (any, error) {
		// another flight may have completed between the check above and here
		if entry, ok := c.fresh(key); ok {
			return entry, nil
		}

		q, found := c.source.Get(detached, key)
		entry := cacheEntry{value: q, found: found, cachedAt: c.now()}

		c.mu.Lock()
		c.entries[key] = entry
		c.mu.Unlock()

		c.logger.Debug().Str("identifier", key).Bool("found", found).Msg("quote resolved")
		return entry, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.QuoteCacheTotal.WithLabelValues("shared").Inc()
		} else {
			metrics.QuoteCacheTotal.WithLabelValues("miss").Inc()
		}
		entry := res.Val.(cacheEntry)
		return entry.value, entry.found
	case <-ctx.Done():
		return Quote{}, false
	}
}

func (c *Cache) fresh(key string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return cacheEntry{}, false
	}
	if c.now().Sub(entry.cachedAt) > c.ttl {
		return cacheEntry{}, false
	}
	return entry, true
}

// Prune removes expired entries and returns how many were dropped.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.cachedAt) > c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

var (
	_ Source = (*Cache)(nil)
	_ Source = (*Resolver)(nil)
)
