package dataset

import (
	"context"
	"maps"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CacheMetrics receives cache hit and miss counts. *telemetry.BusinessMetrics
// satisfies it.
type CacheMetrics interface {
	RecordCacheHit()
	RecordCacheMiss()
}

type cacheEntry struct {
	schema  RawSchema
	expires time.Time
}

// CachedProvider serves schemas from memory for up to ttl and collapses
// concurrent loads of the same code into one call to the wrapped Provider.
// Country metadata is not cached.
type CachedProvider struct {
	next    Provider
	ttl     time.Duration
	metrics CacheMetrics
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
	gen     uint64
	group   singleflight.Group
}

// loadTimeout bounds a shared load. The load runs detached from any one
// caller's context so a cancelled request cannot fail the others waiting on it.
const loadTimeout = 30 * time.Second

// NewCachedProvider wraps next. metrics may be nil.
func NewCachedProvider(next Provider, ttl time.Duration, metrics CacheMetrics) *CachedProvider {
	return &CachedProvider{
		next:    next,
		ttl:     ttl,
		metrics: metrics,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

const fallbackKey = "\x00fallback"

func (c *CachedProvider) LoadSchema(ctx context.Context, code string) (RawSchema, error) {
	return c.load(ctx, code, func(ctx context.Context) (RawSchema, error) {
		return c.next.LoadSchema(ctx, code)
	})
}

func (c *CachedProvider) LoadFallbackSchema(ctx context.Context) (RawSchema, error) {
	return c.load(ctx, fallbackKey, c.next.LoadFallbackSchema)
}

func (c *CachedProvider) LoadCountryMeta(ctx context.Context) ([]Country, error) {
	return c.next.LoadCountryMeta(ctx)
}

func (c *CachedProvider) LoadCountryCodeList(ctx context.Context) ([]string, error) {
	return c.next.LoadCountryCodeList(ctx)
}

// Invalidate drops every cached schema. Loads already in flight still answer
// their callers but are not cached, and later callers start fresh loads.
func (c *CachedProvider) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.gen++
}

func (c *CachedProvider) load(ctx context.Context, key string, fn func(context.Context) (RawSchema, error)) (RawSchema, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	gen := c.gen
	c.mu.RUnlock()

	if ok && c.now().Before(entry.expires) {
		if c.metrics != nil {
			c.metrics.RecordCacheHit()
		}
		return maps.Clone(entry.schema), nil
	}
	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}

	// The generation is part of the flight key so callers arriving after
	// Invalidate never join a load that may have read stale data.
	ch := c.group.DoChan(key+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		schema, err := fn(loadCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.entries[key] = cacheEntry{schema: schema, expires: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return schema, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return maps.Clone(res.Val.(RawSchema)), nil
	}
}
