// Package httpcache provides the response cache and throttled fetcher the
// source adapters share. Every page fetch goes through here: a warm cache
// replays an entire run without a single network request, which keeps
// development iteration from hammering the storefronts.
package httpcache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/powderline/quiver/pkg/catalog"
	"github.com/powderline/quiver/pkg/errors"
)

// Backend is the persistent slice of the store the cache writes through
// to. The full store in internal/store satisfies it.
type Backend interface {
	CacheEntry(ctx context.Context, url string) (*catalog.CacheEntry, error)
	PutCacheEntry(ctx context.Context, entry catalog.CacheEntry) error
}

// Cache is a two-level response cache: a go-cache memory layer in front
// of a persistent backend. Entries never expire from the backend; max age
// is the reader's choice at lookup time.
type Cache struct {
	backend Backend
	mem     *gocache.Cache
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the cache clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates a cache over a persistent backend. The memory layer
// holds entries for an hour; staleness against the caller's max age is
// always judged from the entry's FetchedAt, not the memory TTL.
func NewCache(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		mem:     gocache.New(time.Hour, 10*time.Minute),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached body for a URL if it was fetched within maxAge,
// or nil on a miss. A maxAge of zero or less disables the freshness
// check: the entry is returned regardless of age. A stale or absent
// entry is a miss, never an error; only backend failures surface.
func (c *Cache) Get(ctx context.Context, url string, maxAge time.Duration) (*catalog.CacheEntry, error) {
	if v, ok := c.mem.Get(url); ok {
		entry := v.(catalog.CacheEntry)
		if c.fresh(entry, maxAge) {
			return &entry, nil
		}
	}

	entry, err := c.backend.CacheEntry(ctx, url)
	if errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.mem.Set(url, *entry, gocache.DefaultExpiration)
	if !c.fresh(*entry, maxAge) {
		return nil, nil
	}
	return entry, nil
}

// Set stores a response body for a URL, overwriting any prior entry.
func (c *Cache) Set(ctx context.Context, url string, body []byte) error {
	entry := catalog.CacheEntry{
		URL:       url,
		Body:      append([]byte(nil), body...),
		FetchedAt: c.now(),
	}
	if err := c.backend.PutCacheEntry(ctx, entry); err != nil {
		return err
	}
	c.mem.Set(url, entry, gocache.DefaultExpiration)
	return nil
}

func (c *Cache) fresh(entry catalog.CacheEntry, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return true
	}
	return c.now().Sub(entry.FetchedAt) <= maxAge
}
