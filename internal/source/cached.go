package source

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/vk/assetgrid/internal/ctxlog"
	"github.com/vk/assetgrid/internal/table"
)

// Cached keeps fetched extracts for a fixed time, keyed by location, so that
// repeated runs in one process do not download the extract again. Cached
// datasets are shared between runs, which is safe because datasets are
// immutable.
type Cached struct {
	src   DataSource
	cache *ttlcache.Cache[string, *table.Dataset]
}

// NewCached wraps src with a cache whose entries live for ttl.
func NewCached(src DataSource, ttl time.Duration) *Cached {
	cache := ttlcache.New[string, *table.Dataset](
		ttlcache.WithTTL[string, *table.Dataset](ttl),
		ttlcache.WithDisableTouchOnHit[string, *table.Dataset](),
	)
	return &Cached{src: src, cache: cache}
}

func (c *Cached) Location() string { return c.src.Location() }

// Fetch serves a fresh cached extract or fetches and caches a new one.
// Failures are not cached.
func (c *Cached) Fetch(ctx context.Context) (*table.Dataset, error) {
	key := c.src.Location()
	if item := c.cache.Get(key); item != nil && !item.IsExpired() {
		ctxlog.FromContext(ctx).Info("Serving raw extract from cache.", "location", key, "expires_at", item.ExpiresAt())
		return item.Value(), nil
	}
	d, err := c.src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, d, ttlcache.DefaultTTL)
	return d, nil
}

// Len returns the number of cached extracts.
func (c *Cached) Len() int { return c.cache.Len() }
