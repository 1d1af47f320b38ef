package dictionary

import (
	gocache "github.com/patrickmn/go-cache"
)

// CachedResolver memoizes lookups so fuzzy scoring runs once per distinct label.
type CachedResolver struct {
	inner Resolver
	cache *gocache.Cache
}

var _ Resolver = (*CachedResolver)(nil)

// NewCachedResolver wraps inner with a non-expiring in-memory cache.
func NewCachedResolver(inner Resolver) *CachedResolver {
	return &CachedResolver{
		inner: inner,
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// Resolve returns the cached answer for label, computing it on first use. Misses are cached too.
func (c *CachedResolver) Resolve(label string) (string, bool) {
	if v, found := c.cache.Get(label); found {
		id := v.(string)
		return id, id != ""
	}
	id, ok := c.inner.Resolve(label)
	if !ok {
		id = ""
	}
	c.cache.SetDefault(label, id)
	return id, ok
}

// Len reports how many distinct labels have been resolved.
func (c *CachedResolver) Len() int {
	return c.cache.ItemCount()
}
