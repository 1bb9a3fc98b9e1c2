// Package cache holds the bounded header cache used during reference resolution.
package cache

import (
	"context"
	"time"

	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSize = 10000
	DefaultTTL  = 10 * time.Minute
)

// Loader fetches a header on a cache miss.
type Loader func(ctx context.Context, id string) (models.HeaderResult, error)

// HeaderCache is a size and TTL bounded cache of found headers keyed by id.
// Misses are never cached so a document created later resolves on the next lookup.
type HeaderCache struct {
	lru   *expirable.LRU[string, models.EntityHeader]
	group singleflight.Group
}

func NewHeaderCache(size int, ttl time.Duration) *HeaderCache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &HeaderCache{
		lru: expirable.NewLRU[string, models.EntityHeader](size, nil, ttl),
	}
}

func (c *HeaderCache) Get(id string) (models.EntityHeader, bool) {
	return c.lru.Get(id)
}

func (c *HeaderCache) Put(h models.EntityHeader) {
	if h.ID == "" {
		return
	}
	c.lru.Add(h.ID, h)
}

// GetOrLoad returns a cached header or calls load once for all concurrent callers of the same id.
func (c *HeaderCache) GetOrLoad(ctx context.Context, id string, load Loader) (models.HeaderResult, error) {
	if h, ok := c.lru.Get(id); ok {
		return models.Found(h), nil
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		res, err := load(ctx, id)
		if err != nil {
			return models.NotFound(), err
		}
		if res.Found {
			c.lru.Add(id, res.Header)
		}
		return res, nil
	})
	if err != nil {
		return models.NotFound(), err
	}
	return v.(models.HeaderResult), nil
}

func (c *HeaderCache) Invalidate(ids ...string) {
	for _, id := range ids {
		c.lru.Remove(id)
	}
}

func (c *HeaderCache) Purge() {
	c.lru.Purge()
}

func (c *HeaderCache) Len() int {
	return c.lru.Len()
}
