package adapter

import (
	"context"
	"slices"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedEmbedder decorates an Embedder with an in-memory cache keyed by text.
// Failed calls are not cached.
type CachedEmbedder struct {
	inner Embedder
	cache *cache.Cache
}

// NewCachedEmbedder caches vectors for ttl. A ttl of zero or less keeps
// entries for the lifetime of the embedder.
func NewCachedEmbedder(inner Embedder, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		return &CachedEmbedder{
			inner: inner,
			cache: cache.New(cache.NoExpiration, 0),
		}
	}
	return &CachedEmbedder{
		inner: inner,
		cache: cache.New(ttl, ttl*2),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if val, found := c.cache.Get(text); found {
		if vec, ok := val.([]float32); ok {
			return slices.Clone(vec), nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(text, slices.Clone(vec), cache.DefaultExpiration)
	return vec, nil
}

func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

// Len returns the number of cached texts, including expired ones not yet evicted
func (c *CachedEmbedder) Len() int {
	return c.cache.ItemCount()
}
