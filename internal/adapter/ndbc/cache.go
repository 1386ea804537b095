package ndbc

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"

	"github.com/couchcryptid/buoy-season-stats/internal/observability"
)

// Fetcher retrieves the decoded archive text of one station-year.
type Fetcher interface {
	FetchYear(ctx context.Context, station string, year int) ([]byte, error)
}

// CachedFetcher wraps a Fetcher with an in-memory LRU of decoded payloads.
// Historical archives do not change, so entries never expire; they are
// only evicted by size.
type CachedFetcher struct {
	inner   Fetcher
	cache   *lru.Cache
	metrics *observability.Metrics
}

// NewCachedFetcher creates a cache decorator holding up to size payloads.
func NewCachedFetcher(inner Fetcher, size int, metrics *observability.Metrics) (*CachedFetcher, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create archive cache: %w", err)
	}
	return &CachedFetcher{inner: inner, cache: cache, metrics: metrics}, nil
}

func (c *CachedFetcher) FetchYear(ctx context.Context, station string, year int) ([]byte, error) {
	key := fmt.Sprintf("%s|%d", strings.ToLower(station), year)
	if v, ok := c.cache.Get(key); ok {
		c.metrics.Cache.WithLabelValues("hit").Inc()
		return v.([]byte), nil
	}
	c.metrics.Cache.WithLabelValues("miss").Inc()

	body, err := c.inner.FetchYear(ctx, station, year)
	if err != nil {
		// Misses are not cached so a year published later is picked up.
		return nil, err
	}
	c.cache.Add(key, body)
	return body, nil
}

// Len reports the number of cached payloads.
func (c *CachedFetcher) Len() int {
	return c.cache.Len()
}
