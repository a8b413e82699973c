package cache

import (
	"context"
	"strings"
	"time"

	"finanzas/internal/core"

	"golang.org/x/sync/singleflight"
)

// DefaultSeriesTTL is how long a fetched price series stays fresh.
const DefaultSeriesTTL = 24 * time.Hour

// SeriesEntry is a cached price series and the time it was fetched.
type SeriesEntry struct {
	Series    []core.PricePoint
	FetchedAt time.Time
}

// FetchFunc loads a series from the market data source.
type FetchFunc func(ctx context.Context, symbol string) ([]core.PricePoint, error)

// SeriesCache maps a ticker symbol to its last fetched series. Concurrent
// misses for the same symbol share a single fetch.
type SeriesCache struct {
	lru   *LRUCache[SeriesEntry]
	group singleflight.Group
}

// NewSeriesCache creates a cache holding up to maxSymbols series for ttl.
func NewSeriesCache(maxSymbols int, ttl time.Duration) *SeriesCache {
	if ttl <= 0 {
		ttl = DefaultSeriesTTL
	}
	return &SeriesCache{lru: NewLRUCache[SeriesEntry](maxSymbols, ttl)}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Get returns a fresh entry for symbol, if any. The series is a copy.
func (c *SeriesCache) Get(symbol string) (SeriesEntry, bool) {
	e, ok := c.lru.Get(normalizeSymbol(symbol))
	if !ok {
		return SeriesEntry{}, false
	}
	return e.clone(), true
}

// Put stores a series fetched now.
func (c *SeriesCache) Put(symbol string, series []core.PricePoint) SeriesEntry {
	e := SeriesEntry{Series: append([]core.PricePoint(nil), series...), FetchedAt: c.lru.now()}
	c.lru.Set(normalizeSymbol(symbol), e)
	return e.clone()
}

// Invalidate drops the cached series for symbol.
func (c *SeriesCache) Invalidate(symbol string) {
	c.lru.Delete(normalizeSymbol(symbol))
}

// GetOrFetch returns the fresh cached series or fetches, stores and returns
// a new one. The boolean reports a cache hit. Failed fetches are not cached.
func (c *SeriesCache) GetOrFetch(ctx context.Context, symbol string, fetch FetchFunc) (SeriesEntry, bool, error) {
	key := normalizeSymbol(symbol)
	if e, ok := c.Get(key); ok {
		return e, true, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if e, ok := c.lru.Get(key); ok {
			return e, nil
		}
		series, err := fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		return c.Put(key, series), nil
	})
	if err != nil {
		return SeriesEntry{}, false, err
	}
	return v.(SeriesEntry).clone(), false, nil
}

// CleanExpired implements Cleaner.
func (c *SeriesCache) CleanExpired() int {
	return c.lru.CleanExpired()
}

// Size returns the number of cached symbols.
func (c *SeriesCache) Size() int {
	return c.lru.Size()
}

func (e SeriesEntry) clone() SeriesEntry {
	e.Series = append([]core.PricePoint(nil), e.Series...)
	return e
}
