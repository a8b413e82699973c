package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"finanzas/internal/core"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestLRUCacheEvictsOldest(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a")
	}
	c.Set("c", 3) // evicts b, the least recently used
	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %v, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute)
	c.now = clock.Now

	c.Set("a", "x")
	c.Set("b", "y")
	clock.Advance(30 * time.Second)
	c.Set("b", "z")
	clock.Advance(45 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("a should have expired")
	}
	if n := c.CleanExpired(); n != 0 {
		t.Fatalf("nothing else should be expired, cleaned %d", n)
	}
	clock.Advance(time.Minute)
	if n := c.CleanExpired(); n != 1 || c.Size() != 0 {
		t.Fatalf("cleaned %d, size %d", n, c.Size())
	}
}

func TestLRUCacheDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("u1|2025|all|all", 1)
	c.Set("u1|2025|3|Food", 2)
	c.Set("u10|2025|all|all", 3)
	if n := c.DeletePrefix("u1|"); n != 2 {
		t.Fatalf("deleted %d, want 2", n)
	}
	if _, ok := c.Get("u10|2025|all|all"); !ok {
		t.Fatalf("other user's entry must survive")
	}
}

func TestManagerCleanNow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Second)
	c.now = clock.Now
	c.Set("a", 1)
	m := NewManager(nil)
	m.Register(c)
	clock.Advance(2 * time.Second)
	if n := m.CleanNow(); n != 1 {
		t.Fatalf("cleaned %d", n)
	}
	m.StartCleanup(time.Hour)
	m.Stop()
}

func TestSeriesCacheGetOrFetch(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewSeriesCache(8, DefaultSeriesTTL)
	c.lru.now = clock.Now

	var calls int32
	fetch := func(ctx context.Context, symbol string) ([]core.PricePoint, error) {
		atomic.AddInt32(&calls, 1)
		if symbol != "AAPL" {
			t.Errorf("symbol should be normalized, got %q", symbol)
		}
		return []core.PricePoint{{Date: core.NewDate(2025, 1, 1), Close: 10}}, nil
	}

	e, hit, err := c.GetOrFetch(context.Background(), " aapl ", fetch)
	if err != nil || hit || len(e.Series) != 1 || !e.FetchedAt.Equal(clock.Now()) {
		t.Fatalf("first fetch: entry=%+v hit=%v err=%v", e, hit, err)
	}
	e.Series[0].Close = 999 // callers get copies

	clock.Advance(23 * time.Hour)
	e, hit, _ = c.GetOrFetch(context.Background(), "AAPL", fetch)
	if !hit || e.Series[0].Close != 10 {
		t.Fatalf("expected untouched cached series, hit=%v entry=%+v", hit, e)
	}

	clock.Advance(2 * time.Hour)
	if _, hit, _ = c.GetOrFetch(context.Background(), "AAPL", fetch); hit {
		t.Fatalf("series older than the TTL must be refetched")
	}
	if calls != 2 {
		t.Fatalf("fetch calls = %d, want 2", calls)
	}
}

func TestSeriesCacheDoesNotCacheErrors(t *testing.T) {
	c := NewSeriesCache(8, time.Hour)
	boom := errors.New("boom")
	_, _, err := c.GetOrFetch(context.Background(), "X", func(context.Context, string) ([]core.PricePoint, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if c.Size() != 0 {
		t.Fatalf("failed fetch should not be cached")
	}
}

func TestSeriesCacheSharesConcurrentFetches(t *testing.T) {
	c := NewSeriesCache(8, time.Hour)
	release := make(chan struct{})
	var calls int32
	fetch := func(context.Context, string) ([]core.PricePoint, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []core.PricePoint{{Date: core.NewDate(2025, 1, 1), Close: 1}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := c.GetOrFetch(context.Background(), "SPY", fetch); err != nil {
				t.Errorf("GetOrFetch: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n < 1 || n > 8 {
		t.Fatalf("unexpected fetch count %d", n)
	}
	if _, ok := c.Get("spy"); !ok {
		t.Fatalf("series should be cached after the shared fetch")
	}
}
