package marketdata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// countingFetcher serves a fixed quote and counts upstream calls. An
// optional gate blocks in-flight fetches so tests can pile up waiters.
type countingFetcher struct {
	calls atomic.Int64
	fail  atomic.Bool
	gate  chan struct{}
	price int64
}

func (f *countingFetcher) FetchQuote(_ context.Context, symbol string) (domain.Quote, []domain.Candle, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.fail.Load() {
		return domain.Quote{}, nil, fmt.Errorf("fetch %s: %w", symbol, domain.ErrDataUnavailable)
	}
	return domain.Quote{Symbol: symbol, PriceTicks: f.price},
		[]domain.Candle{{Close: domain.TicksToDollars(f.price)}},
		nil
}

func newCacheFixture(ttl time.Duration) (*SnapshotCache, *countingFetcher, *time.Time) {
	fetcher := &countingFetcher{price: domain.DollarsToTicks(100)}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := NewSnapshotCache(log, fetcher, ttl)

	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	clock := &now
	cache.now = func() time.Time { return *clock }
	return cache, fetcher, clock
}

func TestSnapshotCache_ServesFreshEntryWithoutRefetch(t *testing.T) {
	cache, fetcher, _ := newCacheFixture(15 * time.Minute)
	ctx := context.Background()

	first, err := cache.Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, int64(1), fetcher.calls.Load())

	second, err := cache.Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, int64(1), fetcher.calls.Load())
	assert.Equal(t, first.FetchedAt, second.FetchedAt)

	// Symbols are case-normalized to one entry.
	_, err = cache.Get(ctx, "nvda")
	require.NoError(t, err)
	assert.Equal(t, int64(1), fetcher.calls.Load())
}

func TestSnapshotCache_RefetchesAfterTTL(t *testing.T) {
	cache, fetcher, clock := newCacheFixture(15 * time.Minute)
	ctx := context.Background()

	_, err := cache.Get(ctx, "NVDA")
	require.NoError(t, err)

	*clock = clock.Add(16 * time.Minute)
	obs, err := cache.Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, int64(2), fetcher.calls.Load())
	assert.Equal(t, *clock, obs.FetchedAt)
	assert.Equal(t, clock.Add(15*time.Minute), obs.ExpiresAt)
}

func TestSnapshotCache_FailuresAreNotCached(t *testing.T) {
	cache, fetcher, _ := newCacheFixture(15 * time.Minute)
	ctx := context.Background()

	fetcher.fail.Store(true)
	_, err := cache.Get(ctx, "NVDA")
	require.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.Equal(t, int64(1), fetcher.calls.Load())

	// The next request retries upstream instead of serving the failure.
	fetcher.fail.Store(false)
	obs, err := cache.Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, int64(2), fetcher.calls.Load())
	assert.Equal(t, domain.DollarsToTicks(100), obs.Quote.PriceTicks)
}

func TestSnapshotCache_ConcurrentMissesCollapse(t *testing.T) {
	cache, fetcher, _ := newCacheFixture(15 * time.Minute)
	fetcher.gate = make(chan struct{})
	ctx := context.Background()

	const waiters = 10
	var wg sync.WaitGroup
	results := make([]domain.MarketObservation, waiters)
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Get(ctx, "NVDA")
		}(i)
	}

	// Let the single in-flight fetch finish once everyone is queued.
	time.Sleep(50 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()

	for i := 0; i < waiters; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].FetchedAt, results[i].FetchedAt)
	}
	assert.Equal(t, int64(1), fetcher.calls.Load())
}

func TestSnapshotCache_UpdateQuoteOverlay(t *testing.T) {
	cache, fetcher, _ := newCacheFixture(15 * time.Minute)
	ctx := context.Background()

	_, err := cache.Get(ctx, "NVDA")
	require.NoError(t, err)

	cache.UpdateQuote(domain.Quote{Symbol: "nvda", PriceTicks: domain.DollarsToTicks(105)})
	obs, err := cache.Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, domain.DollarsToTicks(105), obs.Quote.PriceTicks)
	assert.Len(t, obs.History, 1) // history untouched
	assert.Equal(t, int64(1), fetcher.calls.Load())

	// Ticks for unknown symbols are dropped, not cached.
	cache.UpdateQuote(domain.Quote{Symbol: "TSLA", PriceTicks: domain.DollarsToTicks(200)})
	_, err = cache.Get(ctx, "TSLA")
	require.NoError(t, err)
	assert.Equal(t, int64(2), fetcher.calls.Load())
}

func TestSnapshotCache_Invalidate(t *testing.T) {
	cache, fetcher, _ := newCacheFixture(15 * time.Minute)
	ctx := context.Background()

	_, err := cache.Get(ctx, "NVDA")
	require.NoError(t, err)
	cache.Invalidate("NVDA")
	_, err = cache.Get(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, int64(2), fetcher.calls.Load())
}
