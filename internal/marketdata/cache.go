package marketdata

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// SnapshotCache serves market observations with a TTL. Concurrent misses
// for the same symbol collapse into a single upstream fetch; failures are
// returned to every waiter and never cached, so the next request retries.
type SnapshotCache struct {
	log     *slog.Logger
	fetcher domain.QuoteFetcher
	ttl     time.Duration
	now     func() time.Time

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]domain.MarketObservation
}

var _ domain.ObservationSource = (*SnapshotCache)(nil)

func NewSnapshotCache(log *slog.Logger, fetcher domain.QuoteFetcher, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		log:     log.With("component", "snapshot_cache"),
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]domain.MarketObservation),
	}
}

// Get returns the cached observation for symbol, fetching a fresh one when
// the entry is missing or past its TTL.
func (c *SnapshotCache) Get(ctx context.Context, symbol string) (domain.MarketObservation, error) {
	symbol = strings.ToUpper(symbol)

	if obs, ok := c.fresh(symbol); ok {
		return obs, nil
	}

	v, err, _ := c.group.Do(symbol, func() (any, error) {
		// Another caller may have refreshed while we waited for the flight.
		if obs, ok := c.fresh(symbol); ok {
			return obs, nil
		}
		return c.refresh(ctx, symbol)
	})
	if err != nil {
		return domain.MarketObservation{}, err
	}
	return v.(domain.MarketObservation), nil
}

func (c *SnapshotCache) fresh(symbol string) (domain.MarketObservation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obs, ok := c.entries[symbol]
	if !ok || obs.Expired(c.now()) {
		return domain.MarketObservation{}, false
	}
	return obs, true
}

func (c *SnapshotCache) refresh(ctx context.Context, symbol string) (domain.MarketObservation, error) {
	quote, history, err := c.fetcher.FetchQuote(ctx, symbol)
	if err != nil {
		return domain.MarketObservation{}, err
	}

	now := c.now()
	obs := domain.MarketObservation{
		Symbol:    symbol,
		Quote:     quote,
		History:   history,
		FetchedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	c.entries[symbol] = obs
	c.mu.Unlock()

	c.log.Debug("observation refreshed",
		"symbol", symbol,
		"price", quote.Price(),
		"candles", len(history),
		"expires_at", obs.ExpiresAt,
	)
	return obs, nil
}

// UpdateQuote overlays a streamed tick onto an existing cached observation.
// History and expiry are untouched; an unknown symbol is ignored because a
// tick without candles cannot support analysis.
func (c *SnapshotCache) UpdateQuote(q domain.Quote) {
	symbol := strings.ToUpper(q.Symbol)

	c.mu.Lock()
	defer c.mu.Unlock()
	obs, ok := c.entries[symbol]
	if !ok {
		return
	}
	obs.Quote = q
	c.entries[symbol] = obs
}

// Invalidate drops the cached entry for symbol.
func (c *SnapshotCache) Invalidate(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, strings.ToUpper(symbol))
}
