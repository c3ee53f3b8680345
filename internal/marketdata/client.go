// Package marketdata fetches quotes and daily history and serves them
// through a TTL snapshot cache so one cycle observes one consistent view
// per symbol.
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// defaultHistoryDays is the trailing daily-candle window fetched per symbol.
// It comfortably covers the slowest indicator lookback.
const defaultHistoryDays = 90

// YahooClient fetches quotes and daily candles from Yahoo Finance.
type YahooClient struct {
	log         *slog.Logger
	historyDays int
	now         func() time.Time
}

var _ domain.QuoteFetcher = (*YahooClient)(nil)

func NewYahooClient(log *slog.Logger, historyDays int) *YahooClient {
	if historyDays <= 0 {
		historyDays = defaultHistoryDays
	}
	return &YahooClient{
		log:         log.With("component", "marketdata"),
		historyDays: historyDays,
		now:         time.Now,
	}
}

// FetchQuote returns the latest quote and the trailing daily candles for a
// symbol. Any upstream failure is reported as domain.ErrDataUnavailable so
// callers can treat all fetch problems uniformly.
func (c *YahooClient) FetchQuote(ctx context.Context, symbol string) (domain.Quote, []domain.Candle, error) {
	if err := ctx.Err(); err != nil {
		return domain.Quote{}, nil, err
	}
	symbol = strings.ToUpper(symbol)

	q, err := quote.Get(symbol)
	if err != nil || q == nil {
		c.log.Warn("quote fetch failed", "symbol", symbol, "error", err)
		return domain.Quote{}, nil, fmt.Errorf("marketdata: quote %s: %w", symbol, domain.ErrDataUnavailable)
	}
	if q.RegularMarketPrice <= 0 {
		return domain.Quote{}, nil, fmt.Errorf("marketdata: quote %s: no market price: %w", symbol, domain.ErrDataUnavailable)
	}

	candles, err := c.fetchHistory(symbol)
	if err != nil {
		c.log.Warn("history fetch failed", "symbol", symbol, "error", err)
		return domain.Quote{}, nil, fmt.Errorf("marketdata: history %s: %w", symbol, domain.ErrDataUnavailable)
	}

	return domain.Quote{
		Symbol:     symbol,
		PriceTicks: domain.DollarsToTicks(q.RegularMarketPrice),
		Volume:     int64(q.RegularMarketVolume),
		Timestamp:  time.Unix(int64(q.RegularMarketTime), 0).UTC(),
	}, candles, nil
}

func (c *YahooClient) fetchHistory(symbol string) ([]domain.Candle, error) {
	end := c.now()
	start := end.AddDate(0, 0, -c.historyDays)
	iter := chart.Get(&chart.Params{
		Symbol:   symbol,
		Interval: datetime.OneDay,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
	})

	var candles []domain.Candle
	for iter.Next() {
		candles = append(candles, barToCandle(iter.Bar()))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return candles, nil
}

func barToCandle(b *finance.ChartBar) domain.Candle {
	open, _ := b.Open.Float64()
	high, _ := b.High.Float64()
	low, _ := b.Low.Float64()
	closep, _ := b.Close.Float64()
	return domain.Candle{
		Date:   time.Unix(int64(b.Timestamp), 0).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closep,
		Volume: int64(b.Volume),
	}
}
