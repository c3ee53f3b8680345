package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// trendingObservation builds n daily candles walking from start by step per
// day, with a quote continuing the walk. A positive step produces a clean
// uptrend (SMA20 above SMA50, price above SMA20, MACD above its signal);
// a negative step the mirror image.
func trendingObservation(symbol string, n int, start, step float64) domain.MarketObservation {
	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	history := make([]domain.Candle, n)
	price := start
	for i := range history {
		history[i] = domain.Candle{
			Date:   day.AddDate(0, 0, i),
			Open:   price - step/2,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1_000_000,
		}
		price += step
	}
	return domain.MarketObservation{
		Symbol: symbol,
		Quote: domain.Quote{
			Symbol:     symbol,
			PriceTicks: domain.DollarsToTicks(price),
			Timestamp:  day.AddDate(0, 0, n),
		},
		History: history,
	}
}

func TestAnalyze_Uptrend(t *testing.T) {
	obs := trendingObservation("NVDA", 60, 100, 0.5)
	report := Analyze(obs)

	assert.Equal(t, "NVDA", report.Symbol)
	assert.Equal(t, domain.ActionBuy, report.Action)
	assert.Equal(t, domain.TrendBullish, report.Indicators.Trend)
	assert.Greater(t, report.Indicators.SMA20, report.Indicators.SMA50)
	assert.Greater(t, report.Indicators.ATR, 0.0)
	assert.Contains(t, report.Signals, domain.SignalBullishMomentum)
	assert.Contains(t, report.Signals, domain.SignalAboveSMA20)
	assert.Contains(t, report.Signals, domain.SignalMACDBullishCross)
	// A relentless climb pins RSI, which votes against the trend.
	assert.Contains(t, report.Signals, domain.SignalOverbought)
	assert.GreaterOrEqual(t, report.Confidence, 0.7)
	assert.False(t, report.Degraded())
}

func TestAnalyze_Downtrend(t *testing.T) {
	obs := trendingObservation("TSLA", 60, 200, -0.5)
	report := Analyze(obs)

	assert.Equal(t, domain.ActionSell, report.Action)
	assert.Equal(t, domain.TrendBearish, report.Indicators.Trend)
	assert.Contains(t, report.Signals, domain.SignalBearishMomentum)
	assert.Contains(t, report.Signals, domain.SignalBelowSMA20)
	assert.Contains(t, report.Signals, domain.SignalOversold)
	assert.GreaterOrEqual(t, report.Confidence, 0.7)
}

func TestAnalyze_InsufficientHistoryDegrades(t *testing.T) {
	obs := trendingObservation("AAPL", 10, 100, 0.5)
	report := Analyze(obs)

	assert.Equal(t, domain.ActionHold, report.Action)
	assert.True(t, report.Degraded())
	assert.Zero(t, report.Confidence)
	assert.Empty(t, report.Signals)
	assert.Contains(t, report.Summary, "insufficient history")
}

func TestAnalyze_Deterministic(t *testing.T) {
	obs := trendingObservation("MSFT", 60, 150, 0.3)
	a := Analyze(obs)
	b := Analyze(obs)
	require.Equal(t, a, b)
}

func TestConfidenceFromScore(t *testing.T) {
	cases := []struct {
		net  int
		want float64
	}{
		{0, 0.5},
		{1, 0.6},
		{-2, 0.7},
		{3, 0.8},
		{4, 0.9},
		{7, 0.9}, // clamped
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, confidenceFromScore(tc.net), 1e-9, "net=%d", tc.net)
	}
}
