package domain

import "time"

// Quote is a single market quote from the market-data collaborator.
type Quote struct {
	Symbol     string
	PriceTicks int64 // last trade price, dollars * 1e6
	Volume     int64
	Timestamp  time.Time
}

// Price returns the float64 display price.
func (q Quote) Price() float64 {
	return TicksToDollars(q.PriceTicks)
}

// Candle is one bar of daily price history used for indicator computation.
// Indicator math runs on float64 series, so candles keep float prices; only
// the quote price feeding the ledger is fixed-point.
type Candle struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// MarketObservation is one cache entry of the market snapshot cache: the raw
// quote, daily history, and its expiry. Observations are ephemeral; they are
// superseded or expire and are never referenced outside the producing cycle.
type MarketObservation struct {
	Symbol    string
	Quote     Quote
	History   []Candle
	FetchedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the observation is past its TTL at now.
func (o MarketObservation) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// Closes extracts the close-price series for indicator input.
func (o MarketObservation) Closes() []float64 {
	out := make([]float64, len(o.History))
	for i, c := range o.History {
		out[i] = c.Close
	}
	return out
}

// Trend labels the direction of the moving-average structure.
type Trend string

const (
	TrendBullish Trend = "BULLISH"
	TrendBearish Trend = "BEARISH"
	TrendNeutral Trend = "NEUTRAL"
)

// Indicators is the deterministic technical summary computed by the
// analysis stage from an observation's history.
type Indicators struct {
	RSI        float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
	SMA20      float64
	SMA50      float64
	ATR        float64
	Trend      Trend
}
