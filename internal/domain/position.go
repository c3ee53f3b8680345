package domain

import "time"

// Position is the (account, symbol) holding. Created on the first fill for a
// symbol, re-averaged on subsequent same-direction fills, and deleted when
// quantity reaches zero.
type Position struct {
	AccountID      string
	Symbol         string
	Quantity       int64
	AvgEntryTicks  int64 // weighted-average entry price, dollars * 1e6
	MarkPriceTicks int64 // last-known market price
	OpenedAt       time.Time
	UpdatedAt      time.Time
}

// MarketValueTicks returns quantity * last-known market price.
func (p Position) MarketValueTicks() int64 {
	return p.Quantity * p.MarkPriceTicks
}

// UnrealizedPnLTicks returns quantity * (mark - entry).
func (p Position) UnrealizedPnLTicks() int64 {
	return p.Quantity * (p.MarkPriceTicks - p.AvgEntryTicks)
}

// UnrealizedPnLPct returns the unrealized P&L as a percent of entry.
func (p Position) UnrealizedPnLPct() float64 {
	if p.AvgEntryTicks <= 0 {
		return 0
	}
	return float64(p.MarkPriceTicks-p.AvgEntryTicks) / float64(p.AvgEntryTicks) * 100
}
