package domain

import "time"

// Account is a paper brokerage account. Cash is owned exclusively by the
// portfolio manager and changes only through order fills.
type Account struct {
	ID                string
	OwnerID           string // "pilot" for the autonomous account
	CashTicks         int64  // fixed-point: dollars * 1e6
	StartingCashTicks int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Cash returns the float64 display cash balance.
func (a Account) Cash() float64 {
	return TicksToDollars(a.CashTicks)
}

// EquitySnapshot is one point in the append-only equity time series. One is
// written per completed cycle, plus one at account creation.
type EquitySnapshot struct {
	ID                  int64
	AccountID           string
	EquityTicks         int64
	CashTicks           int64
	PositionsValueTicks int64
	Timestamp           time.Time
}

// PortfolioState is a consistent point-in-time view of an account: cash,
// open positions, and derived equity. It is read once per cycle and passed
// immutably through the pipeline stages; constraint checks always go back
// to the live portfolio manager instead.
type PortfolioState struct {
	AccountID           string
	CashTicks           int64
	StartingCashTicks   int64
	Positions           []Position
	PositionsValueTicks int64
	EquityTicks         int64
	LoadedAt            time.Time
}

// Equity returns the float64 display equity.
func (s PortfolioState) Equity() float64 {
	return TicksToDollars(s.EquityTicks)
}

// ReturnPct returns the account return since inception in percent.
func (s PortfolioState) ReturnPct() float64 {
	if s.StartingCashTicks <= 0 {
		return 0
	}
	return float64(s.EquityTicks-s.StartingCashTicks) / float64(s.StartingCashTicks) * 100
}

// Position returns the open position for symbol, or nil.
func (s PortfolioState) Position(symbol string) *Position {
	for i := range s.Positions {
		if s.Positions[i].Symbol == symbol {
			return &s.Positions[i]
		}
	}
	return nil
}
