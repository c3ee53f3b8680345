package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// Fill captures the full atomic effect of filling an order: the cash delta,
// the resulting position row, and the order's terminal transition. Stores
// must commit all of it in one transaction, or none of it.
type Fill struct {
	OrderID        string
	AccountID      string
	Symbol         string
	Side           OrderSide
	Quantity       int64
	FillPriceTicks int64
	CashDeltaTicks int64 // signed: negative for buys, positive for sells
	NewQuantity    int64 // resulting position quantity; zero deletes the row
	NewAvgTicks    int64 // resulting weighted-average entry price
	FilledAt       time.Time
}

// AccountStore persists paper accounts and applies fills.
type AccountStore interface {
	Get(ctx context.Context, id string) (Account, error)
	// GetOrCreateByOwner returns the account owned by ownerID, creating it
	// with the given starting cash (and an initial equity snapshot) when
	// absent.
	GetOrCreateByOwner(ctx context.Context, ownerID string, startingCashTicks int64) (Account, error)
	// ApplyFill atomically applies the cash delta, upserts (or deletes) the
	// position, and marks the order filled. The fill must be durably
	// committed before ApplyFill returns.
	ApplyFill(ctx context.Context, fill Fill) error
}

// PositionStore persists positions.
type PositionStore interface {
	ListByAccount(ctx context.Context, accountID string) ([]Position, error)
	Get(ctx context.Context, accountID, symbol string) (Position, error)
	// UpdateMarkPrices refreshes the last-known market price of the given
	// symbols. Cash and quantities are untouched.
	UpdateMarkPrices(ctx context.Context, accountID string, priceTicks map[string]int64) error
}

// OrderStore persists orders.
type OrderStore interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	// UpdateStatus transitions an order, recording the reject reason when
	// status is rejected. It must not modify terminal orders.
	UpdateStatus(ctx context.Context, id string, status OrderStatus, rejectReason string) error
	ListByAccount(ctx context.Context, accountID string, opts ListOpts) ([]Order, error)
	// ListOpenBySymbol returns non-terminal orders for (account, symbol);
	// the invariant is that at most one exists at any time.
	ListOpenBySymbol(ctx context.Context, accountID, symbol string) ([]Order, error)
}

// SnapshotStore persists the append-only equity time series.
type SnapshotStore interface {
	Append(ctx context.Context, snap EquitySnapshot) error
	ListByAccount(ctx context.Context, accountID string, opts ListOpts) ([]EquitySnapshot, error)
}

// TraceStore persists one document per completed cycle, keyed by run id.
type TraceStore interface {
	Put(ctx context.Context, trace CycleTrace) error
	Get(ctx context.Context, runID string) (CycleTrace, error)
	// List returns run summaries for an account within the ListOpts time
	// range, newest first.
	List(ctx context.Context, accountID string, opts ListOpts) ([]CycleTrace, error)
}
