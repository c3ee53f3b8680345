package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// Manager is the single mutation path for account state. Constraint check
// and fill run as one critical section per account, so two orders can never
// both pass a check against the same cash or position slot.
type Manager struct {
	log       *slog.Logger
	accounts  domain.AccountStore
	positions domain.PositionStore
	snapshots domain.SnapshotStore
	limits    Limits

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(
	log *slog.Logger,
	accounts domain.AccountStore,
	positions domain.PositionStore,
	snapshots domain.SnapshotStore,
	limits Limits,
) *Manager {
	return &Manager{
		log:       log.With("component", "portfolio"),
		accounts:  accounts,
		positions: positions,
		snapshots: snapshots,
		limits:    limits,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (m *Manager) accountLock(accountID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lk, ok := m.locks[accountID]
	if !ok {
		lk = &sync.Mutex{}
		m.locks[accountID] = lk
	}
	return lk
}

// LoadState reads the account and its open positions into a point-in-time
// snapshot. Equity is cash plus positions marked at their last known price.
func (m *Manager) LoadState(ctx context.Context, accountID string) (domain.PortfolioState, error) {
	acct, err := m.accounts.Get(ctx, accountID)
	if err != nil {
		return domain.PortfolioState{}, fmt.Errorf("portfolio: load account: %w", err)
	}
	positions, err := m.positions.ListByAccount(ctx, accountID)
	if err != nil {
		return domain.PortfolioState{}, fmt.Errorf("portfolio: load positions: %w", err)
	}

	var posValue int64
	for _, p := range positions {
		posValue += p.MarketValueTicks()
	}
	return domain.PortfolioState{
		AccountID:           acct.ID,
		CashTicks:           acct.CashTicks,
		StartingCashTicks:   acct.StartingCashTicks,
		Positions:           positions,
		PositionsValueTicks: posValue,
		EquityTicks:         acct.CashTicks + posValue,
		LoadedAt:            time.Now().UTC(),
	}, nil
}

// CheckConstraints evaluates an intent against live state under the account
// lock. Advisory only; ApplyFill repeats the check atomically with the fill.
func (m *Manager) CheckConstraints(ctx context.Context, accountID string, intent OrderIntent) ([]domain.Violation, error) {
	lk := m.accountLock(accountID)
	lk.Lock()
	defer lk.Unlock()

	state, err := m.LoadState(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return EvaluateConstraints(state, intent, m.limits), nil
}

// ApplyFill validates the order against live state and, if it passes, applies
// the fill durably in a single store transaction. A *domain.ConstraintError
// is returned when live state no longer admits the order; in that case
// nothing is written.
func (m *Manager) ApplyFill(ctx context.Context, order *domain.Order, fillPriceTicks int64) (domain.Fill, error) {
	lk := m.accountLock(order.AccountID)
	lk.Lock()
	defer lk.Unlock()

	state, err := m.LoadState(ctx, order.AccountID)
	if err != nil {
		return domain.Fill{}, err
	}

	intent := OrderIntent{
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		PriceTicks: fillPriceTicks,
	}
	if violations := EvaluateConstraints(state, intent, m.limits); len(violations) != 0 {
		return domain.Fill{}, &domain.ConstraintError{Violations: violations}
	}

	fill := buildFill(state, order, fillPriceTicks)
	if err := m.accounts.ApplyFill(ctx, fill); err != nil {
		return domain.Fill{}, &domain.PersistenceError{Op: "apply fill", Err: err}
	}

	m.log.Info("fill applied",
		"order_id", order.ID,
		"symbol", order.Symbol,
		"side", order.Side,
		"quantity", order.Quantity,
		"fill_price", domain.TicksToDollars(fillPriceTicks),
		"cash_delta", domain.TicksToDollars(fill.CashDeltaTicks),
	)
	return fill, nil
}

// buildFill computes the cash and position deltas for an already-validated
// order. Buys blend the average entry price; sells realize at the held
// average and leave it unchanged.
func buildFill(state domain.PortfolioState, order *domain.Order, fillPriceTicks int64) domain.Fill {
	notional := order.Quantity * fillPriceTicks
	fill := domain.Fill{
		OrderID:        order.ID,
		AccountID:      order.AccountID,
		Symbol:         order.Symbol,
		Side:           order.Side,
		Quantity:       order.Quantity,
		FillPriceTicks: fillPriceTicks,
		FilledAt:       time.Now().UTC(),
	}

	pos := state.Position(order.Symbol)
	switch order.Side {
	case domain.OrderSideBuy:
		fill.CashDeltaTicks = -notional
		if pos == nil {
			fill.NewQuantity = order.Quantity
			fill.NewAvgTicks = fillPriceTicks
		} else {
			fill.NewQuantity = pos.Quantity + order.Quantity
			fill.NewAvgTicks = (pos.Quantity*pos.AvgEntryTicks + notional) / fill.NewQuantity
		}
	case domain.OrderSideSell:
		fill.CashDeltaTicks = notional
		fill.NewQuantity = pos.Quantity - order.Quantity
		fill.NewAvgTicks = pos.AvgEntryTicks
	}
	return fill
}

// MarkPrices refreshes the last observed price on open positions.
func (m *Manager) MarkPrices(ctx context.Context, accountID string, prices map[string]int64) error {
	if len(prices) == 0 {
		return nil
	}
	if err := m.positions.UpdateMarkPrices(ctx, accountID, prices); err != nil {
		return fmt.Errorf("portfolio: mark prices: %w", err)
	}
	return nil
}

// Snapshot appends an equity snapshot for the current state.
func (m *Manager) Snapshot(ctx context.Context, state domain.PortfolioState) (domain.EquitySnapshot, error) {
	snap := domain.EquitySnapshot{
		AccountID:           state.AccountID,
		EquityTicks:         state.EquityTicks,
		CashTicks:           state.CashTicks,
		PositionsValueTicks: state.PositionsValueTicks,
		Timestamp:           time.Now().UTC(),
	}
	if err := m.snapshots.Append(ctx, snap); err != nil {
		return domain.EquitySnapshot{}, &domain.PersistenceError{Op: "append snapshot", Err: err}
	}
	return snap, nil
}
