package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/papertrader/internal/domain"
	"github.com/alanyoungcy/papertrader/internal/portfolio"
	"github.com/alanyoungcy/papertrader/internal/store/memory"
)

func dollars(d float64) int64 { return domain.DollarsToTicks(d) }

// stubObservations serves fixed quotes; missing symbols fail like the live
// cache does.
type stubObservations struct {
	prices map[string]int64
}

func (s *stubObservations) Get(_ context.Context, symbol string) (domain.MarketObservation, error) {
	price, ok := s.prices[symbol]
	if !ok {
		return domain.MarketObservation{}, fmt.Errorf("stub: %s: %w", symbol, domain.ErrDataUnavailable)
	}
	return domain.MarketObservation{
		Symbol: symbol,
		Quote:  domain.Quote{Symbol: symbol, PriceTicks: price},
	}, nil
}

// failingAccountStore delegates reads but fails every fill write.
type failingAccountStore struct {
	domain.AccountStore
}

func (s *failingAccountStore) ApplyFill(context.Context, domain.Fill) error {
	return errors.New("disk full")
}

type executorFixture struct {
	exec      *Executor
	orders    domain.OrderStore
	manager   *portfolio.Manager
	obs       *stubObservations
	accountID string
}

func newExecutorFixture(t *testing.T, autoApprove bool, limits portfolio.Limits, breakFills bool) *executorFixture {
	t.Helper()
	db := memory.NewDB()
	var accounts domain.AccountStore = memory.NewAccountStore(db)
	positions := memory.NewPositionStore(db)
	snapshots := memory.NewSnapshotStore(db)
	orders := memory.NewOrderStore(db)

	acct, err := accounts.GetOrCreateByOwner(context.Background(), "pilot", dollars(100_000))
	require.NoError(t, err)
	if breakFills {
		accounts = &failingAccountStore{AccountStore: accounts}
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := portfolio.NewManager(log, accounts, positions, snapshots, limits)
	obs := &stubObservations{prices: map[string]int64{"NVDA": dollars(100), "MSFT": dollars(50)}}
	return &executorFixture{
		exec:      New(log, orders, manager, obs, autoApprove),
		orders:    orders,
		manager:   manager,
		obs:       obs,
		accountID: acct.ID,
	}
}

func buyDecision(symbol string, qty int64, price float64) domain.Decision {
	return domain.Decision{
		Symbol:     symbol,
		Action:     domain.ActionBuy,
		Quantity:   qty,
		PriceTicks: dollars(price),
		Confidence: 0.8,
		Reasoning:  "test trade",
	}
}

func defaultLimits() portfolio.Limits {
	return portfolio.Limits{MaxPositions: 10, MaxPositionNotionalTicks: dollars(100_000)}
}

func TestExecutorPropose(t *testing.T) {
	f := newExecutorFixture(t, true, defaultLimits(), false)
	ctx := context.Background()

	order, err := f.exec.Propose(ctx, buyDecision("NVDA", 10, 100), f.accountID, "run-1")
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, domain.OrderStatusProposed, order.Status)
	assert.Equal(t, "run-1", order.RunID)

	stored, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProposed, stored.Status)
}

func TestExecutorExecute_FillsOrder(t *testing.T) {
	f := newExecutorFixture(t, true, defaultLimits(), false)
	ctx := context.Background()

	order, err := f.exec.Propose(ctx, buyDecision("NVDA", 10, 99), f.accountID, "run-1")
	require.NoError(t, err)

	fill, err := f.exec.Execute(ctx, &order)
	require.NoError(t, err)

	// Filled at the observed price, not the stale decision price.
	assert.Equal(t, dollars(100), fill.FillPriceTicks)
	assert.Equal(t, domain.OrderStatusFilled, order.Status)
	require.NotNil(t, order.FilledAt)

	stored, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, stored.Status)

	state, err := f.manager.LoadState(ctx, f.accountID)
	require.NoError(t, err)
	assert.Equal(t, dollars(99_000), state.CashTicks)
	require.NotNil(t, state.Position("NVDA"))
}

func TestExecutorExecute_AwaitingReview(t *testing.T) {
	f := newExecutorFixture(t, false, defaultLimits(), false)
	ctx := context.Background()

	order, err := f.exec.Propose(ctx, buyDecision("NVDA", 10, 100), f.accountID, "run-1")
	require.NoError(t, err)

	_, err = f.exec.Execute(ctx, &order)
	require.ErrorIs(t, err, ErrAwaitingReview)

	stored, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProposed, stored.Status)

	// Operator approval resumes the same path to a fill.
	approved, err := f.exec.Approve(ctx, order.ID)
	require.NoError(t, err)
	_, err = f.exec.Execute(ctx, &approved)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, approved.Status)
}

func TestExecutorExecute_RejectsSecondOpenOrder(t *testing.T) {
	f := newExecutorFixture(t, false, defaultLimits(), false)
	ctx := context.Background()

	// First proposal parks awaiting review, leaving an open order.
	first, err := f.exec.Propose(ctx, buyDecision("NVDA", 10, 100), f.accountID, "run-1")
	require.NoError(t, err)
	_, err = f.exec.Execute(ctx, &first)
	require.ErrorIs(t, err, ErrAwaitingReview)

	second, err := f.exec.Propose(ctx, buyDecision("NVDA", 5, 100), f.accountID, "run-2")
	require.NoError(t, err)
	_, err = f.exec.Execute(ctx, &second)

	cerr, ok := domain.AsConstraintError(err)
	require.True(t, ok, "got %v", err)
	require.Len(t, cerr.Violations, 1)
	assert.Equal(t, domain.ViolationOpenOrderExists, cerr.Violations[0].Code)

	stored, err := f.orders.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRejected, stored.Status)
	assert.Contains(t, stored.RejectReason, "open_order_exists")
}

func TestExecutorExecute_LiveConstraintsRejectStaleDecision(t *testing.T) {
	// One position slot. The decision passed its snapshot check before the
	// slot filled; execution re-validates against live state and rejects.
	f := newExecutorFixture(t, true, portfolio.Limits{MaxPositions: 1, MaxPositionNotionalTicks: dollars(100_000)}, false)
	ctx := context.Background()

	occupy, err := f.exec.Propose(ctx, buyDecision("MSFT", 10, 50), f.accountID, "run-1")
	require.NoError(t, err)
	_, err = f.exec.Execute(ctx, &occupy)
	require.NoError(t, err)

	stale, err := f.exec.Propose(ctx, buyDecision("NVDA", 10, 100), f.accountID, "run-1")
	require.NoError(t, err)
	_, err = f.exec.Execute(ctx, &stale)

	cerr, ok := domain.AsConstraintError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, domain.ViolationMaxPositions, cerr.Violations[0].Code)

	stored, err := f.orders.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRejected, stored.Status)
	assert.Contains(t, stored.RejectReason, "max_positions")

	// The occupying position and cash are untouched by the rejection.
	state, err := f.manager.LoadState(ctx, f.accountID)
	require.NoError(t, err)
	assert.Len(t, state.Positions, 1)
	assert.Equal(t, dollars(99_500), state.CashTicks)
}

func TestExecutorExecute_PersistenceFailureLeavesOrderSubmitted(t *testing.T) {
	f := newExecutorFixture(t, true, defaultLimits(), true)
	ctx := context.Background()

	order, err := f.exec.Propose(ctx, buyDecision("NVDA", 10, 100), f.accountID, "run-1")
	require.NoError(t, err)

	_, err = f.exec.Execute(ctx, &order)
	require.Error(t, err)
	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)

	// Never reported filled: the order stays submitted for the operator,
	// and no cash or position was written.
	assert.Equal(t, domain.OrderStatusSubmitted, order.Status)
	stored, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusSubmitted, stored.Status)

	state, err := f.manager.LoadState(ctx, f.accountID)
	require.NoError(t, err)
	assert.Equal(t, dollars(100_000), state.CashTicks)
	assert.Empty(t, state.Positions)
}

func TestExecutorExecute_CancelsWhenPriceUnavailable(t *testing.T) {
	f := newExecutorFixture(t, true, defaultLimits(), false)
	ctx := context.Background()
	delete(f.obs.prices, "NVDA")

	order, err := f.exec.Propose(ctx, buyDecision("NVDA", 10, 100), f.accountID, "run-1")
	require.NoError(t, err)

	_, err = f.exec.Execute(ctx, &order)
	require.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	require.NotNil(t, order.CancelledAt)
}

func TestExecutorExecute_TerminalOrderRefused(t *testing.T) {
	f := newExecutorFixture(t, true, defaultLimits(), false)
	ctx := context.Background()

	order, err := f.exec.Propose(ctx, buyDecision("NVDA", 10, 100), f.accountID, "run-1")
	require.NoError(t, err)
	_, err = f.exec.Execute(ctx, &order)
	require.NoError(t, err)

	_, err = f.exec.Execute(ctx, &order)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestExecutorCancel(t *testing.T) {
	f := newExecutorFixture(t, false, defaultLimits(), false)
	ctx := context.Background()

	order, err := f.exec.Propose(ctx, buyDecision("NVDA", 10, 100), f.accountID, "run-1")
	require.NoError(t, err)

	cancelled, err := f.exec.Cancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)

	// A cancelled order cannot be approved afterwards.
	_, err = f.exec.Approve(ctx, order.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}
