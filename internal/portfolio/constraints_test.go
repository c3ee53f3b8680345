package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

func dollars(d float64) int64 { return domain.DollarsToTicks(d) }

func testState(cash float64, positions ...domain.Position) domain.PortfolioState {
	state := domain.PortfolioState{
		AccountID: "acct-1",
		CashTicks: dollars(cash),
		Positions: positions,
	}
	for _, p := range positions {
		state.PositionsValueTicks += p.MarketValueTicks()
	}
	state.EquityTicks = state.CashTicks + state.PositionsValueTicks
	return state
}

func codes(violations []domain.Violation) []domain.ViolationCode {
	out := make([]domain.ViolationCode, len(violations))
	for i, v := range violations {
		out[i] = v.Code
	}
	return out
}

func TestEvaluateConstraints_Buy(t *testing.T) {
	limits := Limits{MaxPositions: 2, MaxPositionNotionalTicks: dollars(10_000)}

	t.Run("clean buy passes", func(t *testing.T) {
		state := testState(50_000)
		vs := EvaluateConstraints(state, OrderIntent{
			Symbol: "NVDA", Side: domain.OrderSideBuy, Quantity: 10, PriceTicks: dollars(100),
		}, limits)
		assert.Empty(t, vs)
	})

	t.Run("insufficient cash", func(t *testing.T) {
		state := testState(500)
		vs := EvaluateConstraints(state, OrderIntent{
			Symbol: "NVDA", Side: domain.OrderSideBuy, Quantity: 10, PriceTicks: dollars(100),
		}, limits)
		require.Len(t, vs, 1)
		assert.Equal(t, domain.ViolationInsufficientCash, vs[0].Code)
	})

	t.Run("max positions blocks new symbol only", func(t *testing.T) {
		state := testState(50_000,
			domain.Position{Symbol: "AAPL", Quantity: 5, MarkPriceTicks: dollars(100)},
			domain.Position{Symbol: "MSFT", Quantity: 5, MarkPriceTicks: dollars(100)},
		)
		vs := EvaluateConstraints(state, OrderIntent{
			Symbol: "NVDA", Side: domain.OrderSideBuy, Quantity: 1, PriceTicks: dollars(100),
		}, limits)
		require.Len(t, vs, 1)
		assert.Equal(t, domain.ViolationMaxPositions, vs[0].Code)

		// Adding to an existing position is not a new slot.
		vs = EvaluateConstraints(state, OrderIntent{
			Symbol: "AAPL", Side: domain.OrderSideBuy, Quantity: 1, PriceTicks: dollars(100),
		}, limits)
		assert.Empty(t, vs)
	})

	t.Run("max notional counts existing position", func(t *testing.T) {
		state := testState(50_000,
			domain.Position{Symbol: "NVDA", Quantity: 50, AvgEntryTicks: dollars(100), MarkPriceTicks: dollars(100)},
		)
		// 50 held + 60 more at $100 = $11,000 resulting notional.
		vs := EvaluateConstraints(state, OrderIntent{
			Symbol: "NVDA", Side: domain.OrderSideBuy, Quantity: 60, PriceTicks: dollars(100),
		}, limits)
		require.Len(t, vs, 1)
		assert.Equal(t, domain.ViolationMaxNotional, vs[0].Code)
	})

	t.Run("all violations reported together", func(t *testing.T) {
		state := testState(100,
			domain.Position{Symbol: "AAPL", Quantity: 5, MarkPriceTicks: dollars(100)},
			domain.Position{Symbol: "MSFT", Quantity: 5, MarkPriceTicks: dollars(100)},
		)
		vs := EvaluateConstraints(state, OrderIntent{
			Symbol: "NVDA", Side: domain.OrderSideBuy, Quantity: 200, PriceTicks: dollars(100),
		}, limits)
		assert.ElementsMatch(t,
			[]domain.ViolationCode{
				domain.ViolationInsufficientCash,
				domain.ViolationMaxPositions,
				domain.ViolationMaxNotional,
			},
			codes(vs),
		)
	})

	t.Run("cash buffer reserves a fraction of cash", func(t *testing.T) {
		buffered := Limits{MaxPositions: 2, MaxPositionNotionalTicks: dollars(10_000), CashBufferFrac: 0.5}
		state := testState(1_000)

		// $1,000 cash with half reserved leaves $500 spendable.
		vs := EvaluateConstraints(state, OrderIntent{
			Symbol: "NVDA", Side: domain.OrderSideBuy, Quantity: 10, PriceTicks: dollars(100),
		}, buffered)
		require.Len(t, vs, 1)
		assert.Equal(t, domain.ViolationInsufficientCash, vs[0].Code)

		vs = EvaluateConstraints(state, OrderIntent{
			Symbol: "NVDA", Side: domain.OrderSideBuy, Quantity: 5, PriceTicks: dollars(100),
		}, buffered)
		assert.Empty(t, vs)
	})

	t.Run("zero limits disable ceilings", func(t *testing.T) {
		state := testState(1_000_000,
			domain.Position{Symbol: "AAPL", Quantity: 5, MarkPriceTicks: dollars(100)},
		)
		vs := EvaluateConstraints(state, OrderIntent{
			Symbol: "NVDA", Side: domain.OrderSideBuy, Quantity: 500, PriceTicks: dollars(100),
		}, Limits{})
		assert.Empty(t, vs)
	})
}

func TestEvaluateConstraints_Sell(t *testing.T) {
	limits := Limits{MaxPositions: 10, MaxPositionNotionalTicks: dollars(10_000)}

	t.Run("sell within holding passes", func(t *testing.T) {
		state := testState(1_000,
			domain.Position{Symbol: "NVDA", Quantity: 10, MarkPriceTicks: dollars(100)},
		)
		vs := EvaluateConstraints(state, OrderIntent{
			Symbol: "NVDA", Side: domain.OrderSideSell, Quantity: 10, PriceTicks: dollars(100),
		}, limits)
		assert.Empty(t, vs)
	})

	t.Run("oversell rejected", func(t *testing.T) {
		state := testState(1_000,
			domain.Position{Symbol: "NVDA", Quantity: 10, MarkPriceTicks: dollars(100)},
		)
		vs := EvaluateConstraints(state, OrderIntent{
			Symbol: "NVDA", Side: domain.OrderSideSell, Quantity: 11, PriceTicks: dollars(100),
		}, limits)
		require.Len(t, vs, 1)
		assert.Equal(t, domain.ViolationInsufficientQuantity, vs[0].Code)
	})

	t.Run("sell with no position rejected", func(t *testing.T) {
		state := testState(1_000)
		vs := EvaluateConstraints(state, OrderIntent{
			Symbol: "NVDA", Side: domain.OrderSideSell, Quantity: 1, PriceTicks: dollars(100),
		}, limits)
		require.Len(t, vs, 1)
		assert.Equal(t, domain.ViolationInsufficientQuantity, vs[0].Code)
	})

	t.Run("sells ignore buy-side ceilings", func(t *testing.T) {
		// Account is at the position cap with no cash; closing must still work.
		state := testState(0,
			domain.Position{Symbol: "NVDA", Quantity: 10, MarkPriceTicks: dollars(100)},
		)
		vs := EvaluateConstraints(state, OrderIntent{
			Symbol: "NVDA", Side: domain.OrderSideSell, Quantity: 10, PriceTicks: dollars(100),
		}, Limits{MaxPositions: 1, MaxPositionNotionalTicks: 1})
		assert.Empty(t, vs)
	})
}
