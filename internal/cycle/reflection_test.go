package cycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

func reflectionState(equity float64, symbols ...string) domain.PortfolioState {
	state := domain.PortfolioState{
		AccountID:   "acct-1",
		EquityTicks: domain.DollarsToTicks(equity),
	}
	for _, s := range symbols {
		state.Positions = append(state.Positions, domain.Position{Symbol: s, Quantity: 1})
	}
	return state
}

func TestBuildReflection_EquityAndPositionDiff(t *testing.T) {
	before := reflectionState(100_000, "AAPL", "TSLA")
	after := reflectionState(101_000, "AAPL", "NVDA")
	fills := []domain.Fill{
		{Symbol: "TSLA", Side: domain.OrderSideSell},
		{Symbol: "NVDA", Side: domain.OrderSideBuy},
	}

	refl := buildReflection(before, after, fills)
	assert.Equal(t, domain.DollarsToTicks(1_000), refl.ChangeTicks)
	assert.InDelta(t, 1.0, refl.ChangePct, 1e-9)
	assert.Equal(t, 2, refl.TradesExecuted)
	assert.Equal(t, []string{"NVDA"}, refl.Entered)
	assert.Equal(t, []string{"TSLA"}, refl.Exited)
	require.NotEmpty(t, refl.Lessons)
	assert.Contains(t, refl.Lessons[0], "equity increased")
	assert.Contains(t, refl.Notes, "2 trades")
}

func TestBuildReflection_NoTrades(t *testing.T) {
	state := reflectionState(100_000, "AAPL")

	refl := buildReflection(state, state, nil)
	assert.Zero(t, refl.ChangeTicks)
	assert.Zero(t, refl.TradesExecuted)
	assert.Empty(t, refl.Entered)
	assert.Empty(t, refl.Exited)
	require.NotEmpty(t, refl.Lessons)
	assert.Contains(t, refl.Lessons[0], "no trades")
}

func TestBuildReflection_Drawdown(t *testing.T) {
	before := reflectionState(100_000, "AAPL")
	after := reflectionState(98_000, "AAPL")

	refl := buildReflection(before, after, []domain.Fill{{Symbol: "AAPL"}})
	assert.InDelta(t, -2.0, refl.ChangePct, 1e-9)
	require.NotEmpty(t, refl.Lessons)
	assert.Contains(t, refl.Lessons[0], "equity decreased")
}
