package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

func defaultRiskParams() RiskParams {
	return RiskParams{
		MaxRiskPerTrade:          0.02,
		MinRewardRisk:            2.0,
		MaxPositionNotionalTicks: domain.DollarsToTicks(10_000),
		ConfidenceFloor:          0.6,
	}
}

func buyReport(price float64, atr float64, confidence float64, signals ...string) domain.AnalysisReport {
	return domain.AnalysisReport{
		Symbol:     "NVDA",
		PriceTicks: domain.DollarsToTicks(price),
		Action:     domain.ActionBuy,
		Confidence: confidence,
		Signals:    signals,
		Indicators: domain.Indicators{ATR: atr, Trend: domain.TrendBullish},
	}
}

func riskState(cash float64, positions ...domain.Position) domain.PortfolioState {
	state := domain.PortfolioState{
		AccountID: "acct-1",
		CashTicks: domain.DollarsToTicks(cash),
		Positions: positions,
	}
	for _, p := range positions {
		state.PositionsValueTicks += p.MarketValueTicks()
	}
	state.EquityTicks = state.CashTicks + state.PositionsValueTicks
	return state
}

func TestEvaluateRisk_BuySizing(t *testing.T) {
	params := defaultRiskParams()
	// ATR 2 with momentum: stop 4 below entry, target 9.2 above, R/R 2.3.
	report := buyReport(100, 2.0, 0.8, domain.SignalBullishMomentum)
	state := riskState(100_000)

	risk := EvaluateRisk(report, state, params)
	require.True(t, risk.Approved, risk.Reasoning)
	assert.InDelta(t, 2.3, risk.RewardRisk, 1e-9)
	assert.Equal(t, domain.DollarsToTicks(96), risk.StopLossTicks)
	assert.InDelta(t, 109.2, domain.TicksToDollars(risk.TakeProfitTicks), 1e-6)

	// Risk budget $2,000 over a $4 stop is 500 shares; the $10,000 notional
	// ceiling at $100 caps it at 100.
	assert.Equal(t, int64(100), risk.Quantity)
	assert.Equal(t, "LOW", risk.RiskLevel)
}

func TestEvaluateRisk_CashCapsQuantity(t *testing.T) {
	params := defaultRiskParams()
	params.CashBufferFrac = 0.5
	report := buyReport(100, 2.0, 0.8, domain.SignalBullishMomentum)

	// $8,000 cash with half reserved leaves $4,000 spendable: 40 shares.
	state := riskState(8_000)
	state.EquityTicks = domain.DollarsToTicks(100_000) // sizing sees full equity

	risk := EvaluateRisk(report, state, params)
	require.True(t, risk.Approved, risk.Reasoning)
	assert.Equal(t, int64(40), risk.Quantity)
}

func TestEvaluateRisk_RewardRiskRejection(t *testing.T) {
	params := defaultRiskParams()
	params.MinRewardRisk = 2.5
	// No momentum signal: stop 4, target 8, R/R 2.0 < 2.5.
	report := buyReport(100, 2.0, 0.8)

	risk := EvaluateRisk(report, riskState(100_000), params)
	assert.False(t, risk.Approved)
	assert.Contains(t, risk.Reasoning, "reward/risk")
	// Levels are still reported for the trace.
	assert.InDelta(t, 2.0, risk.RewardRisk, 1e-9)
	assert.NotZero(t, risk.StopLossTicks)
}

func TestEvaluateRisk_ZeroSizeRejection(t *testing.T) {
	params := defaultRiskParams()
	report := buyReport(100, 2.0, 0.8, domain.SignalBullishMomentum)

	// $100 equity risks $2 over a $4 stop: rounds to zero shares.
	risk := EvaluateRisk(report, riskState(100), params)
	assert.False(t, risk.Approved)
	assert.Contains(t, risk.Reasoning, "zero shares")
}

func TestEvaluateRisk_FallbackStopWithoutATR(t *testing.T) {
	params := defaultRiskParams()
	report := buyReport(100, 0, 0.8)

	risk := EvaluateRisk(report, riskState(100_000), params)
	require.True(t, risk.Approved, risk.Reasoning)
	// 5% fallback stop, doubled for the target.
	assert.Equal(t, domain.DollarsToTicks(95), risk.StopLossTicks)
	assert.Equal(t, domain.DollarsToTicks(110), risk.TakeProfitTicks)
	assert.InDelta(t, 2.0, risk.RewardRisk, 1e-9)
	assert.Equal(t, "MEDIUM", risk.RiskLevel)
}

func TestEvaluateRisk_RiskLevels(t *testing.T) {
	params := defaultRiskParams()

	// stop distance 10% of entry
	risk := EvaluateRisk(buyReport(100, 5.0, 0.8, domain.SignalBullishMomentum), riskState(100_000), params)
	assert.Equal(t, "HIGH", risk.RiskLevel)

	// stop distance 3% of entry
	risk = EvaluateRisk(buyReport(100, 1.5, 0.8, domain.SignalBullishMomentum), riskState(100_000), params)
	assert.Equal(t, "LOW", risk.RiskLevel)
}

func TestEvaluateRisk_SellClosesFullPosition(t *testing.T) {
	params := defaultRiskParams()
	report := domain.AnalysisReport{
		Symbol:     "NVDA",
		PriceTicks: domain.DollarsToTicks(90),
		Action:     domain.ActionSell,
		Confidence: 0.8,
		Signals:    []string{domain.SignalBearishMomentum},
	}

	t.Run("with position", func(t *testing.T) {
		state := riskState(1_000, domain.Position{
			Symbol: "NVDA", Quantity: 42, AvgEntryTicks: domain.DollarsToTicks(100), MarkPriceTicks: domain.DollarsToTicks(90),
		})
		risk := EvaluateRisk(report, state, params)
		require.True(t, risk.Approved, risk.Reasoning)
		assert.Equal(t, int64(42), risk.Quantity)
	})

	t.Run("without position", func(t *testing.T) {
		risk := EvaluateRisk(report, riskState(1_000), params)
		assert.False(t, risk.Approved)
		assert.Contains(t, risk.Reasoning, "no open position")
	})
}

func TestEvaluateRisk_Gates(t *testing.T) {
	params := defaultRiskParams()

	t.Run("hold proposes nothing", func(t *testing.T) {
		report := domain.AnalysisReport{Symbol: "NVDA", Action: domain.ActionHold}
		risk := EvaluateRisk(report, riskState(100_000), params)
		assert.False(t, risk.Approved)
	})

	t.Run("confidence below floor", func(t *testing.T) {
		risk := EvaluateRisk(buyReport(100, 2.0, 0.5), riskState(100_000), params)
		assert.False(t, risk.Approved)
		assert.Contains(t, risk.Reasoning, "below floor")
	})
}
