package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

func defaultDecisionParams() DecisionParams {
	return DecisionParams{
		ConfidenceFloor: 0.6,
		MaxPositions:    10,
		MaxNotionalT:    domain.DollarsToTicks(10_000),
	}
}

func tradeContext() domain.SymbolContext {
	sctx := domain.SymbolContext{Symbol: "NVDA"}
	sctx = sctx.WithAnalysis(domain.AnalysisReport{
		Symbol:     "NVDA",
		PriceTicks: domain.DollarsToTicks(100),
		Action:     domain.ActionBuy,
		Confidence: 0.8,
		Signals:    []string{domain.SignalBullishMomentum},
		Summary:    "NVDA uptrend",
	})
	sctx = sctx.WithRisk(domain.RiskAssessment{
		Approved:  true,
		Quantity:  50,
		Reasoning: "size 50",
	})
	return sctx
}

func TestDecide_AllGatesPass(t *testing.T) {
	d := Decide(tradeContext(), riskState(100_000), defaultDecisionParams())

	assert.Equal(t, domain.ActionBuy, d.Action)
	assert.Equal(t, int64(50), d.Quantity)
	assert.Equal(t, domain.DollarsToTicks(100), d.PriceTicks)
	assert.InDelta(t, 0.8, d.Confidence, 1e-9)
	assert.Empty(t, d.Violations)
	// The trade reasoning carries both the analysis summary and the sizing.
	assert.Contains(t, d.Reasoning, "NVDA uptrend")
	assert.Contains(t, d.Reasoning, "size 50")
}

func TestDecide_HoldPaths(t *testing.T) {
	params := defaultDecisionParams()
	state := riskState(100_000)

	t.Run("upstream error", func(t *testing.T) {
		sctx := domain.SymbolContext{Symbol: "NVDA"}.WithError(errors.New("feed down"))
		d := Decide(sctx, state, params)
		assert.Equal(t, domain.ActionHold, d.Action)
		assert.Contains(t, d.Reasoning, "upstream stage failed")
	})

	t.Run("degraded analysis", func(t *testing.T) {
		sctx := domain.SymbolContext{Symbol: "NVDA"}.WithAnalysis(domain.AnalysisReport{
			Symbol: "NVDA", Action: domain.ActionHold, Summary: "NVDA: insufficient history (3 candles)",
		})
		d := Decide(sctx, state, params)
		assert.Equal(t, domain.ActionHold, d.Action)
		assert.Contains(t, d.Reasoning, "degraded analysis")
	})

	t.Run("analysis holds", func(t *testing.T) {
		sctx := tradeContext()
		sctx.Analysis.Action = domain.ActionHold
		d := Decide(sctx, state, params)
		assert.Equal(t, domain.ActionHold, d.Action)
	})

	t.Run("confidence below floor", func(t *testing.T) {
		sctx := tradeContext()
		sctx.Analysis.Confidence = 0.55
		d := Decide(sctx, state, params)
		assert.Equal(t, domain.ActionHold, d.Action)
		assert.Contains(t, d.Reasoning, "below floor")
	})

	t.Run("risk rejected", func(t *testing.T) {
		sctx := tradeContext()
		sctx.Risk.Approved = false
		sctx.Risk.Reasoning = "reward/risk 1.80 below minimum 2.00"
		d := Decide(sctx, state, params)
		assert.Equal(t, domain.ActionHold, d.Action)
		assert.Contains(t, d.Reasoning, "risk rejected")
	})
}

func TestDecide_SnapshotConstraintsForceHold(t *testing.T) {
	params := defaultDecisionParams()
	params.MaxPositions = 1
	state := riskState(100_000, domain.Position{
		Symbol: "AAPL", Quantity: 10, MarkPriceTicks: domain.DollarsToTicks(100),
	})

	d := Decide(tradeContext(), state, params)
	assert.Equal(t, domain.ActionHold, d.Action)
	require.Len(t, d.Violations, 1)
	assert.Equal(t, domain.ViolationMaxPositions, d.Violations[0].Code)
}
