package pipeline

import (
	"fmt"
	"math"
	"slices"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// RiskParams are the tunable position-sizing and approval parameters.
type RiskParams struct {
	MaxRiskPerTrade          float64 // fraction of equity risked per trade
	MinRewardRisk            float64
	MaxPositionNotionalTicks int64
	CashBufferFrac           float64 // fraction of cash reserved on buys
	ConfidenceFloor          float64
}

const (
	// stopATRMult places the stop loss this many ATRs below entry.
	stopATRMult = 2.0
	// targetATRMult places the take profit this many ATRs above entry,
	// giving a 2:1 baseline reward/risk.
	targetATRMult = 4.0
	// momentumTargetBonus extends the target for strong-momentum setups.
	momentumTargetBonus = 0.6
	// fallbackStopFrac sizes the stop when no ATR is available.
	fallbackStopFrac = 0.05
)

// EvaluateRisk sizes and gates the trade proposed by the analysis stage. It
// is a pure function of the report, the portfolio snapshot, and the params;
// it only recommends and never mutates state.
//
// A trade is rejected when the reward/risk ratio is below the configured
// minimum, the analysis confidence is below the floor, or the computed size
// rounds to zero shares.
func EvaluateRisk(report domain.AnalysisReport, state domain.PortfolioState, params RiskParams) domain.RiskAssessment {
	if report.Action == domain.ActionHold {
		return domain.RiskAssessment{Reasoning: "no directional signal; nothing to size"}
	}
	if report.Confidence < params.ConfidenceFloor {
		return domain.RiskAssessment{
			Reasoning: fmt.Sprintf("confidence %.2f below floor %.2f", report.Confidence, params.ConfidenceFloor),
		}
	}

	if report.Action == domain.ActionSell {
		return evaluateSell(report, state)
	}
	return evaluateBuy(report, state, params)
}

// evaluateSell closes the existing position in full. Partial exits are not
// emitted by the autonomous policy.
func evaluateSell(report domain.AnalysisReport, state domain.PortfolioState) domain.RiskAssessment {
	pos := state.Position(report.Symbol)
	if pos == nil || pos.Quantity <= 0 {
		return domain.RiskAssessment{Reasoning: "sell signal with no open position"}
	}
	return domain.RiskAssessment{
		Approved:  true,
		Quantity:  pos.Quantity,
		RiskLevel: "LOW",
		Reasoning: fmt.Sprintf("closing %d shares on bearish signal", pos.Quantity),
	}
}

func evaluateBuy(report domain.AnalysisReport, state domain.PortfolioState, params RiskParams) domain.RiskAssessment {
	entry := domain.TicksToDollars(report.PriceTicks)
	if entry <= 0 {
		return domain.RiskAssessment{Reasoning: "no usable entry price"}
	}

	// Stop distance from volatility; fall back to a fixed fraction when the
	// observation had too little history for an ATR.
	atr := report.Indicators.ATR
	stopDist := stopATRMult * atr
	if stopDist <= 0 {
		stopDist = entry * fallbackStopFrac
	}
	stop := entry - stopDist

	targetDist := targetATRMult * atr
	if targetDist <= 0 {
		targetDist = 2 * stopDist
	}
	if slices.Contains(report.Signals, domain.SignalBullishMomentum) {
		targetDist += momentumTargetBonus * atr
	}
	target := entry + targetDist

	rewardRisk := 0.0
	if stopDist > 0 {
		rewardRisk = targetDist / stopDist
	}

	riskLevel := "LOW"
	switch volFrac := stopDist / entry; {
	case volFrac > 0.08:
		riskLevel = "HIGH"
	case volFrac > 0.04:
		riskLevel = "MEDIUM"
	}

	if rewardRisk < params.MinRewardRisk {
		return domain.RiskAssessment{
			StopLossTicks:   domain.DollarsToTicks(stop),
			TakeProfitTicks: domain.DollarsToTicks(target),
			RewardRisk:      rewardRisk,
			RiskLevel:       riskLevel,
			Reasoning:       fmt.Sprintf("reward/risk %.2f below minimum %.2f", rewardRisk, params.MinRewardRisk),
		}
	}

	// Size so that a stop-out loses at most MaxRiskPerTrade of equity,
	// then cap by the per-position notional ceiling and spendable cash.
	riskBudget := domain.TicksToDollars(state.EquityTicks) * params.MaxRiskPerTrade
	qty := int64(math.Floor(riskBudget / stopDist))

	if maxNotionalQty := params.MaxPositionNotionalTicks / report.PriceTicks; qty > maxNotionalQty {
		qty = maxNotionalQty
	}
	spendable := float64(state.CashTicks) * (1 - params.CashBufferFrac)
	if maxCashQty := int64(spendable / float64(report.PriceTicks)); qty > maxCashQty {
		qty = maxCashQty
	}

	if qty <= 0 {
		return domain.RiskAssessment{
			StopLossTicks:   domain.DollarsToTicks(stop),
			TakeProfitTicks: domain.DollarsToTicks(target),
			RewardRisk:      rewardRisk,
			RiskLevel:       riskLevel,
			Reasoning:       "computed size rounds to zero shares",
		}
	}

	return domain.RiskAssessment{
		Approved:        true,
		Quantity:        qty,
		StopLossTicks:   domain.DollarsToTicks(stop),
		TakeProfitTicks: domain.DollarsToTicks(target),
		RewardRisk:      rewardRisk,
		RiskLevel:       riskLevel,
		Reasoning: fmt.Sprintf(
			"size %d @ %.2f (risk budget %.2f, stop %.2f, target %.2f, R/R %.2f, %s risk)",
			qty, entry, riskBudget, stop, target, rewardRisk, riskLevel,
		),
	}
}
