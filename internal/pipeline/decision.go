package pipeline

import (
	"fmt"

	"github.com/alanyoungcy/papertrader/internal/domain"
	"github.com/alanyoungcy/papertrader/internal/portfolio"
)

// DecisionParams gate the final trade decision.
type DecisionParams struct {
	ConfidenceFloor float64
	MaxPositions    int
	MaxNotionalT    int64
}

// Decide combines the analysis and risk stages into a final action for one
// symbol. Every gate must pass for a trade to be emitted; any failure
// downgrades the decision to HOLD with the reason recorded.
//
// Constraints are evaluated against the portfolio snapshot taken at cycle
// start. The execution layer re-validates against live state before filling,
// so a decision that passes here can still be rejected at execution time.
func Decide(sctx domain.SymbolContext, state domain.PortfolioState, params DecisionParams) domain.Decision {
	hold := func(reason string) domain.Decision {
		return domain.Decision{
			Symbol:    sctx.Symbol,
			Action:    domain.ActionHold,
			Reasoning: reason,
		}
	}

	if sctx.Err != nil {
		return hold(fmt.Sprintf("upstream stage failed: %v", sctx.Err))
	}
	report := sctx.Analysis
	if report.Degraded() {
		return hold("degraded analysis: " + report.Summary)
	}
	if report.Action == domain.ActionHold {
		return hold(report.Summary)
	}
	if report.Confidence < params.ConfidenceFloor {
		return hold(fmt.Sprintf("confidence %.2f below floor %.2f", report.Confidence, params.ConfidenceFloor))
	}
	risk := sctx.Risk
	if !risk.Approved {
		return hold("risk rejected: " + risk.Reasoning)
	}

	violations := portfolio.EvaluateConstraints(state, portfolio.OrderIntent{
		Symbol:     sctx.Symbol,
		Side:       report.Action.Side(),
		Quantity:   risk.Quantity,
		PriceTicks: report.PriceTicks,
	}, portfolio.Limits{
		MaxPositions:             params.MaxPositions,
		MaxPositionNotionalTicks: params.MaxNotionalT,
	})
	if len(violations) != 0 {
		d := hold("portfolio constraints violated")
		d.Violations = violations
		return d
	}

	return domain.Decision{
		Symbol:     sctx.Symbol,
		Action:     report.Action,
		Quantity:   risk.Quantity,
		PriceTicks: report.PriceTicks,
		Confidence: report.Confidence,
		Reasoning:  fmt.Sprintf("%s; %s", report.Summary, risk.Reasoning),
	}
}
