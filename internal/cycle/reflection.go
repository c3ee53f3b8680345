package cycle

import (
	"fmt"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// buildReflection diffs the portfolio before and after the cycle. It is
// deterministic; the numbers come straight from the two states and the fill
// count, never from generated text.
func buildReflection(before, after domain.PortfolioState, fills []domain.Fill) *domain.Reflection {
	refl := &domain.Reflection{
		OldEquityTicks: before.EquityTicks,
		NewEquityTicks: after.EquityTicks,
		ChangeTicks:    after.EquityTicks - before.EquityTicks,
		TradesExecuted: len(fills),
	}
	if before.EquityTicks != 0 {
		refl.ChangePct = float64(refl.ChangeTicks) / float64(before.EquityTicks) * 100
	}

	held := make(map[string]bool, len(before.Positions))
	for _, p := range before.Positions {
		held[p.Symbol] = true
	}
	for _, p := range after.Positions {
		if !held[p.Symbol] {
			refl.Entered = append(refl.Entered, p.Symbol)
		}
	}
	holding := make(map[string]bool, len(after.Positions))
	for _, p := range after.Positions {
		holding[p.Symbol] = true
	}
	for _, p := range before.Positions {
		if !holding[p.Symbol] {
			refl.Exited = append(refl.Exited, p.Symbol)
		}
	}

	switch {
	case len(fills) == 0:
		refl.Lessons = append(refl.Lessons, "no trades this cycle; signals did not clear the gates")
	case refl.ChangeTicks > 0:
		refl.Lessons = append(refl.Lessons, "equity increased; current sizing held")
	case refl.ChangeTicks < 0:
		refl.Lessons = append(refl.Lessons, "equity decreased; review stop placement on open positions")
	}

	refl.Notes = fmt.Sprintf(
		"equity %.2f -> %.2f (%+.2f%%), %d trades, %d entered, %d exited",
		domain.TicksToDollars(before.EquityTicks),
		domain.TicksToDollars(after.EquityTicks),
		refl.ChangePct, len(fills), len(refl.Entered), len(refl.Exited),
	)
	return refl
}
