// Package portfolio owns paper-trading account state: constraint checks,
// fills, and mark-to-market. All mutation goes through the Manager, which
// serializes the check-then-fill sequence per account.
package portfolio

import (
	"fmt"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// OrderIntent is the trade a constraint check evaluates, independent of any
// persisted order record.
type OrderIntent struct {
	Symbol     string
	Side       domain.OrderSide
	Quantity   int64
	PriceTicks int64
}

// Limits are the account-level ceilings applied on buys.
type Limits struct {
	MaxPositions             int
	MaxPositionNotionalTicks int64

	// CashBufferFrac is the fraction of cash a buy must leave untouched.
	CashBufferFrac float64
}

// spendableCash is the cash available to a buy after the buffer reservation.
func spendableCash(cashTicks int64, bufferFrac float64) int64 {
	if bufferFrac <= 0 {
		return cashTicks
	}
	return int64(float64(cashTicks) * (1 - bufferFrac))
}

// EvaluateConstraints checks an intent against a portfolio state and returns
// every violation found, not just the first. It is a pure function; callers
// choose whether state is a cycle-start snapshot or live state under lock.
func EvaluateConstraints(state domain.PortfolioState, intent OrderIntent, limits Limits) []domain.Violation {
	var violations []domain.Violation

	switch intent.Side {
	case domain.OrderSideBuy:
		cost := intent.Quantity * intent.PriceTicks
		if spendable := spendableCash(state.CashTicks, limits.CashBufferFrac); cost > spendable {
			violations = append(violations, domain.Violation{
				Code: domain.ViolationInsufficientCash,
				Detail: fmt.Sprintf("need %.2f, have %.2f spendable",
					domain.TicksToDollars(cost), domain.TicksToDollars(spendable)),
			})
		}

		pos := state.Position(intent.Symbol)
		if pos == nil && limits.MaxPositions > 0 && len(state.Positions) >= limits.MaxPositions {
			violations = append(violations, domain.Violation{
				Code:   domain.ViolationMaxPositions,
				Detail: fmt.Sprintf("%d positions open, limit %d", len(state.Positions), limits.MaxPositions),
			})
		}

		if limits.MaxPositionNotionalTicks > 0 {
			resulting := cost
			if pos != nil {
				resulting += pos.Quantity * intent.PriceTicks
			}
			if resulting > limits.MaxPositionNotionalTicks {
				violations = append(violations, domain.Violation{
					Code: domain.ViolationMaxNotional,
					Detail: fmt.Sprintf("resulting notional %.2f exceeds limit %.2f",
						domain.TicksToDollars(resulting), domain.TicksToDollars(limits.MaxPositionNotionalTicks)),
				})
			}
		}

	case domain.OrderSideSell:
		pos := state.Position(intent.Symbol)
		held := int64(0)
		if pos != nil {
			held = pos.Quantity
		}
		if intent.Quantity > held {
			violations = append(violations, domain.Violation{
				Code:   domain.ViolationInsufficientQuantity,
				Detail: fmt.Sprintf("selling %d, holding %d", intent.Quantity, held),
			})
		}
	}

	return violations
}
