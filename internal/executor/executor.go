// Package executor drives orders through the lifecycle state machine and
// hands validated fills to the portfolio manager.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/papertrader/internal/domain"
	"github.com/alanyoungcy/papertrader/internal/portfolio"
)

// ErrAwaitingReview is returned by Execute when auto-approval is off and the
// order must be approved by an operator first.
var ErrAwaitingReview = errors.New("order awaiting operator review")

// Executor owns order lifecycle transitions. Fill prices come from the
// observation source at execution time, not from the decision-time snapshot,
// and the portfolio manager re-validates constraints against live state
// before any fill is applied.
type Executor struct {
	log          *slog.Logger
	orders       domain.OrderStore
	manager      *portfolio.Manager
	observations domain.ObservationSource
	autoApprove  bool
}

func New(
	log *slog.Logger,
	orders domain.OrderStore,
	manager *portfolio.Manager,
	observations domain.ObservationSource,
	autoApprove bool,
) *Executor {
	return &Executor{
		log:          log.With("component", "executor"),
		orders:       orders,
		manager:      manager,
		observations: observations,
		autoApprove:  autoApprove,
	}
}

// Propose persists a new proposed order for a non-HOLD decision.
func (e *Executor) Propose(ctx context.Context, d domain.Decision, accountID, runID string) (domain.Order, error) {
	order := domain.Order{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		Symbol:     d.Symbol,
		Side:       d.Action.Side(),
		Quantity:   d.Quantity,
		PriceTicks: d.PriceTicks,
		Status:     domain.OrderStatusProposed,
		RunID:      runID,
		Confidence: d.Confidence,
		Reasoning:  d.Reasoning,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.orders.Create(ctx, order); err != nil {
		return domain.Order{}, &domain.PersistenceError{Op: "create order", Err: err}
	}
	return order, nil
}

// Execute walks an order from proposed (or approved) to a terminal state.
//
// Outcomes:
//   - filled: the fill was applied durably; the returned Fill is valid.
//   - rejected: live constraints no longer admit the order; the violated
//     constraint is recorded on the order and a *domain.ConstraintError
//     is returned.
//   - awaiting review: auto-approval is off; the order stays proposed and
//     ErrAwaitingReview is returned.
//   - cancelled: no execution price could be observed.
//
// A persistence failure during the fill leaves the order submitted and
// unfilled; nothing partial is written.
func (e *Executor) Execute(ctx context.Context, order *domain.Order) (domain.Fill, error) {
	if order.Status.Terminal() {
		return domain.Fill{}, fmt.Errorf("executor: order %s: %w", order.ID, domain.ErrInvalidTransition)
	}

	if order.Status == domain.OrderStatusProposed {
		open, err := e.orders.ListOpenBySymbol(ctx, order.AccountID, order.Symbol)
		if err != nil {
			return domain.Fill{}, fmt.Errorf("executor: list open orders: %w", err)
		}
		for _, o := range open {
			if o.ID == order.ID {
				continue
			}
			cerr := &domain.ConstraintError{Violations: []domain.Violation{{
				Code:   domain.ViolationOpenOrderExists,
				Detail: fmt.Sprintf("order %s already open for %s", o.ID, order.Symbol),
			}}}
			if terr := e.transition(ctx, order, domain.OrderStatusRejected, cerr.Error()); terr != nil {
				return domain.Fill{}, terr
			}
			return domain.Fill{}, cerr
		}

		if !e.autoApprove {
			e.log.Info("order held for review", "order_id", order.ID, "symbol", order.Symbol)
			return domain.Fill{}, ErrAwaitingReview
		}
		if err := e.transition(ctx, order, domain.OrderStatusApproved, ""); err != nil {
			return domain.Fill{}, err
		}
	}

	if err := e.transition(ctx, order, domain.OrderStatusSubmitted, ""); err != nil {
		return domain.Fill{}, err
	}

	obs, err := e.observations.Get(ctx, order.Symbol)
	if err != nil {
		if terr := e.transition(ctx, order, domain.OrderStatusCancelled, ""); terr != nil {
			return domain.Fill{}, terr
		}
		return domain.Fill{}, fmt.Errorf("executor: execution price for %s: %w", order.Symbol, err)
	}

	fill, err := e.manager.ApplyFill(ctx, order, obs.Quote.PriceTicks)
	if err != nil {
		if cerr, ok := domain.AsConstraintError(err); ok {
			if terr := e.transition(ctx, order, domain.OrderStatusRejected, cerr.Error()); terr != nil {
				return domain.Fill{}, terr
			}
			return domain.Fill{}, cerr
		}
		// Persistence or load failure: the order stays submitted and no
		// state was changed.
		return domain.Fill{}, err
	}

	// The store marked the order filled inside the fill transaction.
	order.Status = domain.OrderStatusFilled
	order.FillPriceTicks = fill.FillPriceTicks
	filledAt := fill.FilledAt
	order.FilledAt = &filledAt
	return fill, nil
}

// Approve moves a proposed order to approved. Used by the review API when
// auto-approval is off.
func (e *Executor) Approve(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("executor: load order: %w", err)
	}
	if err := e.transition(ctx, &order, domain.OrderStatusApproved, ""); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// Cancel moves a non-terminal order to cancelled.
func (e *Executor) Cancel(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("executor: load order: %w", err)
	}
	if err := e.transition(ctx, &order, domain.OrderStatusCancelled, ""); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (e *Executor) transition(ctx context.Context, order *domain.Order, next domain.OrderStatus, rejectReason string) error {
	if !order.Status.CanTransition(next) {
		return fmt.Errorf("executor: order %s: %s -> %s: %w",
			order.ID, order.Status, next, domain.ErrInvalidTransition)
	}
	if err := e.orders.UpdateStatus(ctx, order.ID, next, rejectReason); err != nil {
		return &domain.PersistenceError{Op: fmt.Sprintf("order %s -> %s", order.ID, next), Err: err}
	}
	order.Status = next
	if rejectReason != "" {
		order.RejectReason = rejectReason
	}
	if next == domain.OrderStatusCancelled {
		now := time.Now().UTC()
		order.CancelledAt = &now
	}
	e.log.Debug("order transition", "order_id", order.ID, "status", next)
	return nil
}
