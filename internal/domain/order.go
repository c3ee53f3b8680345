package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderStatus tracks the order lifecycle state machine:
//
//	proposed → approved → submitted → filled
//	proposed → rejected
//	proposed/approved/submitted → cancelled
//
// filled, rejected, and cancelled are terminal; a terminal order is
// immutable.
type OrderStatus string

const (
	OrderStatusProposed  OrderStatus = "proposed"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusRejected, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits moving from s to
// next. Terminal states permit nothing.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch s {
	case OrderStatusProposed:
		return next == OrderStatusApproved || next == OrderStatusRejected || next == OrderStatusCancelled
	case OrderStatusApproved:
		return next == OrderStatusSubmitted || next == OrderStatusCancelled
	case OrderStatusSubmitted:
		return next == OrderStatusFilled || next == OrderStatusCancelled
	}
	return false
}

// Order is a paper trading order. It is created in the proposed state by the
// decision stage and driven through the lifecycle by the executor.
type Order struct {
	ID             string
	AccountID      string
	Symbol         string
	Side           OrderSide
	Quantity       int64
	PriceTicks     int64 // reference price at decision time, dollars * 1e6
	FillPriceTicks int64 // actual fill price; zero until filled
	Status         OrderStatus

	// RunID links the order back to the cycle trace that produced it.
	RunID      string
	Confidence float64
	Reasoning  string

	// RejectReason holds the violated-constraint code for rejected orders.
	RejectReason string

	CreatedAt   time.Time
	FilledAt    *time.Time
	CancelledAt *time.Time
}

// Price returns the float64 display reference price.
func (o Order) Price() float64 {
	return TicksToDollars(o.PriceTicks)
}

// NotionalTicks returns quantity * reference price.
func (o Order) NotionalTicks() int64 {
	return o.Quantity * o.PriceTicks
}
