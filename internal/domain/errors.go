package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrDataUnavailable means the market-data collaborator failed for a
	// symbol. The symbol's decision is forced to HOLD; the cycle continues.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrCycleInProgress means another cycle already holds the account's
	// cycle lock. The caller may retry on the next schedule.
	ErrCycleInProgress = errors.New("cycle already in progress for account")

	// ErrLockHeld is returned by lock managers when the key is taken.
	ErrLockHeld = errors.New("lock already held")

	// ErrInvalidTransition means an order state change was attempted that
	// the lifecycle state machine does not permit.
	ErrInvalidTransition = errors.New("invalid order state transition")
)

// ViolationCode identifies a portfolio constraint.
type ViolationCode string

const (
	ViolationInsufficientCash     ViolationCode = "insufficient_cash"
	ViolationInsufficientQuantity ViolationCode = "insufficient_quantity"
	ViolationMaxPositions         ViolationCode = "max_positions"
	ViolationMaxNotional          ViolationCode = "max_notional"
	ViolationOpenOrderExists      ViolationCode = "open_order_exists"
)

// Violation is one failed constraint check with a human-readable detail.
type Violation struct {
	Code   ViolationCode `json:"code"`
	Detail string        `json:"detail"`
}

// ConstraintError reports that applying an order would violate one or more
// portfolio constraints. The order transitions to rejected; the cycle
// continues.
type ConstraintError struct {
	Violations []Violation
}

func (e *ConstraintError) Error() string {
	codes := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		codes[i] = string(v.Code)
	}
	return "constraint violation: " + strings.Join(codes, ", ")
}

// AsConstraintError unwraps err into a *ConstraintError if it is one.
func AsConstraintError(err error) (*ConstraintError, bool) {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// PersistenceError wraps a durable-store write failure. On a fill it is
// fatal to that order's transition: the order must stay in its pre-fill
// state and never be reported filled.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
