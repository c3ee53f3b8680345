package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusCanTransition(t *testing.T) {
	all := []OrderStatus{
		OrderStatusProposed,
		OrderStatusApproved,
		OrderStatusSubmitted,
		OrderStatusFilled,
		OrderStatusRejected,
		OrderStatusCancelled,
	}
	allowed := map[OrderStatus][]OrderStatus{
		OrderStatusProposed:  {OrderStatusApproved, OrderStatusRejected, OrderStatusCancelled},
		OrderStatusApproved:  {OrderStatusSubmitted, OrderStatusCancelled},
		OrderStatusSubmitted: {OrderStatusFilled, OrderStatusCancelled},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if to == ok {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, OrderStatusProposed.Terminal())
	assert.False(t, OrderStatusApproved.Terminal())
	assert.False(t, OrderStatusSubmitted.Terminal())
	assert.True(t, OrderStatusFilled.Terminal())
	assert.True(t, OrderStatusRejected.Terminal())
	assert.True(t, OrderStatusCancelled.Terminal())
}

func TestMoneyConversions(t *testing.T) {
	assert.Equal(t, int64(100_000_000), DollarsToTicks(100))
	assert.Equal(t, int64(123_456_789), DollarsToTicks(123.456789))
	assert.InDelta(t, 123.456789, TicksToDollars(123_456_789), 1e-9)
	assert.Equal(t, int64(-50_000_000), DollarsToTicks(-50))
}
