package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

func seedOrder(t *testing.T, s *OrderStore, id string, status domain.OrderStatus, createdAt time.Time) domain.Order {
	t.Helper()
	o := domain.Order{
		ID:        id,
		AccountID: "acct-1",
		Symbol:    "NVDA",
		Side:      domain.OrderSideBuy,
		Quantity:  10,
		Status:    status,
		CreatedAt: createdAt,
	}
	require.NoError(t, s.Create(context.Background(), o))
	return o
}

func TestOrderStore_CreateAndGet(t *testing.T) {
	s := NewOrderStore(NewDB())
	ctx := context.Background()

	seedOrder(t, s, "o1", domain.OrderStatusProposed, time.Now().UTC())
	got, err := s.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", got.ID)

	// Duplicate ids are refused.
	err = s.Create(ctx, domain.Order{ID: "o1"})
	require.Error(t, err)

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrderStore_UpdateStatusEnforcesLifecycle(t *testing.T) {
	s := NewOrderStore(NewDB())
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("proposed through submitted", func(t *testing.T) {
		seedOrder(t, s, "o1", domain.OrderStatusProposed, now)
		require.NoError(t, s.UpdateStatus(ctx, "o1", domain.OrderStatusApproved, ""))
		require.NoError(t, s.UpdateStatus(ctx, "o1", domain.OrderStatusSubmitted, ""))
	})

	t.Run("skipping a state is refused", func(t *testing.T) {
		seedOrder(t, s, "o2", domain.OrderStatusProposed, now)
		err := s.UpdateStatus(ctx, "o2", domain.OrderStatusSubmitted, "")
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("terminal orders are immutable", func(t *testing.T) {
		seedOrder(t, s, "o3", domain.OrderStatusProposed, now)
		require.NoError(t, s.UpdateStatus(ctx, "o3", domain.OrderStatusRejected, "max_positions"))
		err := s.UpdateStatus(ctx, "o3", domain.OrderStatusApproved, "")
		require.ErrorIs(t, err, domain.ErrInvalidTransition)

		got, err := s.Get(ctx, "o3")
		require.NoError(t, err)
		assert.Equal(t, "max_positions", got.RejectReason)
	})

	t.Run("cancellation stamps the time", func(t *testing.T) {
		seedOrder(t, s, "o4", domain.OrderStatusProposed, now)
		require.NoError(t, s.UpdateStatus(ctx, "o4", domain.OrderStatusCancelled, ""))
		got, err := s.Get(ctx, "o4")
		require.NoError(t, err)
		require.NotNil(t, got.CancelledAt)
	})
}

func TestOrderStore_ListByAccount(t *testing.T) {
	s := NewOrderStore(NewDB())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"o1", "o2", "o3"} {
		seedOrder(t, s, id, domain.OrderStatusProposed, base.Add(time.Duration(i)*time.Hour))
	}

	t.Run("newest first", func(t *testing.T) {
		out, err := s.ListByAccount(ctx, "acct-1", domain.ListOpts{})
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, "o3", out[0].ID)
		assert.Equal(t, "o1", out[2].ID)
	})

	t.Run("time window", func(t *testing.T) {
		since := base.Add(30 * time.Minute)
		until := base.Add(90 * time.Minute)
		out, err := s.ListByAccount(ctx, "acct-1", domain.ListOpts{Since: &since, Until: &until})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "o2", out[0].ID)
	})

	t.Run("pagination", func(t *testing.T) {
		out, err := s.ListByAccount(ctx, "acct-1", domain.ListOpts{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "o2", out[0].ID)

		out, err = s.ListByAccount(ctx, "acct-1", domain.ListOpts{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}

func TestOrderStore_ListOpenBySymbol(t *testing.T) {
	s := NewOrderStore(NewDB())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	seedOrder(t, s, "open-old", domain.OrderStatusProposed, base)
	seedOrder(t, s, "open-new", domain.OrderStatusSubmitted, base.Add(time.Hour))
	seedOrder(t, s, "done", domain.OrderStatusFilled, base)

	out, err := s.ListOpenBySymbol(ctx, "acct-1", "NVDA")
	require.NoError(t, err)
	require.Len(t, out, 2)
	// Oldest first, terminal orders excluded.
	assert.Equal(t, "open-old", out[0].ID)
	assert.Equal(t, "open-new", out[1].ID)

	out, err = s.ListOpenBySymbol(ctx, "acct-1", "TSLA")
	require.NoError(t, err)
	assert.Empty(t, out)
}
