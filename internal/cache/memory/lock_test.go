package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

func TestLockManager_AcquireAndRelease(t *testing.T) {
	m := NewLockManager()
	ctx := context.Background()

	unlock, err := m.Acquire(ctx, "cycle:acct-1", time.Minute)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "cycle:acct-1", time.Minute)
	require.ErrorIs(t, err, domain.ErrLockHeld)

	// A different key is independent.
	unlock2, err := m.Acquire(ctx, "cycle:acct-2", time.Minute)
	require.NoError(t, err)
	unlock2()

	unlock()
	_, err = m.Acquire(ctx, "cycle:acct-1", time.Minute)
	require.NoError(t, err)
}

func TestLockManager_ExpiredHoldIsReclaimable(t *testing.T) {
	m := NewLockManager()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	staleUnlock, err := m.Acquire(ctx, "cycle:acct-1", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = m.Acquire(ctx, "cycle:acct-1", time.Minute)
	require.NoError(t, err)

	// Releasing the stale hold must not free the new holder's lock.
	staleUnlock()
	_, err = m.Acquire(ctx, "cycle:acct-1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)
}

func TestLockManager_ReleaseIsIdempotent(t *testing.T) {
	m := NewLockManager()
	ctx := context.Background()

	unlock, err := m.Acquire(ctx, "cycle:acct-1", time.Minute)
	require.NoError(t, err)
	unlock()
	unlock()

	_, err = m.Acquire(ctx, "cycle:acct-1", time.Minute)
	require.NoError(t, err)
}
