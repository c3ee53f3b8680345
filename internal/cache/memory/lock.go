// Package memory provides a process-local lock manager for dev mode and
// tests, with the same non-blocking semantics as the redis implementation.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// LockManager hands out non-blocking per-key locks. A held key fails
// acquisition immediately with domain.ErrLockHeld; expired holds are
// reclaimable.
type LockManager struct {
	mu    sync.Mutex
	holds map[string]time.Time // key -> expiry
	now   func() time.Time
}

var _ domain.LockManager = (*LockManager)(nil)

func NewLockManager() *LockManager {
	return &LockManager{
		holds: make(map[string]time.Time),
		now:   time.Now,
	}
}

func (m *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expiry, held := m.holds[key]; held && expiry.After(now) {
		return nil, fmt.Errorf("memory: lock %s: %w", key, domain.ErrLockHeld)
	}
	expiry := now.Add(ttl)
	m.holds[key] = expiry

	release := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// Only release our own hold; an expired lock may have been
		// reacquired by someone else.
		if cur, held := m.holds[key]; held && cur.Equal(expiry) {
			delete(m.holds, key)
		}
	}
	return release, nil
}
