// Package memory provides in-memory store implementations backed by maps
// and a single mutex. Used in dev mode and by tests; semantics mirror the
// postgres stores, including the single-transaction fill.
package memory

import (
	"sync"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// DB is the shared in-process state. One mutex guards every table so
// ApplyFill is atomic the same way a database transaction is.
type DB struct {
	mu        sync.Mutex
	accounts  map[string]domain.Account
	byOwner   map[string]string // owner id -> account id
	positions map[string]map[string]domain.Position
	orders    map[string]domain.Order
	snapshots map[string][]domain.EquitySnapshot
	traces    map[string]domain.CycleTrace
	snapSeq   int64
	now       func() time.Time
}

func NewDB() *DB {
	return &DB{
		accounts:  make(map[string]domain.Account),
		byOwner:   make(map[string]string),
		positions: make(map[string]map[string]domain.Position),
		orders:    make(map[string]domain.Order),
		snapshots: make(map[string][]domain.EquitySnapshot),
		traces:    make(map[string]domain.CycleTrace),
		now:       time.Now,
	}
}
