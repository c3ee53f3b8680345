package memory

import (
	"context"
	"sort"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore over the shared DB.
type SnapshotStore struct {
	db *DB
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Append(_ context.Context, snap domain.EquitySnapshot) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.snapSeq++
	snap.ID = s.db.snapSeq
	s.db.snapshots[snap.AccountID] = append(s.db.snapshots[snap.AccountID], snap)
	return nil
}

func (s *SnapshotStore) ListByAccount(_ context.Context, accountID string, opts domain.ListOpts) ([]domain.EquitySnapshot, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.EquitySnapshot
	for _, snap := range s.db.snapshots[accountID] {
		if inWindow(snap.Timestamp, opts) {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, opts), nil
}
