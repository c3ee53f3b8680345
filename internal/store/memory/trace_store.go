package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// TraceStore implements domain.TraceStore over the shared DB.
type TraceStore struct {
	db *DB
}

var _ domain.TraceStore = (*TraceStore)(nil)

func NewTraceStore(db *DB) *TraceStore {
	return &TraceStore{db: db}
}

func (s *TraceStore) Put(_ context.Context, trace domain.CycleTrace) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.traces[trace.RunID] = trace
	return nil
}

func (s *TraceStore) Get(_ context.Context, runID string) (domain.CycleTrace, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	trace, ok := s.db.traces[runID]
	if !ok {
		return domain.CycleTrace{}, fmt.Errorf("memory: trace %s: %w", runID, domain.ErrNotFound)
	}
	return trace, nil
}

func (s *TraceStore) List(_ context.Context, accountID string, opts domain.ListOpts) ([]domain.CycleTrace, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.CycleTrace
	for _, trace := range s.db.traces {
		if trace.AccountID == accountID && inWindow(trace.StartedAt, opts) {
			out = append(out, trace)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return paginate(out, opts), nil
}
