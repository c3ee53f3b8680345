package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// PositionStore implements domain.PositionStore over the shared DB.
type PositionStore struct {
	db *DB
}

var _ domain.PositionStore = (*PositionStore)(nil)

func NewPositionStore(db *DB) *PositionStore {
	return &PositionStore{db: db}
}

func (s *PositionStore) ListByAccount(_ context.Context, accountID string) ([]domain.Position, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	book := s.db.positions[accountID]
	out := make([]domain.Position, 0, len(book))
	for _, p := range book {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *PositionStore) Get(_ context.Context, accountID, symbol string) (domain.Position, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	pos, ok := s.db.positions[accountID][symbol]
	if !ok {
		return domain.Position{}, fmt.Errorf("memory: position %s/%s: %w", accountID, symbol, domain.ErrNotFound)
	}
	return pos, nil
}

func (s *PositionStore) UpdateMarkPrices(_ context.Context, accountID string, priceTicks map[string]int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	book := s.db.positions[accountID]
	now := s.db.now().UTC()
	for symbol, price := range priceTicks {
		if pos, ok := book[symbol]; ok {
			pos.MarkPriceTicks = price
			pos.UpdatedAt = now
			book[symbol] = pos
		}
	}
	return nil
}
