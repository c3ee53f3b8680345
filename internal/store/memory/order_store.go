package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// OrderStore implements domain.OrderStore over the shared DB.
type OrderStore struct {
	db *DB
}

var _ domain.OrderStore = (*OrderStore)(nil)

func NewOrderStore(db *DB) *OrderStore {
	return &OrderStore{db: db}
}

func (s *OrderStore) Create(_ context.Context, o domain.Order) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, exists := s.db.orders[o.ID]; exists {
		return fmt.Errorf("memory: order %s already exists", o.ID)
	}
	s.db.orders[o.ID] = o
	return nil
}

func (s *OrderStore) Get(_ context.Context, id string) (domain.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	o, ok := s.db.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("memory: order %s: %w", id, domain.ErrNotFound)
	}
	return o, nil
}

func (s *OrderStore) UpdateStatus(_ context.Context, id string, status domain.OrderStatus, rejectReason string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	o, ok := s.db.orders[id]
	if !ok {
		return fmt.Errorf("memory: order %s: %w", id, domain.ErrNotFound)
	}
	if !o.Status.CanTransition(status) {
		return fmt.Errorf("memory: order %s: %s -> %s: %w", id, o.Status, status, domain.ErrInvalidTransition)
	}
	o.Status = status
	if status == domain.OrderStatusRejected {
		o.RejectReason = rejectReason
	}
	if status == domain.OrderStatusCancelled {
		now := s.db.now().UTC()
		o.CancelledAt = &now
	}
	s.db.orders[id] = o
	return nil
}

func (s *OrderStore) ListByAccount(_ context.Context, accountID string, opts domain.ListOpts) ([]domain.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.Order
	for _, o := range s.db.orders {
		if o.AccountID != accountID || !inWindow(o.CreatedAt, opts) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, opts), nil
}

func (s *OrderStore) ListOpenBySymbol(_ context.Context, accountID, symbol string) ([]domain.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.Order
	for _, o := range s.db.orders {
		if o.AccountID == accountID && o.Symbol == symbol && !o.Status.Terminal() {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func inWindow(t time.Time, opts domain.ListOpts) bool {
	if opts.Since != nil && t.Before(*opts.Since) {
		return false
	}
	if opts.Until != nil && t.After(*opts.Until) {
		return false
	}
	return true
}

func paginate[T any](in []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(in) {
			return nil
		}
		in = in[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(in) {
		in = in[:opts.Limit]
	}
	return in
}
