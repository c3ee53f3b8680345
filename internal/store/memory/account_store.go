package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// AccountStore implements domain.AccountStore over the shared DB.
type AccountStore struct {
	db *DB
}

var _ domain.AccountStore = (*AccountStore)(nil)

func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Get(_ context.Context, id string) (domain.Account, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	acct, ok := s.db.accounts[id]
	if !ok {
		return domain.Account{}, fmt.Errorf("memory: account %s: %w", id, domain.ErrNotFound)
	}
	return acct, nil
}

func (s *AccountStore) GetOrCreateByOwner(_ context.Context, ownerID string, startingCashTicks int64) (domain.Account, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if id, ok := s.db.byOwner[ownerID]; ok {
		return s.db.accounts[id], nil
	}
	now := s.db.now().UTC()
	acct := domain.Account{
		ID:                uuid.NewString(),
		OwnerID:           ownerID,
		CashTicks:         startingCashTicks,
		StartingCashTicks: startingCashTicks,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.db.accounts[acct.ID] = acct
	s.db.byOwner[ownerID] = acct.ID

	// A fresh account starts its equity series at the deposit.
	s.db.snapSeq++
	s.db.snapshots[acct.ID] = append(s.db.snapshots[acct.ID], domain.EquitySnapshot{
		ID:          s.db.snapSeq,
		AccountID:   acct.ID,
		EquityTicks: startingCashTicks,
		CashTicks:   startingCashTicks,
		Timestamp:   now,
	})
	return acct, nil
}

// ApplyFill applies the cash delta, the position upsert or delete, and the
// order's filled transition under one lock acquisition.
func (s *AccountStore) ApplyFill(_ context.Context, fill domain.Fill) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	acct, ok := s.db.accounts[fill.AccountID]
	if !ok {
		return fmt.Errorf("memory: account %s: %w", fill.AccountID, domain.ErrNotFound)
	}
	order, ok := s.db.orders[fill.OrderID]
	if !ok {
		return fmt.Errorf("memory: order %s: %w", fill.OrderID, domain.ErrNotFound)
	}
	if !order.Status.CanTransition(domain.OrderStatusFilled) {
		return fmt.Errorf("memory: order %s is %s: %w", order.ID, order.Status, domain.ErrInvalidTransition)
	}

	acct.CashTicks += fill.CashDeltaTicks
	acct.UpdatedAt = fill.FilledAt
	s.db.accounts[fill.AccountID] = acct

	book := s.db.positions[fill.AccountID]
	if book == nil {
		book = make(map[string]domain.Position)
		s.db.positions[fill.AccountID] = book
	}
	if fill.NewQuantity == 0 {
		delete(book, fill.Symbol)
	} else {
		pos, exists := book[fill.Symbol]
		if !exists {
			pos = domain.Position{
				AccountID: fill.AccountID,
				Symbol:    fill.Symbol,
				OpenedAt:  fill.FilledAt,
			}
		}
		pos.Quantity = fill.NewQuantity
		pos.AvgEntryTicks = fill.NewAvgTicks
		pos.MarkPriceTicks = fill.FillPriceTicks
		pos.UpdatedAt = fill.FilledAt
		book[fill.Symbol] = pos
	}

	order.Status = domain.OrderStatusFilled
	order.FillPriceTicks = fill.FillPriceTicks
	filledAt := fill.FilledAt
	order.FilledAt = &filledAt
	s.db.orders[fill.OrderID] = order
	return nil
}
