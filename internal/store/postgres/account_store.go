package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// AccountStore implements domain.AccountStore using PostgreSQL.
type AccountStore struct {
	pool *pgxpool.Pool
}

var _ domain.AccountStore = (*AccountStore)(nil)

func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

const accountSelectCols = `id, owner_id, cash_ticks, starting_cash_ticks, created_at, updated_at`

func scanAccountRow(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.OwnerID, &a.CashTicks, &a.StartingCashTicks, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// Get retrieves an account by ID.
func (s *AccountStore) Get(ctx context.Context, id string) (domain.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountSelectCols+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccountRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("postgres: get account %s: %w", id, err)
	}
	return a, nil
}

// GetOrCreateByOwner returns the owner's account, creating it with the given
// starting cash and an initial equity snapshot when absent. Creation and the
// snapshot commit together.
func (s *AccountStore) GetOrCreateByOwner(ctx context.Context, ownerID string, startingCashTicks int64) (domain.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountSelectCols+` FROM accounts WHERE owner_id = $1`, ownerID)
	a, err := scanAccountRow(row)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, fmt.Errorf("postgres: get account by owner %s: %w", ownerID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Account{}, fmt.Errorf("postgres: begin create account: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id := uuid.NewString()
	row = tx.QueryRow(ctx, `
		INSERT INTO accounts (id, owner_id, cash_ticks, starting_cash_ticks)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (owner_id) DO NOTHING
		RETURNING `+accountSelectCols,
		id, ownerID, startingCashTicks)
	a, err = scanAccountRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a create race; the winner's row is the account.
			row = tx.QueryRow(ctx,
				`SELECT `+accountSelectCols+` FROM accounts WHERE owner_id = $1`, ownerID)
			if a, err = scanAccountRow(row); err == nil {
				return a, tx.Commit(ctx)
			}
		}
		return domain.Account{}, fmt.Errorf("postgres: create account for %s: %w", ownerID, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO equity_snapshots (account_id, equity_ticks, cash_ticks, positions_value_ticks, ts)
		VALUES ($1, $2, $2, 0, NOW())`,
		a.ID, startingCashTicks); err != nil {
		return domain.Account{}, fmt.Errorf("postgres: initial snapshot for %s: %w", a.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Account{}, fmt.Errorf("postgres: commit create account: %w", err)
	}
	return a, nil
}

// ApplyFill commits the cash delta, the position upsert or delete, and the
// order's filled transition in one transaction.
func (s *AccountStore) ApplyFill(ctx context.Context, fill domain.Fill) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin fill: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE accounts SET cash_ticks = cash_ticks + $2, updated_at = $3
		WHERE id = $1`,
		fill.AccountID, fill.CashDeltaTicks, fill.FilledAt)
	if err != nil {
		return fmt.Errorf("postgres: fill cash delta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if fill.NewQuantity == 0 {
		if _, err := tx.Exec(ctx,
			`DELETE FROM positions WHERE account_id = $1 AND symbol = $2`,
			fill.AccountID, fill.Symbol); err != nil {
			return fmt.Errorf("postgres: fill close position: %w", err)
		}
	} else {
		if _, err := tx.Exec(ctx, `
			INSERT INTO positions (account_id, symbol, quantity, avg_entry_ticks, mark_price_ticks, opened_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			ON CONFLICT (account_id, symbol) DO UPDATE SET
				quantity         = EXCLUDED.quantity,
				avg_entry_ticks  = EXCLUDED.avg_entry_ticks,
				mark_price_ticks = EXCLUDED.mark_price_ticks,
				updated_at       = EXCLUDED.updated_at`,
			fill.AccountID, fill.Symbol, fill.NewQuantity, fill.NewAvgTicks,
			fill.FillPriceTicks, fill.FilledAt); err != nil {
			return fmt.Errorf("postgres: fill upsert position: %w", err)
		}
	}

	// The status guard keeps a concurrently cancelled order from filling.
	tag, err = tx.Exec(ctx, `
		UPDATE orders SET status = 'filled', fill_price_ticks = $2, filled_at = $3
		WHERE id = $1 AND status = 'submitted'`,
		fill.OrderID, fill.FillPriceTicks, fill.FilledAt)
	if err != nil {
		return fmt.Errorf("postgres: fill order transition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: order %s not fillable: %w", fill.OrderID, domain.ErrInvalidTransition)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit fill: %w", err)
	}
	return nil
}
