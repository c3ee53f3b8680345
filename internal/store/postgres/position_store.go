package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL. Position
// rows are only created and removed through fills; this store reads them
// and refreshes mark prices.
type PositionStore struct {
	pool *pgxpool.Pool
}

var _ domain.PositionStore = (*PositionStore)(nil)

func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `account_id, symbol, quantity, avg_entry_ticks, mark_price_ticks, opened_at, updated_at`

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(
			&p.AccountID, &p.Symbol, &p.Quantity,
			&p.AvgEntryTicks, &p.MarkPriceTicks,
			&p.OpenedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// ListByAccount returns the account's open positions ordered by symbol.
func (s *PositionStore) ListByAccount(ctx context.Context, accountID string) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE account_id = $1 ORDER BY symbol`, accountID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return positions, nil
}

// Get retrieves one position.
func (s *PositionStore) Get(ctx context.Context, accountID, symbol string) (domain.Position, error) {
	var p domain.Position
	err := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE account_id = $1 AND symbol = $2`, accountID, symbol).
		Scan(&p.AccountID, &p.Symbol, &p.Quantity,
			&p.AvgEntryTicks, &p.MarkPriceTicks,
			&p.OpenedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s/%s: %w", accountID, symbol, err)
	}
	return p, nil
}

// UpdateMarkPrices refreshes the last observed price on the given symbols.
func (s *PositionStore) UpdateMarkPrices(ctx context.Context, accountID string, priceTicks map[string]int64) error {
	if len(priceTicks) == 0 {
		return nil
	}
	symbols := make([]string, 0, len(priceTicks))
	prices := make([]int64, 0, len(priceTicks))
	for symbol, price := range priceTicks {
		symbols = append(symbols, symbol)
		prices = append(prices, price)
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE positions p SET mark_price_ticks = u.price, updated_at = NOW()
		FROM (SELECT UNNEST($2::text[]) AS symbol, UNNEST($3::bigint[]) AS price) u
		WHERE p.account_id = $1 AND p.symbol = u.symbol`,
		accountID, symbols, prices)
	if err != nil {
		return fmt.Errorf("postgres: update mark prices: %w", err)
	}
	return nil
}
