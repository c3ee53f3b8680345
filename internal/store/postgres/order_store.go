package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

var _ domain.OrderStore = (*OrderStore)(nil)

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderSelectCols = `id, account_id, symbol, side, quantity, price_ticks,
	fill_price_ticks, status, run_id, confidence, reasoning, reject_reason,
	created_at, filled_at, cancelled_at`

func scanOrderRow(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var side, status string
	err := row.Scan(
		&o.ID, &o.AccountID, &o.Symbol, &side, &o.Quantity, &o.PriceTicks,
		&o.FillPriceTicks, &status, &o.RunID, &o.Confidence, &o.Reasoning,
		&o.RejectReason, &o.CreatedAt, &o.FilledAt, &o.CancelledAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.Side = domain.OrderSide(side)
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func scanOrderRows(rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Create inserts a new order.
func (s *OrderStore) Create(ctx context.Context, o domain.Order) error {
	const query = `
		INSERT INTO orders (
			id, account_id, symbol, side, quantity, price_ticks,
			fill_price_ticks, status, run_id, confidence, reasoning,
			reject_reason, created_at, filled_at, cancelled_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15
		)`
	_, err := s.pool.Exec(ctx, query,
		o.ID, o.AccountID, o.Symbol, string(o.Side), o.Quantity, o.PriceTicks,
		o.FillPriceTicks, string(o.Status), o.RunID, o.Confidence, o.Reasoning,
		o.RejectReason, o.CreatedAt, o.FilledAt, o.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order %s: %w", o.ID, err)
	}
	return nil
}

// Get retrieves a single order by ID.
func (s *OrderStore) Get(ctx context.Context, id string) (domain.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE id = $1`, id)
	o, err := scanOrderRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return o, nil
}

// UpdateStatus transitions an order. The WHERE clause re-checks the state
// machine in the database, so a stale caller cannot move a terminal order.
func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, rejectReason string) error {
	var allowedFrom []string
	switch status {
	case domain.OrderStatusApproved:
		allowedFrom = []string{"proposed"}
	case domain.OrderStatusSubmitted:
		allowedFrom = []string{"approved"}
	case domain.OrderStatusFilled:
		allowedFrom = []string{"submitted"}
	case domain.OrderStatusRejected:
		allowedFrom = []string{"proposed", "submitted"}
	case domain.OrderStatusCancelled:
		allowedFrom = []string{"proposed", "approved", "submitted"}
	default:
		return fmt.Errorf("postgres: order %s -> %s: %w", id, status, domain.ErrInvalidTransition)
	}

	const query = `
		UPDATE orders SET
			status        = $2,
			reject_reason = CASE WHEN $2 = 'rejected' THEN $3 ELSE reject_reason END,
			cancelled_at  = CASE WHEN $2 = 'cancelled' THEN NOW() ELSE cancelled_at END
		WHERE id = $1 AND status = ANY($4)`
	tag, err := s.pool.Exec(ctx, query, id, string(status), rejectReason, allowedFrom)
	if err != nil {
		return fmt.Errorf("postgres: update order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing order from a disallowed transition.
		var cur string
		err := s.pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&cur)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: update order %s: %w", id, err)
		}
		return fmt.Errorf("postgres: order %s: %s -> %s: %w", id, cur, status, domain.ErrInvalidTransition)
	}
	return nil
}

// ListByAccount returns the account's orders newest first with pagination
// and optional time filtering.
func (s *OrderStore) ListByAccount(ctx context.Context, accountID string, opts domain.ListOpts) ([]domain.Order, error) {
	query := `SELECT ` + orderSelectCols + ` FROM orders WHERE account_id = $1`
	args := []any{accountID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan orders: %w", err)
	}
	return orders, nil
}

// ListOpenBySymbol returns the non-terminal orders for (account, symbol).
func (s *OrderStore) ListOpenBySymbol(ctx context.Context, accountID, symbol string) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE account_id = $1 AND symbol = $2
		   AND status IN ('proposed', 'approved', 'submitted')
		 ORDER BY created_at`, accountID, symbol)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open orders: %w", err)
	}
	return orders, nil
}
