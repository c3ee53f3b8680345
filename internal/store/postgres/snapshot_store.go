package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL. The table
// is append-only; rows are never updated or deleted.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Append inserts one equity snapshot.
func (s *SnapshotStore) Append(ctx context.Context, snap domain.EquitySnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO equity_snapshots (account_id, equity_ticks, cash_ticks, positions_value_ticks, ts)
		VALUES ($1, $2, $3, $4, $5)`,
		snap.AccountID, snap.EquityTicks, snap.CashTicks, snap.PositionsValueTicks, snap.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: append snapshot: %w", err)
	}
	return nil
}

// ListByAccount returns the equity series oldest first with pagination and
// optional time filtering.
func (s *SnapshotStore) ListByAccount(ctx context.Context, accountID string, opts domain.ListOpts) ([]domain.EquitySnapshot, error) {
	query := `SELECT id, account_id, equity_ticks, cash_ticks, positions_value_ticks, ts
		FROM equity_snapshots WHERE account_id = $1`
	args := []any{accountID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND ts >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND ts <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY ts"

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
		return nil, fmt.Errorf("postgres: list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.EquitySnapshot
	for rows.Next() {
		var snap domain.EquitySnapshot
		if err := rows.Scan(&snap.ID, &snap.AccountID, &snap.EquityTicks,
			&snap.CashTicks, &snap.PositionsValueTicks, &snap.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan snapshots: %w", err)
	}
	return snaps, nil
}
