package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
)

// FillStore implements domain.FillStore using PostgreSQL. The fill journal is
// the source of truth for realized PnL; the daily-loss risk check is a sum
// over exit fills since local midnight.
type FillStore struct {
	pool *pgxpool.Pool
}

// NewFillStore creates a new FillStore backed by the given connection pool.
func NewFillStore(pool *pgxpool.Pool) *FillStore {
	return &FillStore{pool: pool}
}

// Insert journals one executed entry or exit.
func (s *FillStore) Insert(ctx context.Context, fill domain.Fill) error {
	const query = `
		INSERT INTO fills (id, asset, strategy, side, price, size_sol, realized_pnl_sol, bundle_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.pool.Exec(ctx, query,
		fill.ID,
		fill.Asset,
		string(fill.Strategy),
		fill.Side,
		fill.Price,
		fill.SizeSOL,
		fill.RealizedPnLSOL,
		fill.BundleID,
		fill.Reason,
		fill.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert fill %s: %w", fill.ID, err)
	}
	return nil
}

// SumRealizedPnLSince returns the total realized PnL over exit fills created
// at or after the given time. A losing day yields a negative number.
func (s *FillStore) SumRealizedPnLSince(ctx context.Context, since time.Time) (float64, error) {
	const query = `
		SELECT COALESCE(SUM(realized_pnl_sol), 0)
		FROM fills
		WHERE side = 'exit' AND created_at >= $1`
	var sum float64
	if err := s.pool.QueryRow(ctx, query, since).Scan(&sum); err != nil {
		return 0, fmt.Errorf("postgres: sum realized pnl: %w", err)
	}
	return sum, nil
}

// ListSince returns fills created at or after the given time, newest first.
func (s *FillStore) ListSince(ctx context.Context, since time.Time, limit int) ([]domain.Fill, error) {
	const query = `
		SELECT id, asset, strategy, side, price, size_sol, realized_pnl_sol, bundle_id, reason, created_at
		FROM fills
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := s.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills: %w", err)
	}
	defer rows.Close()

	var fills []domain.Fill
	for rows.Next() {
		var f domain.Fill
		var strategy string
		if err := rows.Scan(&f.ID, &f.Asset, &strategy, &f.Side, &f.Price, &f.SizeSOL,
			&f.RealizedPnLSOL, &f.BundleID, &f.Reason, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan fill: %w", err)
		}
		f.Strategy = domain.StrategyKind(strategy)
		fills = append(fills, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list fills rows: %w", err)
	}
	return fills, nil
}

// Compile-time interface check.
var _ domain.FillStore = (*FillStore)(nil)
