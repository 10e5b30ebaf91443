package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veritasmkt/veritas/internal/domain"
)

// RedemptionStore implements domain.RedemptionStore using PostgreSQL.
type RedemptionStore struct {
	pool *pgxpool.Pool
}

// NewRedemptionStore creates a new RedemptionStore backed by the given
// connection pool.
func NewRedemptionStore(pool *pgxpool.Pool) *RedemptionStore {
	return &RedemptionStore{pool: pool}
}

// Insert records a redemption payout.
func (s *RedemptionStore) Insert(ctx context.Context, r domain.Redemption) error {
	const query = `
		INSERT INTO redemptions (id, market_id, holder, amount, payout, redeemed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.MarketID, r.Holder, r.Amount, r.Payout, r.RedeemedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert redemption %s: %w", r.ID, err)
	}
	return nil
}

// ListByMarket returns a market's redemptions, newest first.
func (s *RedemptionStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Redemption, error) {
	query := `SELECT id, market_id, holder, amount, payout, redeemed_at
		FROM redemptions WHERE market_id = $1 ORDER BY redeemed_at DESC`
	args := []any{marketID}
	argIdx := 2

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
		return nil, fmt.Errorf("postgres: list redemptions: %w", err)
	}
	defer rows.Close()

	var reds []domain.Redemption
	for rows.Next() {
		var r domain.Redemption
		if err := rows.Scan(&r.ID, &r.MarketID, &r.Holder, &r.Amount, &r.Payout, &r.RedeemedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan redemption: %w", err)
		}
		reds = append(reds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list redemptions rows: %w", err)
	}
	return reds, nil
}
