package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veritasmkt/veritas/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Insert records an executed trade. The fingerprint column's unique
// constraint makes accidental double-recording impossible at the storage
// layer as well.
func (s *TradeStore) Insert(ctx context.Context, t domain.Trade) error {
	const query = `
		INSERT INTO trades (
			id, market_id, trader, outcome, side,
			amount, cost, fingerprint, nonce, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.MarketID, t.Trader, int16(t.Outcome), t.Side,
		t.Amount, t.Cost, t.Fingerprint, int64(t.Nonce), t.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", t.ID, err)
	}
	return nil
}

const tradeCols = `id, market_id, trader, outcome, side,
	amount, cost, fingerprint, nonce, executed_at`

// ListByMarket returns a market's trades, newest first.
func (s *TradeStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeCols + ` FROM trades WHERE market_id = $1 ORDER BY executed_at DESC`
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

	return s.list(ctx, query, args...)
}

// ListBefore returns all trades executed strictly before the given instant,
// oldest first. Used by the archiver to select cold rows for export.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	query := `SELECT ` + tradeCols + ` FROM trades WHERE executed_at < $1 ORDER BY executed_at ASC`
	return s.list(ctx, query, before)
}

func (s *TradeStore) list(ctx context.Context, query string, args ...any) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			t       domain.Trade
			outcome int16
			nonce   int64
		)
		if err := rows.Scan(
			&t.ID, &t.MarketID, &t.Trader, &outcome, &t.Side,
			&t.Amount, &t.Cost, &t.Fingerprint, &nonce, &t.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		t.Outcome = domain.Outcome(outcome)
		t.Nonce = uint64(nonce)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list trades rows: %w", err)
	}
	return trades, nil
}
