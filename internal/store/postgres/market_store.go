package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veritasmkt/veritas/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// Upsert inserts or updates a single market snapshot.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, question, end_time, status, outcome,
			q_yes, q_no, liquidity_b, collateral,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status      = EXCLUDED.status,
			outcome     = EXCLUDED.outcome,
			q_yes       = EXCLUDED.q_yes,
			q_no        = EXCLUDED.q_no,
			collateral  = EXCLUDED.collateral,
			updated_at  = NOW()`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.Question, m.EndTime, string(m.Status), outcomeToSQL(m.Outcome),
		m.QYes, m.QNo, m.LiquidityB, m.Collateral,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

const marketCols = `id, question, end_time, status, outcome,
	q_yes, q_no, liquidity_b, collateral, created_at, updated_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m       domain.Market
		status  string
		outcome *int16
	)
	err := row.Scan(
		&m.ID, &m.Question, &m.EndTime, &status, &outcome,
		&m.QYes, &m.QNo, &m.LiquidityB, &m.Collateral,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	m.Outcome = outcomeFromSQL(outcome)
	return m, nil
}

// Get retrieves a market snapshot by its ID.
func (s *MarketStore) Get(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, fmt.Errorf("postgres: market %s: %w", id, domain.ErrNotFound)
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// List returns market snapshots ordered by creation time, newest first.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets ORDER BY created_at DESC`
	args := []any{}
	argIdx := 1

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
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

func outcomeToSQL(o *domain.Outcome) *int16 {
	if o == nil {
		return nil
	}
	v := int16(*o)
	return &v
}

func outcomeFromSQL(v *int16) *domain.Outcome {
	if v == nil {
		return nil
	}
	o := domain.Outcome(*v)
	return &o
}
