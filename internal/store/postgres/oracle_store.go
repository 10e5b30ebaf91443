package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veritasmkt/veritas/internal/domain"
)

// OracleRequestStore implements domain.OracleRequestStore using PostgreSQL.
type OracleRequestStore struct {
	pool *pgxpool.Pool
}

// NewOracleRequestStore creates a new OracleRequestStore backed by the given
// connection pool.
func NewOracleRequestStore(pool *pgxpool.Pool) *OracleRequestStore {
	return &OracleRequestStore{pool: pool}
}

// Upsert writes the single oracle request row for a market, overwriting any
// prior snapshot.
func (s *OracleRequestStore) Upsert(ctx context.Context, r domain.OracleRequest) error {
	const query = `
		INSERT INTO oracle_requests (
			market_id, state, proposed_outcome, proposer, proposer_bond,
			proposed_at, disputer, disputer_bond, disputed_at,
			final_outcome, finalized_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11
		)
		ON CONFLICT (market_id) DO UPDATE SET
			state         = EXCLUDED.state,
			disputer      = EXCLUDED.disputer,
			disputer_bond = EXCLUDED.disputer_bond,
			disputed_at   = EXCLUDED.disputed_at,
			final_outcome = EXCLUDED.final_outcome,
			finalized_at  = EXCLUDED.finalized_at`

	var disputer *string
	if r.Disputer != "" {
		disputer = &r.Disputer
	}
	_, err := s.pool.Exec(ctx, query,
		r.MarketID, string(r.State), int16(r.ProposedOutcome), r.Proposer, r.ProposerBond,
		r.ProposedAt, disputer, r.DisputerBond, r.DisputedAt,
		outcomeToSQL(r.FinalOutcome), r.FinalizedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert oracle request %s: %w", r.MarketID, err)
	}
	return nil
}

const oracleCols = `market_id, state, proposed_outcome, proposer, proposer_bond,
	proposed_at, disputer, disputer_bond, disputed_at, final_outcome, finalized_at`

func scanOracleRequest(row pgx.Row) (domain.OracleRequest, error) {
	var (
		r        domain.OracleRequest
		state    string
		proposed int16
		disputer *string
		final    *int16
	)
	err := row.Scan(
		&r.MarketID, &state, &proposed, &r.Proposer, &r.ProposerBond,
		&r.ProposedAt, &disputer, &r.DisputerBond, &r.DisputedAt,
		&final, &r.FinalizedAt,
	)
	if err != nil {
		return domain.OracleRequest{}, err
	}
	r.State = domain.OracleRequestState(state)
	r.ProposedOutcome = domain.Outcome(proposed)
	if disputer != nil {
		r.Disputer = *disputer
	}
	r.FinalOutcome = outcomeFromSQL(final)
	return r, nil
}

// Get retrieves the oracle request for a market.
func (s *OracleRequestStore) Get(ctx context.Context, marketID string) (domain.OracleRequest, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+oracleCols+` FROM oracle_requests WHERE market_id = $1`, marketID)
	r, err := scanOracleRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OracleRequest{}, fmt.Errorf("postgres: oracle request %s: %w", marketID, domain.ErrNotFound)
		}
		return domain.OracleRequest{}, fmt.Errorf("postgres: get oracle request %s: %w", marketID, err)
	}
	return r, nil
}

// ListFinalizedBefore returns requests finalized strictly before the given
// instant, oldest first. Used by the archiver.
func (s *OracleRequestStore) ListFinalizedBefore(ctx context.Context, before time.Time) ([]domain.OracleRequest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+oracleCols+` FROM oracle_requests
		 WHERE state = 'finalized' AND finalized_at < $1
		 ORDER BY finalized_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list finalized oracle requests: %w", err)
	}
	defer rows.Close()

	var reqs []domain.OracleRequest
	for rows.Next() {
		r, err := scanOracleRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan oracle request: %w", err)
		}
		reqs = append(reqs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list finalized oracle requests rows: %w", err)
	}
	return reqs, nil
}
