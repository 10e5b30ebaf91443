package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OracleRequestState is the explicit tagged state of an optimistic oracle
// request. Only the legal transitions exist:
//
//	none -> proposed -> disputed -> finalized
//	               \-> finalized (undisputed path)
type OracleRequestState string

const (
	OracleRequestNone      OracleRequestState = "none"
	OracleRequestProposed  OracleRequestState = "proposed"
	OracleRequestDisputed  OracleRequestState = "disputed"
	OracleRequestFinalized OracleRequestState = "finalized"
)

// OracleRequest is the record of one market's truth-resolution request.
// There is at most one per market; it is created on the first proposal,
// mutated by dispute/resolve/finalize, and never deleted (it doubles as the
// settlement proof in the audit trail).
type OracleRequest struct {
	MarketID        string
	State           OracleRequestState
	ProposedOutcome Outcome
	Proposer        string
	ProposerBond    decimal.Decimal
	ProposedAt      time.Time
	Disputer        string
	DisputerBond    decimal.Decimal
	DisputedAt      *time.Time
	FinalOutcome    *Outcome
	FinalizedAt     *time.Time
}
