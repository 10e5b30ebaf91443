package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Outcome identifies one side of a binary market. The numeric values are
// part of the signed wire format (0 = YES, 1 = NO) and must not change.
type Outcome uint8

const (
	OutcomeYes Outcome = 0
	OutcomeNo  Outcome = 1
)

// String returns the canonical lowercase name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeYes:
		return "yes"
	case OutcomeNo:
		return "no"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Opposite returns the other side of the market.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// ParseOutcome converts a user-supplied outcome name to an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "yes", "YES", "Yes", "0":
		return OutcomeYes, nil
	case "no", "NO", "No", "1":
		return OutcomeNo, nil
	default:
		return 0, fmt.Errorf("unknown outcome %q", s)
	}
}

// MarketStatus represents the lifecycle state of a market. Transitions are
// strictly monotonic: open -> closed -> settled, no state is ever revisited.
type MarketStatus string

const (
	MarketStatusOpen    MarketStatus = "open"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
)

// Quantities is the AMM state of a market: the outstanding share quantity on
// each side plus the LMSR liquidity parameter b (always > 0). Quantities
// increase on buys, decrease on sells and never drop below zero.
type Quantities struct {
	QYes       decimal.Decimal
	QNo        decimal.Decimal
	LiquidityB decimal.Decimal
}

// Side returns the outstanding quantity for the given outcome.
func (q Quantities) Side(o Outcome) decimal.Decimal {
	if o == OutcomeYes {
		return q.QYes
	}
	return q.QNo
}

// WithSide returns a copy of q with the given outcome's quantity replaced.
func (q Quantities) WithSide(o Outcome, v decimal.Decimal) Quantities {
	if o == OutcomeYes {
		q.QYes = v
	} else {
		q.QNo = v
	}
	return q
}

// Market is the persisted record view of a market, written to the audit
// store after every committed state change. The live state machine lives in
// the market package; this struct is what stores and handlers exchange.
type Market struct {
	ID         string
	Question   string
	EndTime    time.Time
	Status     MarketStatus
	Outcome    *Outcome // set once settled
	QYes       decimal.Decimal
	QNo        decimal.Decimal
	LiquidityB decimal.Decimal
	Collateral decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PayoutRatePerClaim is the protocol-fixed redemption rate: one unit of
// settlement currency per winning claim.
var PayoutRatePerClaim = decimal.NewFromInt(1)
