// Package pricing implements the Logarithmic Market Scoring Rule (LMSR)
// cost function for binary outcome markets:
//
//	C(qYes, qNo) = b * ln(exp(qYes/b) + exp(qNo/b))
//
// All arithmetic runs on shopspring decimals with 32 fractional digits of
// working precision; exp and ln are evaluated by the decimal library's
// series implementations, never by a truncated polynomial. Results are
// quoted at the 1e-6 amount scale with the rounding direction always in
// the market's favour (costs up, refunds down), so per-trade numeric error
// is bounded by one base unit and a same-state round trip can never
// extract value.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
)

const (
	// calcPrecision is the number of fractional digits carried through the
	// transcendental evaluations.
	calcPrecision int32 = 32

	// amountScale is the number of fractional digits in quoted amounts,
	// matching the signed wire format's 1e6 base units.
	amountScale int32 = 6
)

// Cost evaluates the LMSR cost function at the given quantities. It uses
// the log-sum-exp rearrangement so the exp arguments are never positive:
//
//	C = max(qYes, qNo) + b * ln(exp((qYes-max)/b) + exp((qNo-max)/b))
func Cost(q domain.Quantities) (decimal.Decimal, error) {
	b := q.LiquidityB
	if b.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("pricing: liquidity parameter must be positive, got %s", b)
	}
	if q.QYes.Sign() < 0 || q.QNo.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("pricing: negative quantity (qYes=%s qNo=%s)", q.QYes, q.QNo)
	}

	maxQ := decimal.Max(q.QYes, q.QNo)

	expYes, err := q.QYes.Sub(maxQ).DivRound(b, calcPrecision).ExpTaylor(calcPrecision)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricing: exp(qYes): %w", err)
	}
	expNo, err := q.QNo.Sub(maxQ).DivRound(b, calcPrecision).ExpTaylor(calcPrecision)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricing: exp(qNo): %w", err)
	}

	// The sum is in (1, 2], well inside Ln's convergence range.
	lnSum, err := expYes.Add(expNo).Ln(calcPrecision)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricing: ln: %w", err)
	}

	return maxQ.Add(b.Mul(lnSum)), nil
}

// CostOfTrade computes the currency delta for buying or selling amount
// claims of the given outcome at state q. It returns the cost (buy: amount
// owed, sell: amount refunded) and the post-trade quantities.
//
// Buys are charged cost(after) - cost(before); sells are refunded
// cost(before) - cost(after) with the same symmetric curve. A sell larger
// than the outstanding side quantity is rejected. A negative computed
// refund is an internal-consistency failure and is surfaced as
// domain.ErrPricingInconsistency, distinct from ordinary rejections.
func CostOfTrade(q domain.Quantities, outcome domain.Outcome, amount decimal.Decimal, isSell bool) (decimal.Decimal, domain.Quantities, error) {
	if amount.Sign() <= 0 {
		return decimal.Zero, q, domain.ErrInvalidAmount
	}

	side := q.Side(outcome)
	var after domain.Quantities
	if isSell {
		if amount.GreaterThan(side) {
			return decimal.Zero, q, domain.ErrInsufficientShares
		}
		after = q.WithSide(outcome, side.Sub(amount))
	} else {
		after = q.WithSide(outcome, side.Add(amount))
	}

	costBefore, err := Cost(q)
	if err != nil {
		return decimal.Zero, q, err
	}
	costAfter, err := Cost(after)
	if err != nil {
		return decimal.Zero, q, err
	}

	if isSell {
		refund := costBefore.Sub(costAfter)
		if refund.Sign() < 0 {
			return decimal.Zero, q, fmt.Errorf("%w: negative sell refund %s", domain.ErrPricingInconsistency, refund)
		}
		return refund.RoundFloor(amountScale), after, nil
	}

	charge := costAfter.Sub(costBefore)
	if charge.Sign() < 0 {
		return decimal.Zero, q, fmt.Errorf("%w: negative buy cost %s", domain.ErrPricingInconsistency, charge)
	}
	return charge.RoundCeil(amountScale), after, nil
}

// YesPrice returns the instantaneous YES probability, the softmax of the
// side quantities. It is a view only and never feeds settlement math.
func YesPrice(q domain.Quantities) (decimal.Decimal, error) {
	b := q.LiquidityB
	if b.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("pricing: liquidity parameter must be positive, got %s", b)
	}

	maxQ := decimal.Max(q.QYes, q.QNo)
	expYes, err := q.QYes.Sub(maxQ).DivRound(b, calcPrecision).ExpTaylor(calcPrecision)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricing: exp(qYes): %w", err)
	}
	expNo, err := q.QNo.Sub(maxQ).DivRound(b, calcPrecision).ExpTaylor(calcPrecision)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricing: exp(qNo): %w", err)
	}

	return expYes.DivRound(expYes.Add(expNo), calcPrecision), nil
}

// Price returns the instantaneous probability of the given outcome.
func Price(q domain.Quantities, outcome domain.Outcome) (decimal.Decimal, error) {
	yes, err := YesPrice(q)
	if err != nil {
		return decimal.Zero, err
	}
	if outcome == domain.OutcomeYes {
		return yes, nil
	}
	return decimal.NewFromInt(1).Sub(yes), nil
}

// MaxLoss returns the market maker's maximum subsidy for a binary market,
// b * ln(2).
func MaxLoss(b decimal.Decimal) (decimal.Decimal, error) {
	ln2, err := decimal.NewFromInt(2).Ln(calcPrecision)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricing: ln(2): %w", err)
	}
	return b.Mul(ln2), nil
}
