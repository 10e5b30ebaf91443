package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeQuote is an off-ledger-computed, signed trade proposal. It is
// immutable once signed and becomes binding only after the verifier has
// authenticated it and the market has consumed its nonce. The field order
// here matches the signed wire format:
//
//	trader, market, outcome, amount, cost, deadline, nonce,
//	isSell, minAmountOut, minReturn
type TradeQuote struct {
	Trader       string          // 0x-prefixed account address
	Market       string          // market ID the quote is bound to
	Outcome      Outcome         // 0 = YES, 1 = NO
	Amount       decimal.Decimal // claim amount bought or sold
	Cost         decimal.Decimal // buy: currency owed; sell: currency refunded
	Deadline     time.Time       // quote is invalid strictly after this instant
	Nonce        uint64          // strictly increasing per (trader, market)
	IsSell       bool
	MinAmountOut decimal.Decimal // buy-side slippage floor
	MinReturn    decimal.Decimal // sell-side refund floor
}

// Side returns the order side as a string for records and events.
func (q TradeQuote) Side() string {
	if q.IsSell {
		return "sell"
	}
	return "buy"
}

// Trade is the audit record of an executed trade, persisted after the
// market has committed all state changes.
type Trade struct {
	ID          string
	MarketID    string
	Trader      string
	Outcome     Outcome
	Side        string
	Amount      decimal.Decimal
	Cost        decimal.Decimal
	Fingerprint string // hex EIP-712 digest, unique forever
	Nonce       uint64
	ExecutedAt  time.Time
}

// Redemption is the audit record of a payout to a winning claim holder.
type Redemption struct {
	ID         string
	MarketID   string
	Holder     string
	Amount     decimal.Decimal // claims burned
	Payout     decimal.Decimal // currency paid out
	RedeemedAt time.Time
}
