// Package ledger provides the fungible bookkeeping the engine trades
// against: a per-market outcome-claim ledger (the thin mint/burn token
// wrapper) and a cash ledger for the settlement currency.
package ledger

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
)

type claimKey struct {
	holder  string
	outcome domain.Outcome
}

// ClaimLedger tracks the two outcome-claim balances of one market. Minting
// and sell-side burning are reserved for the owning market; settlement-side
// burning is reserved for the settlement engine.
type ClaimLedger struct {
	marketID string
	minter   string // the market identity
	burner   string // the settlement engine identity

	mu       sync.RWMutex
	balances map[claimKey]decimal.Decimal
	supply   map[domain.Outcome]decimal.Decimal
}

// NewClaimLedger creates the claim ledger for a market. minter is the
// market identity authorized to mint and burn on trades; burner is the
// settlement role authorized to burn on redemption.
func NewClaimLedger(marketID, minter, burner string) *ClaimLedger {
	return &ClaimLedger{
		marketID: marketID,
		minter:   minter,
		burner:   burner,
		balances: make(map[claimKey]decimal.Decimal),
		supply:   make(map[domain.Outcome]decimal.Decimal),
	}
}

// Mint credits freshly created claims to holder. Market only.
func (l *ClaimLedger) Mint(caller, holder string, outcome domain.Outcome, amount decimal.Decimal) error {
	if caller != l.minter {
		return fmt.Errorf("ledger: mint on %s: %w", l.marketID, domain.ErrUnauthorized)
	}
	if amount.Sign() <= 0 {
		return fmt.Errorf("ledger: mint: %w", domain.ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	key := claimKey{holder: holder, outcome: outcome}
	l.balances[key] = l.balances[key].Add(amount)
	l.supply[outcome] = l.supply[outcome].Add(amount)
	return nil
}

// BurnFromHolder destroys claims held by holder on a sell. Market only.
func (l *ClaimLedger) BurnFromHolder(caller, holder string, outcome domain.Outcome, amount decimal.Decimal) error {
	if caller != l.minter {
		return fmt.Errorf("ledger: burn from holder on %s: %w", l.marketID, domain.ErrUnauthorized)
	}
	return l.burn(holder, outcome, amount)
}

// Burn destroys claims held by holder on redemption. Settlement engine only.
func (l *ClaimLedger) Burn(caller, holder string, outcome domain.Outcome, amount decimal.Decimal) error {
	if caller != l.burner {
		return fmt.Errorf("ledger: burn on %s: %w", l.marketID, domain.ErrUnauthorized)
	}
	return l.burn(holder, outcome, amount)
}

func (l *ClaimLedger) burn(holder string, outcome domain.Outcome, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("ledger: burn: %w", domain.ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	key := claimKey{holder: holder, outcome: outcome}
	bal := l.balances[key]
	if bal.LessThan(amount) {
		return fmt.Errorf("ledger: burn %s, balance %s: %w", amount, bal, domain.ErrInsufficientBalance)
	}
	l.balances[key] = bal.Sub(amount)
	l.supply[outcome] = l.supply[outcome].Sub(amount)
	return nil
}

// BalanceOf returns holder's claim balance for the given outcome.
func (l *ClaimLedger) BalanceOf(holder string, outcome domain.Outcome) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[claimKey{holder: holder, outcome: outcome}]
}

// Supply returns the total outstanding claims for the given outcome.
func (l *ClaimLedger) Supply(outcome domain.Outcome) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply[outcome]
}
