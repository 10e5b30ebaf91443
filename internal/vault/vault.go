// Package vault custodies deposited settlement currency per market and
// gates withdrawals to the authorized settlement role.
package vault

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
	"github.com/veritasmkt/veritas/internal/ledger"
)

// Account is the cash-ledger account under which the vault pools custody.
const Account = "vault"

// Vault tracks collateral per market on top of the cash ledger. Deposits
// are accepted only for registered markets; withdrawals are restricted to
// the settlement role, or to a market releasing its own sell-side refunds.
// The per-market balance is checked and debited before any cash leaves, so
// the sum of withdrawals can never exceed the sum of deposits.
type Vault struct {
	cash           *ledger.CashLedger
	settlementRole string

	mu         sync.RWMutex
	registered map[string]bool
	balances   map[string]decimal.Decimal
}

// New creates a Vault over the given cash ledger. settlementRole is the
// identity allowed to withdraw for payouts.
func New(cash *ledger.CashLedger, settlementRole string) *Vault {
	return &Vault{
		cash:           cash,
		settlementRole: settlementRole,
		registered:     make(map[string]bool),
		balances:       make(map[string]decimal.Decimal),
	}
}

// Register enables deposits for a market. Called once by the market
// factory at creation time.
func (v *Vault) Register(marketID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.registered[marketID] {
		return fmt.Errorf("vault: market %s: %w", marketID, domain.ErrAlreadyExists)
	}
	v.registered[marketID] = true
	return nil
}

// Deposit moves amount from the payer's cash account into custody for the
// given market. The market must be registered and the amount positive.
func (v *Vault) Deposit(marketID, from string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("vault: deposit: %w", domain.ErrInvalidAmount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.registered[marketID] {
		return fmt.Errorf("vault: market %s not registered: %w", marketID, domain.ErrNotFound)
	}
	if err := v.cash.Transfer(from, Account, amount); err != nil {
		return fmt.Errorf("vault: deposit for %s: %w", marketID, err)
	}
	v.balances[marketID] = v.balances[marketID].Add(amount)
	return nil
}

// Withdraw pays amount from a market's custody to recipient. Authorized
// callers are the settlement role and the market itself (sell refunds).
// The recorded balance is debited before the cash transfer.
func (v *Vault) Withdraw(caller, marketID, recipient string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("vault: withdraw: %w", domain.ErrInvalidAmount)
	}
	if caller != v.settlementRole && caller != marketID {
		return fmt.Errorf("vault: withdraw for %s by %s: %w", marketID, caller, domain.ErrUnauthorized)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	bal := v.balances[marketID]
	if bal.LessThan(amount) {
		return fmt.Errorf("vault: withdraw %s for %s, balance %s: %w", amount, marketID, bal, domain.ErrConservation)
	}

	// Debit before transferring: a re-entering recipient observes the
	// already-reduced balance.
	v.balances[marketID] = bal.Sub(amount)
	if err := v.cash.Transfer(Account, recipient, amount); err != nil {
		v.balances[marketID] = bal
		return fmt.Errorf("vault: withdraw for %s: %w", marketID, err)
	}
	return nil
}

// BalanceOf returns the collateral recorded for a market.
func (v *Vault) BalanceOf(marketID string) decimal.Decimal {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.balances[marketID]
}

// IsRegistered reports whether deposits are enabled for the market.
func (v *Vault) IsRegistered(marketID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.registered[marketID]
}
