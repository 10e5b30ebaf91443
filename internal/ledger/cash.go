package ledger

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
)

// CashLedger tracks settlement-currency balances per account. The vault,
// the oracle's bond escrow and traders all hold accounts here; every
// movement of currency through the engine is a Transfer, so the sum of all
// balances is invariant.
type CashLedger struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
}

// NewCashLedger creates an empty cash ledger.
func NewCashLedger() *CashLedger {
	return &CashLedger{balances: make(map[string]decimal.Decimal)}
}

// Credit adds amount to account. This is the deposit-from-outside entry
// point (funding a trader, seeding the market maker subsidy).
func (c *CashLedger) Credit(account string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("cash: credit: %w", domain.ErrInvalidAmount)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[account] = c.balances[account].Add(amount)
	return nil
}

// Transfer moves amount from one account to another, checking the source
// balance before debiting.
func (c *CashLedger) Transfer(from, to string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("cash: transfer: %w", domain.ErrInvalidAmount)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	bal := c.balances[from]
	if bal.LessThan(amount) {
		return fmt.Errorf("cash: transfer %s from %s, balance %s: %w", amount, from, bal, domain.ErrInsufficientBalance)
	}
	c.balances[from] = bal.Sub(amount)
	c.balances[to] = c.balances[to].Add(amount)
	return nil
}

// BalanceOf returns the balance of account, zero if unknown.
func (c *CashLedger) BalanceOf(account string) decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balances[account]
}
