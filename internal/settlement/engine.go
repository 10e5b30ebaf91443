// Package settlement bridges the oracle's finalized outcome into the
// market's terminal state and pays out winning claim holders from the
// vault.
package settlement

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
	"github.com/veritasmkt/veritas/internal/oracle"
	"github.com/veritasmkt/veritas/internal/registry"
	"github.com/veritasmkt/veritas/internal/vault"
)

// Role is the settlement engine's identity, checked by the market, the
// claim ledgers, the vault and the oracle on privileged calls.
const Role = "settlement-engine"

type redemptionKey struct {
	market string
	holder string
}

// Engine settles markets and processes redemptions. The redemption ledger
// records how much each holder has already been paid per market; together
// with claim burning it makes double redemption impossible across any
// sequence of partial calls.
type Engine struct {
	registry *registry.Registry
	oracle   *oracle.Adapter
	vault    *vault.Vault
	clock    func() time.Time

	mu       sync.Mutex
	redeemed map[redemptionKey]decimal.Decimal
}

// New creates a settlement Engine.
func New(reg *registry.Registry, ora *oracle.Adapter, v *vault.Vault, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		registry: reg,
		oracle:   ora,
		vault:    v,
		clock:    clock,
		redeemed: make(map[redemptionKey]decimal.Decimal),
	}
}

// Settle flips a market to SETTLED with the oracle's finalized outcome.
// Permissionless: anyone may trigger it once the market has stopped
// trading and the oracle can finalize. On the undisputed path this drives
// the oracle's Finalize first, returning the proposer's bond.
func (e *Engine) Settle(marketID string) error {
	m, err := e.registry.Get(marketID)
	if err != nil {
		return fmt.Errorf("settlement: %w", err)
	}
	if m.Status() == domain.MarketStatusSettled {
		return fmt.Errorf("settlement: market %s: %w", marketID, domain.ErrAlreadySettled)
	}
	if !m.IsClosedOrExpired() {
		return fmt.Errorf("settlement: market %s: %w", marketID, domain.ErrMarketNotExpired)
	}

	if !e.oracle.IsFinalized(marketID) {
		if err := e.oracle.Finalize(marketID, Role); err != nil {
			return fmt.Errorf("settlement: %w", err)
		}
	}

	outcome, err := e.oracle.FinalOutcome(marketID)
	if err != nil {
		return fmt.Errorf("settlement: %w", err)
	}
	if err := m.Settle(Role, outcome); err != nil {
		return fmt.Errorf("settlement: %w", err)
	}
	return nil
}

// Redeem pays holder for amount winning claims at the fixed payout rate.
// The market must be settled, the amount positive and covered by both the
// holder's live claim balance and the vault's recorded collateral. The
// redemption ledger is written and the claims burned before currency
// leaves the vault, so partial redemptions are supported and no claim can
// ever be paid twice.
func (e *Engine) Redeem(marketID, holder string, amount decimal.Decimal) (domain.Redemption, error) {
	if amount.Sign() <= 0 {
		return domain.Redemption{}, fmt.Errorf("settlement: redeem: %w", domain.ErrInvalidAmount)
	}

	m, err := e.registry.Get(marketID)
	if err != nil {
		return domain.Redemption{}, fmt.Errorf("settlement: %w", err)
	}
	outcome, err := m.Outcome()
	if err != nil {
		return domain.Redemption{}, fmt.Errorf("settlement: redeem: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Claims are burned as they are redeemed, so the live balance is
	// exactly what remains redeemable.
	redeemable := m.Claims().BalanceOf(holder, outcome)
	if amount.GreaterThan(redeemable) {
		return domain.Redemption{}, fmt.Errorf("settlement: redeem %s, redeemable %s: %w", amount, redeemable, domain.ErrInsufficientBalance)
	}

	payout := amount.Mul(m.PayoutRatePerClaim())
	if e.vault.BalanceOf(marketID).LessThan(payout) {
		return domain.Redemption{}, fmt.Errorf("settlement: payout %s uncovered by vault: %w", payout, domain.ErrInsufficientBalance)
	}

	// Commit guard state before the outbound transfer: ledger increment,
	// then burn, then withdrawal.
	key := redemptionKey{market: marketID, holder: holder}
	e.redeemed[key] = e.redeemed[key].Add(amount)

	if err := m.Claims().Burn(Role, holder, outcome, amount); err != nil {
		e.redeemed[key] = e.redeemed[key].Sub(amount)
		return domain.Redemption{}, fmt.Errorf("settlement: %w", err)
	}
	if err := e.vault.Withdraw(Role, marketID, holder, payout); err != nil {
		return domain.Redemption{}, fmt.Errorf("settlement: %w", err)
	}

	return domain.Redemption{
		ID:         uuid.New().String(),
		MarketID:   marketID,
		Holder:     holder,
		Amount:     amount,
		Payout:     payout,
		RedeemedAt: e.clock(),
	}, nil
}

// Redeemed returns the cumulative amount already redeemed by holder for a
// market.
func (e *Engine) Redeemed(marketID, holder string) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.redeemed[redemptionKey{market: marketID, holder: holder}]
}
