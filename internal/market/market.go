// Package market implements the per-market lifecycle state machine and the
// trade-execution entry point that ties quote verification, AMM pricing
// state and collateral custody together.
package market

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
	"github.com/veritasmkt/veritas/internal/ledger"
	"github.com/veritasmkt/veritas/internal/quote"
	"github.com/veritasmkt/veritas/internal/vault"
)

// Config holds the immutable parameters of one market.
type Config struct {
	ID         string
	Question   string
	EndTime    time.Time
	LiquidityB decimal.Decimal

	// SettlementRole is the identity allowed to drive the terminal
	// transition.
	SettlementRole string
}

// Market owns the two outcome-claim ledgers, the OPEN -> CLOSED -> SETTLED
// state machine and the one-time-use set of executed quote fingerprints.
// All operations are serialized by the market's own mutex and either fully
// apply or leave state untouched.
type Market struct {
	cfg      Config
	verifier *quote.Verifier
	claims   *ledger.ClaimLedger
	cash     *ledger.CashLedger
	vault    *vault.Vault
	clock    func() time.Time

	mu               sync.Mutex
	status           domain.MarketStatus
	outcome          *domain.Outcome
	quantities       domain.Quantities
	usedFingerprints map[string]struct{}
	createdAt        time.Time
}

// New creates an OPEN market. The claim ledger must have been created with
// this market's ID as its minter.
func New(cfg Config, verifier *quote.Verifier, claims *ledger.ClaimLedger, cash *ledger.CashLedger, v *vault.Vault, clock func() time.Time) (*Market, error) {
	if cfg.LiquidityB.Sign() <= 0 {
		return nil, fmt.Errorf("market: liquidity parameter must be positive, got %s", cfg.LiquidityB)
	}
	if clock == nil {
		clock = time.Now
	}
	return &Market{
		cfg:      cfg,
		verifier: verifier,
		claims:   claims,
		cash:     cash,
		vault:    v,
		clock:    clock,
		status:   domain.MarketStatusOpen,
		quantities: domain.Quantities{
			QYes:       decimal.Zero,
			QNo:        decimal.Zero,
			LiquidityB: cfg.LiquidityB,
		},
		usedFingerprints: make(map[string]struct{}),
		createdAt:        clock(),
	}, nil
}

// ID returns the market identity.
func (m *Market) ID() string { return m.cfg.ID }

// EndTime returns the trading cutoff.
func (m *Market) EndTime() time.Time { return m.cfg.EndTime }

// Claims returns the market's claim ledger.
func (m *Market) Claims() *ledger.ClaimLedger { return m.claims }

// lazyClose flips OPEN to CLOSED the first time any gated operation
// observes the end time has passed. Callers must hold m.mu.
func (m *Market) lazyClose(now time.Time) {
	if m.status == domain.MarketStatusOpen && !now.Before(m.cfg.EndTime) {
		m.status = domain.MarketStatusClosed
	}
}

// ExecuteTrade executes a signed quote. Legal only while OPEN and strictly
// before the end time. attached is the settlement currency submitted with
// the trade: exactly the quoted cost on a buy, zero on a sell (the refund
// is paid out of the vault). minAmountOut is the trader's slippage floor;
// the trade fails unless the quoted amount meets it.
//
// On success the trader's claim balance, the AMM quantities, the vault
// balance, the consumed nonce and the used-fingerprint set have all
// changed; on any failure none of them have. All replay-guard state is
// committed before currency leaves the vault.
func (m *Market) ExecuteTrade(q domain.TradeQuote, signature string, minAmountOut decimal.Decimal, attached decimal.Decimal) (domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	m.lazyClose(now)
	if m.status != domain.MarketStatusOpen {
		return domain.Trade{}, fmt.Errorf("market %s: trade: %w", m.cfg.ID, domain.ErrNotOpen)
	}

	// Attached value must match the quote exactly. Sells attach nothing;
	// the refund flows out of the vault.
	if q.IsSell {
		if !attached.IsZero() {
			return domain.Trade{}, fmt.Errorf("market %s: sell with attached %s: %w", m.cfg.ID, attached, domain.ErrValueMismatch)
		}
	} else if !attached.Equal(q.Cost) {
		return domain.Trade{}, fmt.Errorf("market %s: attached %s, quoted cost %s: %w", m.cfg.ID, attached, q.Cost, domain.ErrValueMismatch)
	}

	fingerprint, err := m.verifier.Verify(m.cfg.ID, q, signature, now)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("market %s: %w", m.cfg.ID, err)
	}
	if _, used := m.usedFingerprints[fingerprint]; used {
		return domain.Trade{}, fmt.Errorf("market %s: fingerprint %s: %w", m.cfg.ID, fingerprint, domain.ErrReplay)
	}

	// Slippage guard: the trader receives at least the amount they agreed
	// to, and on a sell at least the signed refund floor.
	if q.Amount.LessThan(minAmountOut) {
		return domain.Trade{}, fmt.Errorf("market %s: amount %s < min %s: %w", m.cfg.ID, q.Amount, minAmountOut, domain.ErrSlippage)
	}
	if q.IsSell && q.Cost.LessThan(q.MinReturn) {
		return domain.Trade{}, fmt.Errorf("market %s: return %s < min %s: %w", m.cfg.ID, q.Cost, q.MinReturn, domain.ErrSlippage)
	}

	// Feasibility checks before any mutation, so failures leave no trace.
	side := m.quantities.Side(q.Outcome)
	if q.IsSell {
		if q.Amount.GreaterThan(side) {
			return domain.Trade{}, fmt.Errorf("market %s: sell %s, outstanding %s: %w", m.cfg.ID, q.Amount, side, domain.ErrInsufficientShares)
		}
		if m.claims.BalanceOf(q.Trader, q.Outcome).LessThan(q.Amount) {
			return domain.Trade{}, fmt.Errorf("market %s: trader claim balance: %w", m.cfg.ID, domain.ErrInsufficientBalance)
		}
		if m.vault.BalanceOf(m.cfg.ID).LessThan(q.Cost) {
			return domain.Trade{}, fmt.Errorf("market %s: refund %s uncovered: %w", m.cfg.ID, q.Cost, domain.ErrConservation)
		}
	} else if m.cash.BalanceOf(q.Trader).LessThan(attached) {
		return domain.Trade{}, fmt.Errorf("market %s: trader cash balance: %w", m.cfg.ID, domain.ErrInsufficientBalance)
	}

	// Binding point: consume the nonce and record the fingerprint. Of two
	// racing quotes sharing a nonce, the loser fails here.
	if err := m.verifier.ConsumeNonce(m.cfg.ID, q.Trader, q.Market, q.Nonce); err != nil {
		return domain.Trade{}, fmt.Errorf("market %s: %w", m.cfg.ID, err)
	}
	m.usedFingerprints[fingerprint] = struct{}{}

	if q.IsSell {
		if err := m.claims.BurnFromHolder(m.cfg.ID, q.Trader, q.Outcome, q.Amount); err != nil {
			return domain.Trade{}, fmt.Errorf("market %s: %w", m.cfg.ID, err)
		}
		m.quantities = m.quantities.WithSide(q.Outcome, side.Sub(q.Amount))
		// Outbound transfer last: every guard above is already committed.
		if err := m.vault.Withdraw(m.cfg.ID, m.cfg.ID, q.Trader, q.Cost); err != nil {
			return domain.Trade{}, fmt.Errorf("market %s: %w", m.cfg.ID, err)
		}
	} else {
		if err := m.vault.Deposit(m.cfg.ID, q.Trader, attached); err != nil {
			return domain.Trade{}, fmt.Errorf("market %s: %w", m.cfg.ID, err)
		}
		if err := m.claims.Mint(m.cfg.ID, q.Trader, q.Outcome, q.Amount); err != nil {
			return domain.Trade{}, fmt.Errorf("market %s: %w", m.cfg.ID, err)
		}
		m.quantities = m.quantities.WithSide(q.Outcome, side.Add(q.Amount))
	}

	return domain.Trade{
		ID:          uuid.New().String(),
		MarketID:    m.cfg.ID,
		Trader:      q.Trader,
		Outcome:     q.Outcome,
		Side:        q.Side(),
		Amount:      q.Amount,
		Cost:        q.Cost,
		Fingerprint: fingerprint,
		Nonce:       q.Nonce,
		ExecutedAt:  now,
	}, nil
}

// Close transitions an expired market to CLOSED. Callable by anyone; a
// second call after close fails with ErrNotOpen.
func (m *Market) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != domain.MarketStatusOpen {
		return fmt.Errorf("market %s: close: %w", m.cfg.ID, domain.ErrNotOpen)
	}
	if m.clock().Before(m.cfg.EndTime) {
		return fmt.Errorf("market %s: close before end time: %w", m.cfg.ID, domain.ErrMarketNotExpired)
	}
	m.status = domain.MarketStatusClosed
	return nil
}

// Settle records the finalized outcome and moves the market to its
// terminal SETTLED state. Settlement role only; requires CLOSED, with the
// lazy transition applied first if the market is merely expired.
func (m *Market) Settle(caller string, outcome domain.Outcome) error {
	if caller != m.cfg.SettlementRole {
		return fmt.Errorf("market %s: settle by %s: %w", m.cfg.ID, caller, domain.ErrUnauthorized)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lazyClose(m.clock())
	switch m.status {
	case domain.MarketStatusSettled:
		return fmt.Errorf("market %s: %w", m.cfg.ID, domain.ErrAlreadySettled)
	case domain.MarketStatusOpen:
		return fmt.Errorf("market %s: settle: %w", m.cfg.ID, domain.ErrNotClosed)
	}

	o := outcome
	m.outcome = &o
	m.status = domain.MarketStatusSettled
	return nil
}

// Status returns the current lifecycle state without applying the lazy
// transition.
func (m *Market) Status() domain.MarketStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Outcome returns the settled outcome, or an error if not settled.
func (m *Market) Outcome() (domain.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != domain.MarketStatusSettled || m.outcome == nil {
		return 0, fmt.Errorf("market %s: %w", m.cfg.ID, domain.ErrNotSettled)
	}
	return *m.outcome, nil
}

// IsClosedOrExpired reports whether trading has ended, either by explicit
// close, settlement, or the end time having passed.
func (m *Market) IsClosedOrExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != domain.MarketStatusOpen {
		return true
	}
	return !m.clock().Before(m.cfg.EndTime)
}

// Quantities returns a copy of the current AMM state.
func (m *Market) Quantities() domain.Quantities {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quantities
}

// WinningSupply returns the outstanding claim supply for the given outcome.
func (m *Market) WinningSupply(outcome domain.Outcome) decimal.Decimal {
	return m.claims.Supply(outcome)
}

// PayoutRatePerClaim returns the protocol-fixed redemption rate.
func (m *Market) PayoutRatePerClaim() decimal.Decimal {
	return domain.PayoutRatePerClaim
}

// Snapshot returns the persisted-record view of the market for the audit
// store and API handlers.
func (m *Market) Snapshot() domain.Market {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := domain.Market{
		ID:         m.cfg.ID,
		Question:   m.cfg.Question,
		EndTime:    m.cfg.EndTime,
		Status:     m.status,
		QYes:       m.quantities.QYes,
		QNo:        m.quantities.QNo,
		LiquidityB: m.quantities.LiquidityB,
		Collateral: m.vault.BalanceOf(m.cfg.ID),
		CreatedAt:  m.createdAt,
		UpdatedAt:  m.clock(),
	}
	if m.outcome != nil {
		o := *m.outcome
		rec.Outcome = &o
	}
	return rec
}
