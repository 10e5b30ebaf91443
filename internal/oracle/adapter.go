// Package oracle implements the optimistic propose/dispute/resolve
// protocol that converts a proposed outcome into a finalized one under
// bonded incentives. Bonds make false proposals and frivolous disputes
// costly; a designated resolver breaks disputed ties, keeping the common
// undisputed path permissionless and cheap.
package oracle

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
	"github.com/veritasmkt/veritas/internal/ledger"
)

// Account is the cash-ledger account holding escrowed bonds.
const Account = "oracle"

// Config fixes the economic parameters of the dispute protocol.
type Config struct {
	ProposerBond       decimal.Decimal
	DisputerBond       decimal.Decimal
	DisputeWindow      time.Duration
	ResolutionDeadline time.Duration
}

// MarketReader is the view the adapter needs of the market set: whether a
// market has stopped trading.
type MarketReader interface {
	IsClosedOrExpired(marketID string) (bool, error)
}

// Adapter owns one OracleRequest per market. Requests are created on first
// proposal, advanced through the tagged state enum and never deleted; the
// finalized record doubles as the settlement proof.
type Adapter struct {
	cfg            Config
	owner          string
	settlementRole string
	markets        MarketReader
	cash           *ledger.CashLedger
	clock          func() time.Time

	mu        sync.RWMutex
	resolvers map[string]bool
	requests  map[string]*domain.OracleRequest
}

// New creates an Adapter. owner administers the resolver allow-list;
// settlementRole is the only identity allowed to drive the undisputed
// finalize path.
func New(cfg Config, owner, settlementRole string, markets MarketReader, cash *ledger.CashLedger, clock func() time.Time) *Adapter {
	if clock == nil {
		clock = time.Now
	}
	return &Adapter{
		cfg:            cfg,
		owner:          owner,
		settlementRole: settlementRole,
		markets:        markets,
		cash:           cash,
		clock:          clock,
		resolvers:      make(map[string]bool),
		requests:       make(map[string]*domain.OracleRequest),
	}
}

// AddResolver authorizes a resolver identity. Owner only.
func (a *Adapter) AddResolver(caller, resolver string) error {
	if caller != a.owner {
		return fmt.Errorf("oracle: add resolver: %w", domain.ErrUnauthorized)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resolvers[resolver] = true
	return nil
}

// RemoveResolver revokes a resolver identity. Owner only.
func (a *Adapter) RemoveResolver(caller, resolver string) error {
	if caller != a.owner {
		return fmt.Errorf("oracle: remove resolver: %w", domain.ErrUnauthorized)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.resolvers, resolver)
	return nil
}

// Propose records an outcome proposal for a market that has stopped
// trading. The attached bond must equal the configured proposer bond
// exactly and is escrowed until finalization. Permissionless; only one
// proposal per market, ever.
func (a *Adapter) Propose(marketID string, outcome domain.Outcome, proposer string, bond decimal.Decimal) error {
	closed, err := a.markets.IsClosedOrExpired(marketID)
	if err != nil {
		return fmt.Errorf("oracle: propose for %s: %w", marketID, err)
	}
	if !closed {
		return fmt.Errorf("oracle: propose for %s: %w", marketID, domain.ErrMarketNotExpired)
	}
	if !bond.Equal(a.cfg.ProposerBond) {
		return fmt.Errorf("oracle: bond %s, required %s: %w", bond, a.cfg.ProposerBond, domain.ErrBondMismatch)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.requests[marketID]; exists {
		return fmt.Errorf("oracle: market %s: %w", marketID, domain.ErrAlreadyProposed)
	}
	if err := a.cash.Transfer(proposer, Account, bond); err != nil {
		return fmt.Errorf("oracle: escrow proposer bond: %w", err)
	}

	a.requests[marketID] = &domain.OracleRequest{
		MarketID:        marketID,
		State:           domain.OracleRequestProposed,
		ProposedOutcome: outcome,
		Proposer:        proposer,
		ProposerBond:    bond,
		ProposedAt:      a.clock(),
	}
	return nil
}

// Dispute counters an open proposal within the dispute window. The
// attached bond must equal the configured disputer bond exactly. Only one
// dispute per proposal.
func (a *Adapter) Dispute(marketID, disputer string, bond decimal.Decimal) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	req, ok := a.requests[marketID]
	if !ok {
		return fmt.Errorf("oracle: market %s: %w", marketID, domain.ErrNotProposed)
	}
	switch req.State {
	case domain.OracleRequestDisputed:
		return fmt.Errorf("oracle: market %s: %w", marketID, domain.ErrAlreadyDisputed)
	case domain.OracleRequestFinalized:
		return fmt.Errorf("oracle: market %s: %w", marketID, domain.ErrAlreadyFinalized)
	}

	now := a.clock()
	if now.After(req.ProposedAt.Add(a.cfg.DisputeWindow)) {
		return fmt.Errorf("oracle: dispute window for %s: %w", marketID, domain.ErrWindowClosed)
	}
	if !bond.Equal(a.cfg.DisputerBond) {
		return fmt.Errorf("oracle: bond %s, required %s: %w", bond, a.cfg.DisputerBond, domain.ErrBondMismatch)
	}
	if err := a.cash.Transfer(disputer, Account, bond); err != nil {
		return fmt.Errorf("oracle: escrow disputer bond: %w", err)
	}

	req.State = domain.OracleRequestDisputed
	req.Disputer = disputer
	req.DisputerBond = bond
	req.DisputedAt = &now
	return nil
}

// Resolve settles a disputed request. Resolver allow-list only; must run
// before the resolution deadline. The combined bond pool goes to whichever
// party is declared correct, and the request finalizes with the resolver's
// outcome, which may differ from the original proposal.
func (a *Adapter) Resolve(marketID string, finalOutcome domain.Outcome, proposerCorrect bool, resolver string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.resolvers[resolver] {
		return fmt.Errorf("oracle: resolve by %s: %w", resolver, domain.ErrUnauthorized)
	}

	req, ok := a.requests[marketID]
	if !ok {
		return fmt.Errorf("oracle: market %s: %w", marketID, domain.ErrNotProposed)
	}
	switch req.State {
	case domain.OracleRequestProposed:
		return fmt.Errorf("oracle: market %s: %w", marketID, domain.ErrNotDisputed)
	case domain.OracleRequestFinalized:
		return fmt.Errorf("oracle: market %s: %w", marketID, domain.ErrAlreadyFinalized)
	}

	now := a.clock()
	deadline := req.ProposedAt.Add(a.cfg.DisputeWindow).Add(a.cfg.ResolutionDeadline)
	if now.After(deadline) {
		return fmt.Errorf("oracle: resolution deadline for %s: %w", marketID, domain.ErrWindowClosed)
	}

	winner := req.Disputer
	if proposerCorrect {
		winner = req.Proposer
	}
	pool := req.ProposerBond.Add(req.DisputerBond)

	// Finalize before paying out the bond pool.
	o := finalOutcome
	req.State = domain.OracleRequestFinalized
	req.FinalOutcome = &o
	req.FinalizedAt = &now

	if err := a.cash.Transfer(Account, winner, pool); err != nil {
		return fmt.Errorf("oracle: pay bond pool: %w", err)
	}
	return nil
}

// Finalize settles an undisputed request once the dispute window has
// elapsed: the proposer's bond is returned and the proposed outcome
// becomes final. Settlement engine only.
func (a *Adapter) Finalize(marketID, caller string) error {
	if caller != a.settlementRole {
		return fmt.Errorf("oracle: finalize by %s: %w", caller, domain.ErrUnauthorized)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	req, ok := a.requests[marketID]
	if !ok {
		return fmt.Errorf("oracle: market %s: %w", marketID, domain.ErrNotProposed)
	}
	switch req.State {
	case domain.OracleRequestDisputed:
		return fmt.Errorf("oracle: market %s: %w", marketID, domain.ErrAlreadyDisputed)
	case domain.OracleRequestFinalized:
		return fmt.Errorf("oracle: market %s: %w", marketID, domain.ErrAlreadyFinalized)
	}

	now := a.clock()
	if !now.After(req.ProposedAt.Add(a.cfg.DisputeWindow)) {
		return fmt.Errorf("oracle: market %s: %w", marketID, domain.ErrWindowOpen)
	}

	o := req.ProposedOutcome
	req.State = domain.OracleRequestFinalized
	req.FinalOutcome = &o
	req.FinalizedAt = &now

	if err := a.cash.Transfer(Account, req.Proposer, req.ProposerBond); err != nil {
		return fmt.Errorf("oracle: return proposer bond: %w", err)
	}
	return nil
}

// IsFinalized reports whether the market's request has finalized.
func (a *Adapter) IsFinalized(marketID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	req, ok := a.requests[marketID]
	return ok && req.State == domain.OracleRequestFinalized
}

// FinalOutcome returns the finalized outcome, failing with ErrNotFinalized
// otherwise.
func (a *Adapter) FinalOutcome(marketID string) (domain.Outcome, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	req, ok := a.requests[marketID]
	if !ok || req.State != domain.OracleRequestFinalized || req.FinalOutcome == nil {
		return 0, fmt.Errorf("oracle: market %s: %w", marketID, domain.ErrNotFinalized)
	}
	return *req.FinalOutcome, nil
}

// Request returns a copy of the market's request record for the audit
// trail, or ErrNotProposed if none exists.
func (a *Adapter) Request(marketID string) (domain.OracleRequest, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	req, ok := a.requests[marketID]
	if !ok {
		return domain.OracleRequest{}, fmt.Errorf("oracle: market %s: %w", marketID, domain.ErrNotProposed)
	}
	return *req, nil
}
