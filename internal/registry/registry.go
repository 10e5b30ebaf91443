// Package registry is the market creation facility: it wires a new
// market's claim ledger, registers it with the vault so deposits are
// accepted, and indexes it for lookup.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
	"github.com/veritasmkt/veritas/internal/ledger"
	"github.com/veritasmkt/veritas/internal/market"
	"github.com/veritasmkt/veritas/internal/quote"
	"github.com/veritasmkt/veritas/internal/vault"
)

// CreateParams are the caller-supplied parameters of a new market.
type CreateParams struct {
	ID         string // generated when empty
	Question   string
	EndTime    time.Time
	LiquidityB decimal.Decimal
}

// Registry creates and indexes markets.
type Registry struct {
	verifier       *quote.Verifier
	cash           *ledger.CashLedger
	vault          *vault.Vault
	settlementRole string
	clock          func() time.Time

	mu      sync.RWMutex
	markets map[string]*market.Market
}

// New creates an empty Registry.
func New(verifier *quote.Verifier, cash *ledger.CashLedger, v *vault.Vault, settlementRole string, clock func() time.Time) *Registry {
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		verifier:       verifier,
		cash:           cash,
		vault:          v,
		settlementRole: settlementRole,
		clock:          clock,
		markets:        make(map[string]*market.Market),
	}
}

// Create builds a market from params, creates its claim ledger with the
// market as minter and the settlement role as burner, and registers it
// with the vault before it becomes visible.
func (r *Registry) Create(p CreateParams) (*market.Market, error) {
	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}
	if !p.EndTime.After(r.clock()) {
		return nil, fmt.Errorf("registry: end time %s not in the future", p.EndTime.Format(time.RFC3339))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markets[id]; exists {
		return nil, fmt.Errorf("registry: market %s: %w", id, domain.ErrAlreadyExists)
	}

	claims := ledger.NewClaimLedger(id, id, r.settlementRole)
	m, err := market.New(market.Config{
		ID:             id,
		Question:       p.Question,
		EndTime:        p.EndTime,
		LiquidityB:     p.LiquidityB,
		SettlementRole: r.settlementRole,
	}, r.verifier, claims, r.cash, r.vault, r.clock)
	if err != nil {
		return nil, err
	}

	if err := r.vault.Register(id); err != nil {
		return nil, err
	}
	r.markets[id] = m
	return m, nil
}

// Get returns the market with the given ID.
func (r *Registry) Get(id string) (*market.Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[id]
	if !ok {
		return nil, fmt.Errorf("registry: market %s: %w", id, domain.ErrNotFound)
	}
	return m, nil
}

// List returns all markets ordered by ID.
func (r *Registry) List() []*market.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*market.Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// IsClosedOrExpired reports whether the market has stopped trading. It
// satisfies the oracle adapter's MarketReader.
func (r *Registry) IsClosedOrExpired(marketID string) (bool, error) {
	m, err := r.Get(marketID)
	if err != nil {
		return false, err
	}
	return m.IsClosedOrExpired(), nil
}
