package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
	"github.com/veritasmkt/veritas/internal/ledger"
	"github.com/veritasmkt/veritas/internal/quote"
	"github.com/veritasmkt/veritas/internal/vault"
)

const testRole = "settlement-engine"

var baseTime = time.Unix(1_700_000_000, 0).UTC()

func newTestRegistry() *Registry {
	cash := ledger.NewCashLedger()
	v := vault.New(cash, testRole)
	verifier := quote.NewVerifier("owner", 137, common.HexToAddress("0xaa"))
	return New(verifier, cash, v, testRole, func() time.Time { return baseTime })
}

func params(id string) CreateParams {
	return CreateParams{
		ID:         id,
		Question:   "Will it rain tomorrow?",
		EndTime:    baseTime.Add(time.Hour),
		LiquidityB: decimal.NewFromInt(100),
	}
}

func TestCreate(t *testing.T) {
	t.Run("creates an open market", func(t *testing.T) {
		r := newTestRegistry()
		m, err := r.Create(params("market-1"))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if m.ID() != "market-1" {
			t.Errorf("ID = %q", m.ID())
		}
		if got := m.Status(); got != domain.MarketStatusOpen {
			t.Errorf("status = %s, want open", got)
		}
	})

	t.Run("generates an ID when empty", func(t *testing.T) {
		r := newTestRegistry()
		m, err := r.Create(params(""))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if m.ID() == "" {
			t.Error("expected generated ID")
		}
	})

	t.Run("duplicate ID", func(t *testing.T) {
		r := newTestRegistry()
		if _, err := r.Create(params("market-1")); err != nil {
			t.Fatalf("Create: %v", err)
		}
		_, err := r.Create(params("market-1"))
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("err = %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("end time must be in the future", func(t *testing.T) {
		r := newTestRegistry()
		p := params("market-1")
		p.EndTime = baseTime.Add(-time.Minute)
		if _, err := r.Create(p); err == nil {
			t.Error("expected error for past end time")
		}
		p.EndTime = baseTime
		if _, err := r.Create(p); err == nil {
			t.Error("expected error for end time equal to now")
		}
	})

	t.Run("rejects non-positive liquidity", func(t *testing.T) {
		r := newTestRegistry()
		p := params("market-1")
		p.LiquidityB = decimal.Zero
		if _, err := r.Create(p); err == nil {
			t.Error("expected error for zero liquidity")
		}
	})
}

func TestGetAndList(t *testing.T) {
	r := newTestRegistry()
	for _, id := range []string{"market-b", "market-a", "market-c"} {
		if _, err := r.Create(params(id)); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	t.Run("get known market", func(t *testing.T) {
		m, err := r.Get("market-a")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if m.ID() != "market-a" {
			t.Errorf("ID = %q", m.ID())
		}
	})

	t.Run("get unknown market", func(t *testing.T) {
		_, err := r.Get("market-z")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("list ordered by ID", func(t *testing.T) {
		ms := r.List()
		if len(ms) != 3 {
			t.Fatalf("len = %d, want 3", len(ms))
		}
		for i, want := range []string{"market-a", "market-b", "market-c"} {
			if ms[i].ID() != want {
				t.Errorf("List[%d] = %q, want %q", i, ms[i].ID(), want)
			}
		}
	})
}

func TestIsClosedOrExpired(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Create(params("market-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	closed, err := r.IsClosedOrExpired("market-1")
	if err != nil {
		t.Fatalf("IsClosedOrExpired: %v", err)
	}
	if closed {
		t.Error("fresh market reported closed")
	}

	if _, err := r.IsClosedOrExpired("market-z"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
