package oracle

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
	"github.com/veritasmkt/veritas/internal/ledger"
)

const (
	testOwner    = "owner"
	testRole     = "settlement-engine"
	testMarketID = "market-1"
	resolver     = "resolver-1"
	proposer     = "alice"
	disputer     = "bob"
)

var (
	proposerBond = decimal.NewFromInt(100)
	disputerBond = decimal.NewFromInt(150)
)

// fakeMarkets is a MarketReader backed by a plain map of closed flags.
type fakeMarkets struct {
	mu     sync.Mutex
	closed map[string]bool
}

func (f *fakeMarkets) IsClosedOrExpired(marketID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.closed[marketID]
	if !ok {
		return false, domain.ErrNotFound
	}
	return c, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestAdapter(t *testing.T) (*Adapter, *ledger.CashLedger, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
	cash := ledger.NewCashLedger()
	for _, account := range []string{proposer, disputer} {
		if err := cash.Credit(account, decimal.NewFromInt(1000)); err != nil {
			t.Fatalf("Credit: %v", err)
		}
	}

	markets := &fakeMarkets{closed: map[string]bool{testMarketID: true, "market-open": false}}
	a := New(Config{
		ProposerBond:       proposerBond,
		DisputerBond:       disputerBond,
		DisputeWindow:      2 * time.Hour,
		ResolutionDeadline: 72 * time.Hour,
	}, testOwner, testRole, markets, cash, clock.Now)

	if err := a.AddResolver(testOwner, resolver); err != nil {
		t.Fatalf("AddResolver: %v", err)
	}
	return a, cash, clock
}

func propose(t *testing.T, a *Adapter) {
	t.Helper()
	if err := a.Propose(testMarketID, domain.OutcomeYes, proposer, proposerBond); err != nil {
		t.Fatalf("Propose: %v", err)
	}
}

func TestPropose(t *testing.T) {
	t.Run("escrows the bond and records the request", func(t *testing.T) {
		a, cash, _ := newTestAdapter(t)
		propose(t, a)

		if got := cash.BalanceOf(proposer); !got.Equal(decimal.NewFromInt(900)) {
			t.Errorf("proposer = %s, want 900", got)
		}
		if got := cash.BalanceOf(Account); !got.Equal(proposerBond) {
			t.Errorf("escrow = %s, want %s", got, proposerBond)
		}

		req, err := a.Request(testMarketID)
		if err != nil {
			t.Fatalf("Request: %v", err)
		}
		if req.State != domain.OracleRequestProposed || req.ProposedOutcome != domain.OutcomeYes {
			t.Errorf("request = %+v", req)
		}
	})

	t.Run("market still trading", func(t *testing.T) {
		a, _, _ := newTestAdapter(t)
		err := a.Propose("market-open", domain.OutcomeYes, proposer, proposerBond)
		if !errors.Is(err, domain.ErrMarketNotExpired) {
			t.Errorf("err = %v, want ErrMarketNotExpired", err)
		}
	})

	t.Run("wrong bond", func(t *testing.T) {
		a, cash, _ := newTestAdapter(t)
		err := a.Propose(testMarketID, domain.OutcomeYes, proposer, proposerBond.Add(decimal.NewFromInt(1)))
		if !errors.Is(err, domain.ErrBondMismatch) {
			t.Errorf("err = %v, want ErrBondMismatch", err)
		}
		if got := cash.BalanceOf(proposer); !got.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("failed proposal moved funds: %s", got)
		}
	})

	t.Run("only one proposal per market", func(t *testing.T) {
		a, _, _ := newTestAdapter(t)
		propose(t, a)
		err := a.Propose(testMarketID, domain.OutcomeNo, disputer, proposerBond)
		if !errors.Is(err, domain.ErrAlreadyProposed) {
			t.Errorf("err = %v, want ErrAlreadyProposed", err)
		}
	})

	t.Run("proposer cannot cover the bond", func(t *testing.T) {
		a, _, _ := newTestAdapter(t)
		err := a.Propose(testMarketID, domain.OutcomeYes, "broke", proposerBond)
		if !errors.Is(err, domain.ErrInsufficientBalance) {
			t.Errorf("err = %v, want ErrInsufficientBalance", err)
		}
		// The failed escrow must not leave a request behind.
		if _, rerr := a.Request(testMarketID); !errors.Is(rerr, domain.ErrNotProposed) {
			t.Errorf("request exists after failed proposal: %v", rerr)
		}
	})
}

func TestDispute(t *testing.T) {
	t.Run("within the window", func(t *testing.T) {
		a, cash, clock := newTestAdapter(t)
		propose(t, a)
		clock.Advance(time.Hour)

		if err := a.Dispute(testMarketID, disputer, disputerBond); err != nil {
			t.Fatalf("Dispute: %v", err)
		}
		if got := cash.BalanceOf(Account); !got.Equal(proposerBond.Add(disputerBond)) {
			t.Errorf("escrow = %s, want both bonds", got)
		}
		req, _ := a.Request(testMarketID)
		if req.State != domain.OracleRequestDisputed || req.Disputer != disputer {
			t.Errorf("request = %+v", req)
		}
	})

	t.Run("after the window", func(t *testing.T) {
		a, _, clock := newTestAdapter(t)
		propose(t, a)
		clock.Advance(2*time.Hour + time.Second)

		err := a.Dispute(testMarketID, disputer, disputerBond)
		if !errors.Is(err, domain.ErrWindowClosed) {
			t.Errorf("err = %v, want ErrWindowClosed", err)
		}
	})

	t.Run("without a proposal", func(t *testing.T) {
		a, _, _ := newTestAdapter(t)
		err := a.Dispute(testMarketID, disputer, disputerBond)
		if !errors.Is(err, domain.ErrNotProposed) {
			t.Errorf("err = %v, want ErrNotProposed", err)
		}
	})

	t.Run("wrong bond", func(t *testing.T) {
		a, _, _ := newTestAdapter(t)
		propose(t, a)
		err := a.Dispute(testMarketID, disputer, proposerBond)
		if !errors.Is(err, domain.ErrBondMismatch) {
			t.Errorf("err = %v, want ErrBondMismatch", err)
		}
	})

	t.Run("only one dispute", func(t *testing.T) {
		a, _, _ := newTestAdapter(t)
		propose(t, a)
		if err := a.Dispute(testMarketID, disputer, disputerBond); err != nil {
			t.Fatalf("Dispute: %v", err)
		}
		err := a.Dispute(testMarketID, "carol", disputerBond)
		if !errors.Is(err, domain.ErrAlreadyDisputed) {
			t.Errorf("err = %v, want ErrAlreadyDisputed", err)
		}
	})
}

func TestFinalize(t *testing.T) {
	t.Run("undisputed path returns the bond", func(t *testing.T) {
		a, cash, clock := newTestAdapter(t)
		propose(t, a)
		clock.Advance(2*time.Hour + time.Second)

		if err := a.Finalize(testMarketID, testRole); err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		if got := cash.BalanceOf(proposer); !got.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("proposer = %s, want bond returned", got)
		}
		if !a.IsFinalized(testMarketID) {
			t.Error("IsFinalized = false")
		}
		outcome, err := a.FinalOutcome(testMarketID)
		if err != nil {
			t.Fatalf("FinalOutcome: %v", err)
		}
		if outcome != domain.OutcomeYes {
			t.Errorf("outcome = %s, want the proposed yes", outcome)
		}
	})

	t.Run("window still open", func(t *testing.T) {
		a, _, clock := newTestAdapter(t)
		propose(t, a)
		clock.Advance(time.Hour)

		err := a.Finalize(testMarketID, testRole)
		if !errors.Is(err, domain.ErrWindowOpen) {
			t.Errorf("err = %v, want ErrWindowOpen", err)
		}
	})

	t.Run("settlement role only", func(t *testing.T) {
		a, _, clock := newTestAdapter(t)
		propose(t, a)
		clock.Advance(3 * time.Hour)

		err := a.Finalize(testMarketID, "mallory")
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("err = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("disputed requests cannot take the lazy path", func(t *testing.T) {
		a, _, clock := newTestAdapter(t)
		propose(t, a)
		if err := a.Dispute(testMarketID, disputer, disputerBond); err != nil {
			t.Fatalf("Dispute: %v", err)
		}
		clock.Advance(3 * time.Hour)

		err := a.Finalize(testMarketID, testRole)
		if !errors.Is(err, domain.ErrAlreadyDisputed) {
			t.Errorf("err = %v, want ErrAlreadyDisputed", err)
		}
	})
}

func TestResolve(t *testing.T) {
	disputed := func(t *testing.T) (*Adapter, *ledger.CashLedger, *fakeClock) {
		t.Helper()
		a, cash, clock := newTestAdapter(t)
		propose(t, a)
		if err := a.Dispute(testMarketID, disputer, disputerBond); err != nil {
			t.Fatalf("Dispute: %v", err)
		}
		return a, cash, clock
	}

	t.Run("proposer vindicated takes the pool", func(t *testing.T) {
		a, cash, _ := disputed(t)
		if err := a.Resolve(testMarketID, domain.OutcomeYes, true, resolver); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		// 1000 - 100 bond + 250 pool
		if got := cash.BalanceOf(proposer); !got.Equal(decimal.NewFromInt(1150)) {
			t.Errorf("proposer = %s, want 1150", got)
		}
		if got := cash.BalanceOf(disputer); !got.Equal(decimal.NewFromInt(850)) {
			t.Errorf("disputer = %s, want 850", got)
		}
	})

	t.Run("disputer vindicated takes the pool and may flip the outcome", func(t *testing.T) {
		a, cash, _ := disputed(t)
		if err := a.Resolve(testMarketID, domain.OutcomeNo, false, resolver); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got := cash.BalanceOf(disputer); !got.Equal(decimal.NewFromInt(1100)) {
			t.Errorf("disputer = %s, want 1100", got)
		}
		outcome, err := a.FinalOutcome(testMarketID)
		if err != nil {
			t.Fatalf("FinalOutcome: %v", err)
		}
		if outcome != domain.OutcomeNo {
			t.Errorf("outcome = %s, want the resolver's no", outcome)
		}
	})

	t.Run("resolver allow-list", func(t *testing.T) {
		a, _, _ := disputed(t)
		err := a.Resolve(testMarketID, domain.OutcomeYes, true, "mallory")
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("err = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("undisputed requests cannot be resolved", func(t *testing.T) {
		a, _, _ := newTestAdapter(t)
		propose(t, a)
		err := a.Resolve(testMarketID, domain.OutcomeYes, true, resolver)
		if !errors.Is(err, domain.ErrNotDisputed) {
			t.Errorf("err = %v, want ErrNotDisputed", err)
		}
	})

	t.Run("past the resolution deadline", func(t *testing.T) {
		a, _, clock := disputed(t)
		clock.Advance(2*time.Hour + 72*time.Hour + time.Second)
		err := a.Resolve(testMarketID, domain.OutcomeYes, true, resolver)
		if !errors.Is(err, domain.ErrWindowClosed) {
			t.Errorf("err = %v, want ErrWindowClosed", err)
		}
	})

	t.Run("resolution is terminal", func(t *testing.T) {
		a, _, _ := disputed(t)
		if err := a.Resolve(testMarketID, domain.OutcomeYes, true, resolver); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		err := a.Resolve(testMarketID, domain.OutcomeNo, false, resolver)
		if !errors.Is(err, domain.ErrAlreadyFinalized) {
			t.Errorf("err = %v, want ErrAlreadyFinalized", err)
		}
	})
}

func TestResolverRegistry(t *testing.T) {
	a, _, _ := newTestAdapter(t)

	if err := a.AddResolver("mallory", "mallory"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("AddResolver: err = %v, want ErrUnauthorized", err)
	}
	if err := a.RemoveResolver(testOwner, resolver); err != nil {
		t.Fatalf("RemoveResolver: %v", err)
	}

	propose(t, a)
	if err := a.Dispute(testMarketID, disputer, disputerBond); err != nil {
		t.Fatalf("Dispute: %v", err)
	}
	if err := a.Resolve(testMarketID, domain.OutcomeYes, true, resolver); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("removed resolver: err = %v, want ErrUnauthorized", err)
	}
}
