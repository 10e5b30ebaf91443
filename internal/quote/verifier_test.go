package quote

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/crypto"
	"github.com/veritasmkt/veritas/internal/domain"
)

const (
	testOwner  = "owner"
	testChain  = int64(137)
	testKeyHex = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

var testVerifying = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func newTestVerifier(t *testing.T) (*Verifier, *crypto.Signer) {
	t.Helper()
	signer, err := crypto.NewSigner(testKeyHex, testChain, testVerifying)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	v := NewVerifier(testOwner, testChain, testVerifying)
	if err := v.AddSigner(testOwner, signer.Address()); err != nil {
		t.Fatalf("AddSigner: %v", err)
	}
	return v, signer
}

func signedQuote(t *testing.T, signer *crypto.Signer, mutate func(*domain.TradeQuote)) (domain.TradeQuote, string) {
	t.Helper()
	q := domain.TradeQuote{
		Trader:       "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Market:       "market-1",
		Outcome:      domain.OutcomeYes,
		Amount:       decimal.NewFromInt(10),
		Cost:         decimal.RequireFromString("5.1"),
		Deadline:     time.Unix(2000, 0).UTC(),
		Nonce:        1,
		MinAmountOut: decimal.NewFromInt(10),
	}
	if mutate != nil {
		mutate(&q)
	}
	sig, err := signer.SignQuote(q)
	if err != nil {
		t.Fatalf("SignQuote: %v", err)
	}
	return q, sig
}

func TestVerify(t *testing.T) {
	now := time.Unix(1000, 0).UTC()

	t.Run("valid quote yields a fingerprint", func(t *testing.T) {
		v, signer := newTestVerifier(t)
		q, sig := signedQuote(t, signer, nil)

		fp, err := v.Verify("market-1", q, sig, now)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if len(fp) != 2+64 {
			t.Errorf("fingerprint %q, want 0x-prefixed 32-byte hex", fp)
		}
	})

	t.Run("verify does not mutate nonce state", func(t *testing.T) {
		v, signer := newTestVerifier(t)
		q, sig := signedQuote(t, signer, nil)

		for i := 0; i < 3; i++ {
			if _, err := v.Verify("market-1", q, sig, now); err != nil {
				t.Fatalf("Verify call %d: %v", i, err)
			}
		}
		if got := v.LastNonce(q.Trader, q.Market); got != 0 {
			t.Errorf("LastNonce = %d after pure verifies, want 0", got)
		}
	})

	t.Run("expired quote", func(t *testing.T) {
		v, signer := newTestVerifier(t)
		q, sig := signedQuote(t, signer, nil)

		_, err := v.Verify("market-1", q, sig, q.Deadline.Add(time.Second))
		if !errors.Is(err, domain.ErrExpired) {
			t.Errorf("err = %v, want ErrExpired", err)
		}
	})

	t.Run("quote valid exactly at the deadline", func(t *testing.T) {
		v, signer := newTestVerifier(t)
		q, sig := signedQuote(t, signer, nil)

		if _, err := v.Verify("market-1", q, sig, q.Deadline); err != nil {
			t.Errorf("Verify at deadline: %v", err)
		}
	})

	t.Run("non-positive amount", func(t *testing.T) {
		v, signer := newTestVerifier(t)
		q, sig := signedQuote(t, signer, func(q *domain.TradeQuote) {
			q.Amount = decimal.Zero
		})

		_, err := v.Verify("market-1", q, sig, now)
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("err = %v, want ErrInvalidAmount", err)
		}
	})

	t.Run("bound to a different market", func(t *testing.T) {
		v, signer := newTestVerifier(t)
		q, sig := signedQuote(t, signer, nil)

		_, err := v.Verify("market-2", q, sig, now)
		if !errors.Is(err, domain.ErrMarketMismatch) {
			t.Errorf("err = %v, want ErrMarketMismatch", err)
		}
	})

	t.Run("stale nonce", func(t *testing.T) {
		v, signer := newTestVerifier(t)
		q, sig := signedQuote(t, signer, func(q *domain.TradeQuote) { q.Nonce = 3 })

		if err := v.ConsumeNonce("market-1", q.Trader, "market-1", 3); err != nil {
			t.Fatalf("ConsumeNonce: %v", err)
		}
		_, err := v.Verify("market-1", q, sig, now)
		if !errors.Is(err, domain.ErrStaleNonce) {
			t.Errorf("err = %v, want ErrStaleNonce", err)
		}
	})

	t.Run("unauthorized signer", func(t *testing.T) {
		v, _ := newTestVerifier(t)
		// A different key than the registered one.
		rogue, err := crypto.NewSigner(
			"8b3a350cf5c34c9194ca85829a2df0ec3153be0318b5e2d3348e872092edffba",
			testChain, testVerifying,
		)
		if err != nil {
			t.Fatalf("NewSigner: %v", err)
		}
		q, sig := signedQuote(t, rogue, nil)

		_, verr := v.Verify("market-1", q, sig, now)
		if !errors.Is(verr, domain.ErrUnauthorizedSigner) {
			t.Errorf("err = %v, want ErrUnauthorizedSigner", verr)
		}
	})

	t.Run("revoked signer", func(t *testing.T) {
		v, signer := newTestVerifier(t)
		q, sig := signedQuote(t, signer, nil)

		if err := v.RemoveSigner(testOwner, signer.Address()); err != nil {
			t.Fatalf("RemoveSigner: %v", err)
		}
		_, err := v.Verify("market-1", q, sig, now)
		if !errors.Is(err, domain.ErrUnauthorizedSigner) {
			t.Errorf("err = %v, want ErrUnauthorizedSigner", err)
		}
	})

	t.Run("garbage signature", func(t *testing.T) {
		v, signer := newTestVerifier(t)
		q, _ := signedQuote(t, signer, nil)

		_, err := v.Verify("market-1", q, "0xdeadbeef", now)
		if !errors.Is(err, domain.ErrInvalidSignature) {
			t.Errorf("err = %v, want ErrInvalidSignature", err)
		}
	})
}

func TestConsumeNonce(t *testing.T) {
	t.Run("only the bound market may consume", func(t *testing.T) {
		v, _ := newTestVerifier(t)
		err := v.ConsumeNonce("market-2", "trader", "market-1", 1)
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("err = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("strictly increasing", func(t *testing.T) {
		v, _ := newTestVerifier(t)
		if err := v.ConsumeNonce("market-1", "trader", "market-1", 5); err != nil {
			t.Fatalf("ConsumeNonce(5): %v", err)
		}
		if err := v.ConsumeNonce("market-1", "trader", "market-1", 5); !errors.Is(err, domain.ErrStaleNonce) {
			t.Errorf("reusing nonce: err = %v, want ErrStaleNonce", err)
		}
		if err := v.ConsumeNonce("market-1", "trader", "market-1", 4); !errors.Is(err, domain.ErrStaleNonce) {
			t.Errorf("lower nonce: err = %v, want ErrStaleNonce", err)
		}
		if err := v.ConsumeNonce("market-1", "trader", "market-1", 6); err != nil {
			t.Errorf("advancing nonce: %v", err)
		}
		if got := v.LastNonce("trader", "market-1"); got != 6 {
			t.Errorf("LastNonce = %d, want 6", got)
		}
	})

	t.Run("gaps are allowed", func(t *testing.T) {
		v, _ := newTestVerifier(t)
		if err := v.ConsumeNonce("market-1", "trader", "market-1", 100); err != nil {
			t.Errorf("ConsumeNonce(100): %v", err)
		}
	})

	t.Run("scoped per trader and market", func(t *testing.T) {
		v, _ := newTestVerifier(t)
		if err := v.ConsumeNonce("market-1", "alice", "market-1", 9); err != nil {
			t.Fatalf("ConsumeNonce: %v", err)
		}
		if got := v.LastNonce("bob", "market-1"); got != 0 {
			t.Errorf("bob's nonce = %d, want 0", got)
		}
		if got := v.LastNonce("alice", "market-2"); got != 0 {
			t.Errorf("alice's nonce on market-2 = %d, want 0", got)
		}
	})
}

func TestSignerRegistry(t *testing.T) {
	addr := common.HexToAddress("0x01")

	t.Run("owner administers the registry", func(t *testing.T) {
		v := NewVerifier(testOwner, testChain, testVerifying)
		if err := v.AddSigner(testOwner, addr); err != nil {
			t.Fatalf("AddSigner: %v", err)
		}
		if !v.IsSigner(addr) {
			t.Error("added signer not authorized")
		}
		if err := v.RemoveSigner(testOwner, addr); err != nil {
			t.Fatalf("RemoveSigner: %v", err)
		}
		if v.IsSigner(addr) {
			t.Error("removed signer still authorized")
		}
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		v := NewVerifier(testOwner, testChain, testVerifying)
		if err := v.AddSigner("mallory", addr); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("AddSigner: err = %v, want ErrUnauthorized", err)
		}
		if err := v.RemoveSigner("mallory", addr); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("RemoveSigner: err = %v, want ErrUnauthorized", err)
		}
	})
}
