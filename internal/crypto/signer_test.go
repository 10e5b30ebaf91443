package crypto

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
)

const testKeyHex = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

var testVerifying = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func testQuote() domain.TradeQuote {
	return domain.TradeQuote{
		Trader:       "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Market:       "market-1",
		Outcome:      domain.OutcomeYes,
		Amount:       decimal.RequireFromString("25.5"),
		Cost:         decimal.RequireFromString("13.204871"),
		Deadline:     time.Unix(1700000000, 0).UTC(),
		Nonce:        7,
		IsSell:       false,
		MinAmountOut: decimal.RequireFromString("25.5"),
		MinReturn:    decimal.Zero,
	}
}

func TestSignAndRecover(t *testing.T) {
	signer, err := NewSigner(testKeyHex, 137, testVerifying)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	q := testQuote()
	sig, err := signer.SignQuote(q)
	if err != nil {
		t.Fatalf("SignQuote: %v", err)
	}

	digest, err := QuoteDigest(137, testVerifying, q)
	if err != nil {
		t.Fatalf("QuoteDigest: %v", err)
	}

	t.Run("recovers the signing address", func(t *testing.T) {
		got, err := RecoverSigner(digest, sig)
		if err != nil {
			t.Fatalf("RecoverSigner: %v", err)
		}
		if got != signer.Address() {
			t.Errorf("recovered %s, want %s", got.Hex(), signer.Address().Hex())
		}
	})

	t.Run("tampered quote recovers a different address", func(t *testing.T) {
		tampered := q
		tampered.Amount = tampered.Amount.Add(decimal.NewFromInt(1))
		tamperedDigest, err := QuoteDigest(137, testVerifying, tampered)
		if err != nil {
			t.Fatalf("QuoteDigest: %v", err)
		}
		got, err := RecoverSigner(tamperedDigest, sig)
		if err == nil && got == signer.Address() {
			t.Error("signature verified against a modified quote")
		}
	})

	t.Run("digest binds the chain", func(t *testing.T) {
		other, err := QuoteDigest(1, testVerifying, q)
		if err != nil {
			t.Fatalf("QuoteDigest: %v", err)
		}
		if bytes.Equal(digest, other) {
			t.Error("digest identical across chain IDs")
		}
	})

	t.Run("digest binds the verifying party", func(t *testing.T) {
		other, err := QuoteDigest(137, common.HexToAddress("0xbb"), q)
		if err != nil {
			t.Fatalf("QuoteDigest: %v", err)
		}
		if bytes.Equal(digest, other) {
			t.Error("digest identical across verifying addresses")
		}
	})

	t.Run("digest is deterministic", func(t *testing.T) {
		again, err := QuoteDigest(137, testVerifying, q)
		if err != nil {
			t.Fatalf("QuoteDigest: %v", err)
		}
		if !bytes.Equal(digest, again) {
			t.Error("same quote produced two digests")
		}
	})
}

func TestRecoverSignerRejectsMalformed(t *testing.T) {
	digest, err := QuoteDigest(137, testVerifying, testQuote())
	if err != nil {
		t.Fatalf("QuoteDigest: %v", err)
	}

	cases := []struct {
		name string
		sig  string
	}{
		{"not hex", "0xzz"},
		{"too short", "0xdeadbeef"},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := RecoverSigner(digest, tc.sig); !errors.Is(err, domain.ErrInvalidSignature) {
				t.Errorf("err = %v, want ErrInvalidSignature", err)
			}
		})
	}
}

func TestQuoteDigestRejectsUnrepresentableAmounts(t *testing.T) {
	t.Run("more than six decimal places", func(t *testing.T) {
		q := testQuote()
		q.Amount = decimal.RequireFromString("1.0000001")
		if _, err := QuoteDigest(137, testVerifying, q); err == nil {
			t.Error("expected error for 7-decimal amount")
		}
	})

	t.Run("negative cost", func(t *testing.T) {
		q := testQuote()
		q.Cost = decimal.NewFromInt(-1)
		if _, err := QuoteDigest(137, testVerifying, q); err == nil {
			t.Error("expected error for negative cost")
		}
	})
}

func TestNewSignerRejectsBadKey(t *testing.T) {
	if _, err := NewSigner("not-a-key", 137, testVerifying); err == nil {
		t.Error("expected error for malformed private key")
	}
}

func TestKeyFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signer.key")

	blob, err := EncryptSigningKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptSigningKey: %v", err)
	}
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}

	t.Run("decrypts with the right password", func(t *testing.T) {
		got, err := ResolveSigningKey(KeyConfig{
			EncryptedKeyPath: path,
			KeyPassword:      "hunter2",
		})
		if err != nil {
			t.Fatalf("ResolveSigningKey: %v", err)
		}
		if got != strings.TrimPrefix(testKeyHex, "0x") {
			t.Errorf("resolved %q, want original key", got)
		}
	})

	t.Run("rejects the wrong password", func(t *testing.T) {
		if _, err := ResolveSigningKey(KeyConfig{
			EncryptedKeyPath: path,
			KeyPassword:      "wrong",
		}); err == nil {
			t.Error("expected error for wrong password")
		}
	})

	t.Run("raw key takes precedence", func(t *testing.T) {
		got, err := ResolveSigningKey(KeyConfig{
			RawPrivateKey:    "0xabc123",
			EncryptedKeyPath: path,
			KeyPassword:      "hunter2",
		})
		if err != nil {
			t.Fatalf("ResolveSigningKey: %v", err)
		}
		if got != "abc123" {
			t.Errorf("resolved %q, want raw key without prefix", got)
		}
	})

	t.Run("no key source configured", func(t *testing.T) {
		if _, err := ResolveSigningKey(KeyConfig{}); err == nil {
			t.Error("expected error with no key source")
		}
	})
}
