// Package quote implements replay-safe verification of signed trade
// quotes: an allow-list of quote-signing identities plus a strictly
// increasing nonce counter per (trader, market).
package quote

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/veritasmkt/veritas/internal/crypto"
	"github.com/veritasmkt/veritas/internal/domain"
)

type nonceKey struct {
	trader string
	market string
}

// Verifier authenticates trade quotes against the signer registry and the
// nonce table. Verify is deliberately pure so a quote can be checked
// speculatively; only ConsumeNonce mutates state, and only the market a
// quote is bound to may call it.
type Verifier struct {
	owner     string
	chainID   int64
	verifying common.Address

	mu      sync.RWMutex
	signers map[common.Address]bool
	nonces  map[nonceKey]uint64
}

// NewVerifier creates a Verifier. The owner account is the administrative
// capability allowed to change the signer registry; chainID and verifying
// fix the EIP-712 domain quotes must be signed under.
func NewVerifier(owner string, chainID int64, verifying common.Address) *Verifier {
	return &Verifier{
		owner:     owner,
		chainID:   chainID,
		verifying: verifying,
		signers:   make(map[common.Address]bool),
		nonces:    make(map[nonceKey]uint64),
	}
}

// AddSigner authorizes a quote-signing identity. Owner only; takes effect
// immediately.
func (v *Verifier) AddSigner(caller string, signer common.Address) error {
	if caller != v.owner {
		return fmt.Errorf("quote: add signer: %w", domain.ErrUnauthorized)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.signers[signer] = true
	return nil
}

// RemoveSigner revokes a quote-signing identity. Owner only.
func (v *Verifier) RemoveSigner(caller string, signer common.Address) error {
	if caller != v.owner {
		return fmt.Errorf("quote: remove signer: %w", domain.ErrUnauthorized)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.signers, signer)
	return nil
}

// IsSigner reports whether the given identity is currently authorized.
func (v *Verifier) IsSigner(signer common.Address) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.signers[signer]
}

// Verify authenticates a quote on behalf of the market identified by
// marketID and returns the quote's deterministic fingerprint for one-time
// use tracking by the caller. It never mutates state.
//
// Checks, in order: deadline, amount, market binding, nonce freshness,
// signature recovery against the signer registry.
func (v *Verifier) Verify(marketID string, q domain.TradeQuote, signature string, now time.Time) (string, error) {
	if now.After(q.Deadline) {
		return "", fmt.Errorf("quote: deadline %s: %w", q.Deadline.Format(time.RFC3339), domain.ErrExpired)
	}
	if q.Amount.Sign() <= 0 {
		return "", fmt.Errorf("quote: %w", domain.ErrInvalidAmount)
	}
	if q.Market != marketID {
		return "", fmt.Errorf("quote: bound to %q, verifying market is %q: %w", q.Market, marketID, domain.ErrMarketMismatch)
	}

	v.mu.RLock()
	last := v.nonces[nonceKey{trader: q.Trader, market: q.Market}]
	v.mu.RUnlock()
	if q.Nonce <= last {
		return "", fmt.Errorf("quote: nonce %d <= %d: %w", q.Nonce, last, domain.ErrStaleNonce)
	}

	digest, err := crypto.QuoteDigest(v.chainID, v.verifying, q)
	if err != nil {
		return "", fmt.Errorf("quote: fingerprint: %w", err)
	}
	signer, err := crypto.RecoverSigner(digest, signature)
	if err != nil {
		return "", fmt.Errorf("quote: %w", err)
	}

	v.mu.RLock()
	authorized := v.signers[signer]
	v.mu.RUnlock()
	if !authorized {
		return "", fmt.Errorf("quote: recovered %s: %w", signer.Hex(), domain.ErrUnauthorizedSigner)
	}

	return "0x" + common.Bytes2Hex(digest), nil
}

// ConsumeNonce advances the nonce for (trader, market). Only the market a
// quote is bound to may consume its nonces; of two racing quotes sharing a
// nonce, the loser fails here with ErrStaleNonce.
func (v *Verifier) ConsumeNonce(caller, trader, market string, nonce uint64) error {
	if caller != market {
		return fmt.Errorf("quote: consume nonce: %w", domain.ErrUnauthorized)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	key := nonceKey{trader: trader, market: market}
	if nonce <= v.nonces[key] {
		return fmt.Errorf("quote: nonce %d <= %d: %w", nonce, v.nonces[key], domain.ErrStaleNonce)
	}
	v.nonces[key] = nonce
	return nil
}

// LastNonce returns the last consumed nonce for (trader, market), zero if
// none. The off-ledger quote service uses this to allocate fresh nonces.
func (v *Verifier) LastNonce(trader, market string) uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.nonces[nonceKey{trader: trader, market: market}]
}
