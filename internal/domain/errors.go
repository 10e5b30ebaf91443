package domain

import "errors"

// Sentinel errors returned by the trading and resolution engine. Every
// operation fails atomically with exactly one of these (possibly wrapped
// with context), grouped by the failure class it represents.
var (
	// Authorization: wrong caller role.
	ErrUnauthorized = errors.New("unauthorized caller")

	// Timing: too early or too late relative to a deadline or window.
	ErrExpired          = errors.New("quote expired")
	ErrMarketExpired    = errors.New("market past end time")
	ErrMarketNotExpired = errors.New("market not yet expired")
	ErrWindowClosed     = errors.New("window closed")
	ErrWindowOpen       = errors.New("dispute window still open")

	// State: wrong lifecycle state for the requested operation.
	ErrNotOpen          = errors.New("market not open")
	ErrNotClosed        = errors.New("market not closed")
	ErrNotSettled       = errors.New("market not settled")
	ErrAlreadySettled   = errors.New("market already settled")
	ErrNotProposed      = errors.New("no outcome proposed")
	ErrAlreadyProposed  = errors.New("outcome already proposed")
	ErrAlreadyDisputed  = errors.New("proposal already disputed")
	ErrNotDisputed      = errors.New("proposal not disputed")
	ErrNotFinalized     = errors.New("outcome not finalized")
	ErrAlreadyFinalized = errors.New("outcome already finalized")

	// Replay: reused nonce or quote fingerprint.
	ErrReplay     = errors.New("quote fingerprint already used")
	ErrStaleNonce = errors.New("stale nonce")

	// Amount: zero, insufficient, slippage exceeded, or value mismatch.
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientShares  = errors.New("insufficient outstanding shares")
	ErrSlippage            = errors.New("slippage limit exceeded")
	ErrValueMismatch       = errors.New("attached value mismatch")
	ErrBondMismatch        = errors.New("bond amount mismatch")

	// Integrity: bad signature, unauthorized signer, cross-market quote.
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrUnauthorizedSigner = errors.New("unauthorized signer")
	ErrMarketMismatch     = errors.New("quote bound to different market")

	// Conservation: attempted debit exceeding the recorded balance. This
	// indicates an internal accounting failure, not a user error.
	ErrConservation = errors.New("conservation violation")

	// Internal pricing inconsistency (e.g. a negative computed refund).
	ErrPricingInconsistency = errors.New("pricing inconsistency")

	// Lookup failures.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)
