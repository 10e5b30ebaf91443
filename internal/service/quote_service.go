// Package service hosts the application services layered over the core
// engine: the off-ledger quote producer and the market operations service
// that adds audit persistence, signals and notifications.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/crypto"
	"github.com/veritasmkt/veritas/internal/domain"
	"github.com/veritasmkt/veritas/internal/pricing"
	"github.com/veritasmkt/veritas/internal/quote"
	"github.com/veritasmkt/veritas/internal/registry"
)

// amountScale matches the signed wire format's six fractional digits.
const amountScale = 6

// QuoteService is the off-ledger quote producer: it reads a market's AMM
// state, prices the requested trade through the same pricing engine the
// rest of the system uses, allocates a fresh nonce and signs the result.
// The engine never trusts it beyond the signature: every quote is
// re-verified at execution time.
type QuoteService struct {
	registry *registry.Registry
	verifier *quote.Verifier
	signer   *crypto.Signer
	prices   domain.PriceCache // optional
	bus      domain.SignalBus  // optional
	logger   *slog.Logger
	ttl      time.Duration
	clock    func() time.Time
}

// NewQuoteService creates a QuoteService. ttl is the validity window
// stamped on each quote's deadline. prices and bus may be nil.
func NewQuoteService(reg *registry.Registry, verifier *quote.Verifier, signer *crypto.Signer, prices domain.PriceCache, bus domain.SignalBus, ttl time.Duration, logger *slog.Logger, clock func() time.Time) *QuoteService {
	if clock == nil {
		clock = time.Now
	}
	return &QuoteService{
		registry: reg,
		verifier: verifier,
		signer:   signer,
		prices:   prices,
		bus:      bus,
		logger:   logger.With(slog.String("component", "quote_service")),
		ttl:      ttl,
		clock:    clock,
	}
}

// RequestQuote prices and signs a trade proposal for the given trader. The
// returned quote binds the exact cost, a deadline, and a nonce one past the
// trader's last consumed nonce on this market; the signature covers the
// quote's EIP-712 fingerprint.
func (s *QuoteService) RequestQuote(ctx context.Context, marketID, trader string, outcome domain.Outcome, amount decimal.Decimal, isSell bool) (domain.TradeQuote, string, error) {
	amount = amount.Truncate(amountScale)
	if amount.Sign() <= 0 {
		return domain.TradeQuote{}, "", fmt.Errorf("quote_service: %w", domain.ErrInvalidAmount)
	}

	m, err := s.registry.Get(marketID)
	if err != nil {
		return domain.TradeQuote{}, "", fmt.Errorf("quote_service: %w", err)
	}

	state := m.Quantities()
	cost, after, err := pricing.CostOfTrade(state, outcome, amount, isSell)
	if err != nil {
		return domain.TradeQuote{}, "", fmt.Errorf("quote_service: price trade: %w", err)
	}

	now := s.clock()
	q := domain.TradeQuote{
		Trader:       trader,
		Market:       marketID,
		Outcome:      outcome,
		Amount:       amount,
		Cost:         cost,
		Deadline:     now.Add(s.ttl),
		Nonce:        s.verifier.LastNonce(trader, marketID) + 1,
		IsSell:       isSell,
		MinAmountOut: amount,
	}
	if isSell {
		q.MinReturn = cost
	}

	sig, err := s.signer.SignQuote(q)
	if err != nil {
		return domain.TradeQuote{}, "", fmt.Errorf("quote_service: %w", err)
	}

	s.cachePrice(ctx, marketID, after, now)
	s.publish(ctx, q)

	s.logger.InfoContext(ctx, "quote issued",
		slog.String("market", marketID),
		slog.String("trader", trader),
		slog.String("outcome", outcome.String()),
		slog.String("side", q.Side()),
		slog.String("amount", amount.String()),
		slog.String("cost", cost.String()),
		slog.Uint64("nonce", q.Nonce),
	)

	return q, sig, nil
}

// YesPrice returns the instantaneous YES probability for a market.
func (s *QuoteService) YesPrice(marketID string) (decimal.Decimal, error) {
	m, err := s.registry.Get(marketID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote_service: %w", err)
	}
	p, err := pricing.YesPrice(m.Quantities())
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote_service: %w", err)
	}
	return p, nil
}

// cachePrice records the post-trade YES price so read-heavy consumers do
// not have to recompute the softmax. Cache failures are logged, never
// propagated.
func (s *QuoteService) cachePrice(ctx context.Context, marketID string, after domain.Quantities, ts time.Time) {
	if s.prices == nil {
		return
	}
	p, err := pricing.YesPrice(after)
	if err != nil {
		return
	}
	f, _ := p.Float64()
	if err := s.prices.SetYesPrice(ctx, marketID, f, ts); err != nil {
		s.logger.WarnContext(ctx, "price cache write failed",
			slog.String("market", marketID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *QuoteService) publish(ctx context.Context, q domain.TradeQuote) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishStream(ctx, "quotes", map[string]any{
		"event":   "quote_issued",
		"market":  q.Market,
		"trader":  q.Trader,
		"outcome": q.Outcome.String(),
		"side":    q.Side(),
		"amount":  q.Amount.String(),
		"cost":    q.Cost.String(),
		"nonce":   q.Nonce,
	}); err != nil {
		s.logger.WarnContext(ctx, "quote event publish failed",
			slog.String("market", q.Market),
			slog.String("error", err.Error()),
		)
	}
}
