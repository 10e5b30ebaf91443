package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
	"github.com/veritasmkt/veritas/internal/notify"
	"github.com/veritasmkt/veritas/internal/oracle"
	"github.com/veritasmkt/veritas/internal/registry"
	"github.com/veritasmkt/veritas/internal/settlement"
)

// Stores bundles the optional audit-trail persistence. Any field may be
// nil; the engine's in-memory state stays authoritative and audit writes
// never fail an operation.
type Stores struct {
	Markets     domain.MarketStore
	Trades      domain.TradeStore
	Oracle      domain.OracleRequestStore
	Redemptions domain.RedemptionStore
}

// MarketService wraps the core engine's mutations with audit persistence,
// signal-bus events and operator notifications.
type MarketService struct {
	registry   *registry.Registry
	oracle     *oracle.Adapter
	settlement *settlement.Engine
	stores     Stores
	bus        domain.SignalBus // optional
	notifier   *notify.Notifier // optional
	logger     *slog.Logger
}

// NewMarketService creates a MarketService.
func NewMarketService(reg *registry.Registry, ora *oracle.Adapter, eng *settlement.Engine, stores Stores, bus domain.SignalBus, notifier *notify.Notifier, logger *slog.Logger) *MarketService {
	return &MarketService{
		registry:   reg,
		oracle:     ora,
		settlement: eng,
		stores:     stores,
		bus:        bus,
		notifier:   notifier,
		logger:     logger.With(slog.String("component", "market_service")),
	}
}

// CreateMarket creates a new market and persists its initial snapshot.
func (s *MarketService) CreateMarket(ctx context.Context, p registry.CreateParams) (domain.Market, error) {
	m, err := s.registry.Create(p)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: %w", err)
	}

	snap := m.Snapshot()
	s.persistMarket(ctx, snap)
	s.publish(ctx, "markets", map[string]any{
		"event":    "market_created",
		"market":   snap.ID,
		"question": snap.Question,
		"end_time": snap.EndTime.Format(time.RFC3339),
	})

	s.logger.InfoContext(ctx, "market created",
		slog.String("market", snap.ID),
		slog.String("end_time", snap.EndTime.Format(time.RFC3339)),
	)
	return snap, nil
}

// ExecuteTrade executes a signed quote against its market and records the
// trade in the audit trail.
func (s *MarketService) ExecuteTrade(ctx context.Context, q domain.TradeQuote, signature string, minAmountOut, attached decimal.Decimal) (domain.Trade, error) {
	m, err := s.registry.Get(q.Market)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("market_service: %w", err)
	}

	trade, err := m.ExecuteTrade(q, signature, minAmountOut, attached)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("market_service: %w", err)
	}

	if s.stores.Trades != nil {
		if dbErr := s.stores.Trades.Insert(ctx, trade); dbErr != nil {
			s.logger.WarnContext(ctx, "trade audit write failed",
				slog.String("trade", trade.ID),
				slog.String("error", dbErr.Error()),
			)
		}
	}
	s.persistMarket(ctx, m.Snapshot())
	s.publish(ctx, "trades", map[string]any{
		"event":   "trade_executed",
		"trade":   trade.ID,
		"market":  trade.MarketID,
		"trader":  trade.Trader,
		"outcome": trade.Outcome.String(),
		"side":    trade.Side,
		"amount":  trade.Amount.String(),
		"cost":    trade.Cost.String(),
	})

	s.logger.InfoContext(ctx, "trade executed",
		slog.String("trade", trade.ID),
		slog.String("market", trade.MarketID),
		slog.String("side", trade.Side),
		slog.String("amount", trade.Amount.String()),
	)
	return trade, nil
}

// CloseMarket explicitly closes an expired market.
func (s *MarketService) CloseMarket(ctx context.Context, marketID string) error {
	m, err := s.registry.Get(marketID)
	if err != nil {
		return fmt.Errorf("market_service: %w", err)
	}
	if err := m.Close(); err != nil {
		return fmt.Errorf("market_service: %w", err)
	}
	s.persistMarket(ctx, m.Snapshot())
	s.publish(ctx, "markets", map[string]any{"event": "market_closed", "market": marketID})
	return nil
}

// ProposeOutcome forwards a bonded outcome proposal to the oracle.
func (s *MarketService) ProposeOutcome(ctx context.Context, marketID string, outcome domain.Outcome, proposer string, bond decimal.Decimal) error {
	if err := s.oracle.Propose(marketID, outcome, proposer, bond); err != nil {
		return fmt.Errorf("market_service: %w", err)
	}
	s.persistOracle(ctx, marketID)
	s.publish(ctx, "oracle", map[string]any{
		"event":    "outcome_proposed",
		"market":   marketID,
		"outcome":  outcome.String(),
		"proposer": proposer,
	})
	return nil
}

// DisputeOutcome forwards a bonded dispute to the oracle and alerts
// operators, since a dispute demands a resolver decision within the
// resolution deadline.
func (s *MarketService) DisputeOutcome(ctx context.Context, marketID, disputer string, bond decimal.Decimal) error {
	if err := s.oracle.Dispute(marketID, disputer, bond); err != nil {
		return fmt.Errorf("market_service: %w", err)
	}
	s.persistOracle(ctx, marketID)
	s.publish(ctx, "oracle", map[string]any{
		"event":    "outcome_disputed",
		"market":   marketID,
		"disputer": disputer,
	})
	s.notify(ctx, "dispute_raised", "Outcome disputed",
		fmt.Sprintf("Market %s: proposal disputed by %s; resolver action required.", marketID, disputer))
	return nil
}

// ResolveOutcome forwards a resolver's decision on a disputed request.
func (s *MarketService) ResolveOutcome(ctx context.Context, marketID string, finalOutcome domain.Outcome, proposerCorrect bool, resolver string) error {
	if err := s.oracle.Resolve(marketID, finalOutcome, proposerCorrect, resolver); err != nil {
		return fmt.Errorf("market_service: %w", err)
	}
	s.persistOracle(ctx, marketID)
	s.publish(ctx, "oracle", map[string]any{
		"event":   "outcome_resolved",
		"market":  marketID,
		"outcome": finalOutcome.String(),
	})
	return nil
}

// SettleMarket drives the settlement engine and records the terminal
// snapshot.
func (s *MarketService) SettleMarket(ctx context.Context, marketID string) error {
	if err := s.settlement.Settle(marketID); err != nil {
		return fmt.Errorf("market_service: %w", err)
	}

	m, err := s.registry.Get(marketID)
	if err != nil {
		return fmt.Errorf("market_service: %w", err)
	}
	snap := m.Snapshot()
	s.persistMarket(ctx, snap)
	s.persistOracle(ctx, marketID)

	outcome := ""
	if snap.Outcome != nil {
		outcome = snap.Outcome.String()
	}
	s.publish(ctx, "markets", map[string]any{
		"event":   "market_settled",
		"market":  marketID,
		"outcome": outcome,
	})
	s.notify(ctx, "market_settled", "Market settled",
		fmt.Sprintf("Market %s settled with outcome %s.", marketID, outcome))

	s.logger.InfoContext(ctx, "market settled",
		slog.String("market", marketID),
		slog.String("outcome", outcome),
	)
	return nil
}

// Redeem pays out winning claims and records the redemption.
func (s *MarketService) Redeem(ctx context.Context, marketID, holder string, amount decimal.Decimal) (domain.Redemption, error) {
	red, err := s.settlement.Redeem(marketID, holder, amount)
	if err != nil {
		return domain.Redemption{}, fmt.Errorf("market_service: %w", err)
	}

	if s.stores.Redemptions != nil {
		if dbErr := s.stores.Redemptions.Insert(ctx, red); dbErr != nil {
			s.logger.WarnContext(ctx, "redemption audit write failed",
				slog.String("redemption", red.ID),
				slog.String("error", dbErr.Error()),
			)
		}
	}
	if m, err := s.registry.Get(marketID); err == nil {
		s.persistMarket(ctx, m.Snapshot())
	}
	s.publish(ctx, "redemptions", map[string]any{
		"event":  "claims_redeemed",
		"market": marketID,
		"holder": holder,
		"amount": red.Amount.String(),
		"payout": red.Payout.String(),
	})
	return red, nil
}

// GetMarket returns the snapshot of a market.
func (s *MarketService) GetMarket(marketID string) (domain.Market, error) {
	m, err := s.registry.Get(marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: %w", err)
	}
	return m.Snapshot(), nil
}

// ListMarkets returns snapshots of all markets.
func (s *MarketService) ListMarkets() []domain.Market {
	ms := s.registry.List()
	out := make([]domain.Market, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Snapshot())
	}
	return out
}

// OracleRequest returns the oracle record for a market.
func (s *MarketService) OracleRequest(marketID string) (domain.OracleRequest, error) {
	req, err := s.oracle.Request(marketID)
	if err != nil {
		return domain.OracleRequest{}, fmt.Errorf("market_service: %w", err)
	}
	return req, nil
}

// ---------------------------------------------------------------------------
// Audit, event and notification helpers. None of these can fail the
// wrapped operation; failures are logged and dropped.
// ---------------------------------------------------------------------------

func (s *MarketService) persistMarket(ctx context.Context, snap domain.Market) {
	if s.stores.Markets == nil {
		return
	}
	if err := s.stores.Markets.Upsert(ctx, snap); err != nil {
		s.logger.WarnContext(ctx, "market snapshot write failed",
			slog.String("market", snap.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) persistOracle(ctx context.Context, marketID string) {
	if s.stores.Oracle == nil {
		return
	}
	req, err := s.oracle.Request(marketID)
	if err != nil {
		return
	}
	if err := s.stores.Oracle.Upsert(ctx, req); err != nil {
		s.logger.WarnContext(ctx, "oracle snapshot write failed",
			slog.String("market", marketID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) publish(ctx context.Context, channel string, event map[string]any) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(event)
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
