package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
	"github.com/veritasmkt/veritas/internal/registry"
)

// MarketService defines the methods the market handler requires from the
// service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type MarketService interface {
	CreateMarket(ctx context.Context, p registry.CreateParams) (domain.Market, error)
	GetMarket(id string) (domain.Market, error)
	ListMarkets() []domain.Market
	CloseMarket(ctx context.Context, id string) error
}

// MarketHandler serves market lifecycle HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	trades  domain.TradeStore // optional, nil disables trade history
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, trades domain.TradeStore, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		trades:  trades,
		logger:  logHandler(logger, "market"),
	}
}

// marketResponse is the JSON representation of a market snapshot.
type marketResponse struct {
	ID         string          `json:"id"`
	Question   string          `json:"question"`
	EndTime    time.Time       `json:"end_time"`
	Status     string          `json:"status"`
	Outcome    *string         `json:"outcome,omitempty"`
	QYes       decimal.Decimal `json:"q_yes"`
	QNo        decimal.Decimal `json:"q_no"`
	LiquidityB decimal.Decimal `json:"liquidity_b"`
	Collateral decimal.Decimal `json:"collateral"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func toMarketResponse(m domain.Market) marketResponse {
	resp := marketResponse{
		ID:         m.ID,
		Question:   m.Question,
		EndTime:    m.EndTime,
		Status:     string(m.Status),
		QYes:       m.QYes,
		QNo:        m.QNo,
		LiquidityB: m.LiquidityB,
		Collateral: m.Collateral,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.Outcome != nil {
		s := m.Outcome.String()
		resp.Outcome = &s
	}
	return resp
}

// createMarketRequest is the body of POST /api/markets.
type createMarketRequest struct {
	Question   string          `json:"question"`
	EndTime    time.Time       `json:"end_time"`
	LiquidityB decimal.Decimal `json:"liquidity_b"`
}

// CreateMarket creates a new market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "missing question")
		return
	}

	m, err := h.markets.CreateMarket(r.Context(), registry.CreateParams{
		Question:   req.Question,
		EndTime:    req.EndTime,
		LiquidityB: req.LiquidityB,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMarketResponse(m))
}

// ListMarkets returns all markets.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets := h.markets.ListMarkets()
	out := make([]marketResponse, 0, len(markets))
	for _, m := range markets {
		out = append(out, toMarketResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": out})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	m, err := h.markets.GetMarket(id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketResponse(m))
}

// CloseMarket explicitly closes an expired market.
// POST /api/markets/{id}/close
func (h *MarketHandler) CloseMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.markets.CloseMarket(r.Context(), id); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// tradeResponse is the JSON representation of an executed trade.
type tradeResponse struct {
	ID          string          `json:"id"`
	MarketID    string          `json:"market_id"`
	Trader      string          `json:"trader"`
	Outcome     string          `json:"outcome"`
	Side        string          `json:"side"`
	Amount      decimal.Decimal `json:"amount"`
	Cost        decimal.Decimal `json:"cost"`
	Fingerprint string          `json:"fingerprint"`
	Nonce       uint64          `json:"nonce"`
	ExecutedAt  time.Time       `json:"executed_at"`
}

func toTradeResponse(t domain.Trade) tradeResponse {
	return tradeResponse{
		ID:          t.ID,
		MarketID:    t.MarketID,
		Trader:      t.Trader,
		Outcome:     t.Outcome.String(),
		Side:        t.Side,
		Amount:      t.Amount,
		Cost:        t.Cost,
		Fingerprint: t.Fingerprint,
		Nonce:       t.Nonce,
		ExecutedAt:  t.ExecutedAt,
	}
}

// ListTrades returns a market's executed trades from the audit store.
// GET /api/markets/{id}/trades?limit=50&offset=0
func (h *MarketHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	if h.trades == nil {
		writeError(w, http.StatusServiceUnavailable, "trade history not configured")
		return
	}

	id := pathParam(r, "id")
	opts := parseListOpts(r)

	trades, err := h.trades.ListByMarket(r.Context(), id, opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	out := make([]tradeResponse, 0, len(trades))
	for _, t := range trades {
		out = append(out, toTradeResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trades": out,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}
