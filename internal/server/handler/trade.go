package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
)

// TradeService defines the methods the trade handler requires from the
// service layer.
type TradeService interface {
	ExecuteTrade(ctx context.Context, q domain.TradeQuote, signature string, minAmountOut, attached decimal.Decimal) (domain.Trade, error)
}

// TradeHandler serves the trade execution endpoint.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler with the given service and logger.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logHandler(logger, "trade"),
	}
}

// executeTradeRequest is the body of POST /api/markets/{id}/trades. The
// quote fields must be byte-identical to what was signed; the deadline is a
// Unix timestamp in seconds.
type executeTradeRequest struct {
	Quote        executeTradeQuote `json:"quote"`
	Signature    string            `json:"signature"`
	MinAmountOut decimal.Decimal   `json:"min_amount_out"`
	Attached     decimal.Decimal   `json:"attached"`
}

type executeTradeQuote struct {
	Trader       string          `json:"trader"`
	Market       string          `json:"market"`
	Outcome      string          `json:"outcome"`
	Amount       decimal.Decimal `json:"amount"`
	Cost         decimal.Decimal `json:"cost"`
	Deadline     int64           `json:"deadline"`
	Nonce        uint64          `json:"nonce"`
	IsSell       bool            `json:"is_sell"`
	MinAmountOut decimal.Decimal `json:"min_amount_out"`
	MinReturn    decimal.Decimal `json:"min_return"`
}

// ExecuteTrade executes a signed quote against its market.
// POST /api/markets/{id}/trades
func (h *TradeHandler) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	var req executeTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Signature == "" {
		writeError(w, http.StatusBadRequest, "missing signature")
		return
	}
	if req.Quote.Market != marketID {
		writeError(w, http.StatusBadRequest, "quote market does not match URL")
		return
	}
	outcome, err := domain.ParseOutcome(req.Quote.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := domain.TradeQuote{
		Trader:       req.Quote.Trader,
		Market:       req.Quote.Market,
		Outcome:      outcome,
		Amount:       req.Quote.Amount,
		Cost:         req.Quote.Cost,
		Deadline:     time.Unix(req.Quote.Deadline, 0).UTC(),
		Nonce:        req.Quote.Nonce,
		IsSell:       req.Quote.IsSell,
		MinAmountOut: req.Quote.MinAmountOut,
		MinReturn:    req.Quote.MinReturn,
	}

	trade, err := h.trades.ExecuteTrade(r.Context(), q, req.Signature, req.MinAmountOut, req.Attached)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTradeResponse(trade))
}
