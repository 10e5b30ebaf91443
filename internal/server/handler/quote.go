package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/veritasmkt/veritas/internal/domain"
)

// QuoteService defines the methods the quote handler requires from the
// service layer.
type QuoteService interface {
	RequestQuote(ctx context.Context, marketID, trader string, outcome domain.Outcome, amount decimal.Decimal, isSell bool) (domain.TradeQuote, string, error)
	YesPrice(marketID string) (decimal.Decimal, error)
}

// QuoteHandler serves quote issuance and pricing endpoints.
type QuoteHandler struct {
	quotes QuoteService
	logger *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler with the given service and logger.
func NewQuoteHandler(quotes QuoteService, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{
		quotes: quotes,
		logger: logHandler(logger, "quote"),
	}
}

// requestQuoteRequest is the body of POST /api/markets/{id}/quotes.
type requestQuoteRequest struct {
	Trader  string          `json:"trader"`
	Outcome string          `json:"outcome"`
	Amount  decimal.Decimal `json:"amount"`
	Side    string          `json:"side"` // "buy" or "sell"
}

// quoteResponse carries a signed quote back to the trader. The deadline is
// a Unix timestamp in seconds, matching what the signature covers.
type quoteResponse struct {
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
	Signature    string          `json:"signature"`
}

// RequestQuote prices and signs a trade proposal.
// POST /api/markets/{id}/quotes
func (h *QuoteHandler) RequestQuote(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	var req requestQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Trader == "" {
		writeError(w, http.StatusBadRequest, "missing trader")
		return
	}
	outcome, err := domain.ParseOutcome(req.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var isSell bool
	switch req.Side {
	case "buy", "":
		isSell = false
	case "sell":
		isSell = true
	default:
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}

	q, sig, err := h.quotes.RequestQuote(r.Context(), marketID, req.Trader, outcome, req.Amount, isSell)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, quoteResponse{
		Trader:       q.Trader,
		Market:       q.Market,
		Outcome:      q.Outcome.String(),
		Amount:       q.Amount,
		Cost:         q.Cost,
		Deadline:     q.Deadline.Unix(),
		Nonce:        q.Nonce,
		IsSell:       q.IsSell,
		MinAmountOut: q.MinAmountOut,
		MinReturn:    q.MinReturn,
		Signature:    sig,
	})
}

// GetPrice returns the instantaneous YES probability of a market.
// GET /api/markets/{id}/price
func (h *QuoteHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	p, err := h.quotes.YesPrice(marketID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market":    marketID,
		"yes_price": p,
		"no_price":  decimal.NewFromInt(1).Sub(p),
	})
}
