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

// SettlementService defines the methods the settlement handler requires
// from the service layer.
type SettlementService interface {
	SettleMarket(ctx context.Context, marketID string) error
	Redeem(ctx context.Context, marketID, holder string, amount decimal.Decimal) (domain.Redemption, error)
}

// SettlementHandler serves settlement and redemption endpoints.
type SettlementHandler struct {
	settlement  SettlementService
	redemptions domain.RedemptionStore // optional, nil disables history
	logger      *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler with the given service
// and logger.
func NewSettlementHandler(settlement SettlementService, redemptions domain.RedemptionStore, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		settlement:  settlement,
		redemptions: redemptions,
		logger:      logHandler(logger, "settlement"),
	}
}

// Settle drives a market to its terminal SETTLED state. Permissionless:
// it succeeds whenever the oracle can finalize.
// POST /api/markets/{id}/settle
func (h *SettlementHandler) Settle(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	if err := h.settlement.SettleMarket(r.Context(), marketID); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

// redeemRequest is the body of POST /api/markets/{id}/redeem.
type redeemRequest struct {
	Holder string          `json:"holder"`
	Amount decimal.Decimal `json:"amount"`
}

// redemptionResponse is the JSON representation of a redemption payout.
type redemptionResponse struct {
	ID         string          `json:"id"`
	MarketID   string          `json:"market_id"`
	Holder     string          `json:"holder"`
	Amount     decimal.Decimal `json:"amount"`
	Payout     decimal.Decimal `json:"payout"`
	RedeemedAt time.Time       `json:"redeemed_at"`
}

func toRedemptionResponse(red domain.Redemption) redemptionResponse {
	return redemptionResponse{
		ID:         red.ID,
		MarketID:   red.MarketID,
		Holder:     red.Holder,
		Amount:     red.Amount,
		Payout:     red.Payout,
		RedeemedAt: red.RedeemedAt,
	}
}

// Redeem pays out winning claims to a holder.
// POST /api/markets/{id}/redeem
func (h *SettlementHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Holder == "" {
		writeError(w, http.StatusBadRequest, "missing holder")
		return
	}

	red, err := h.settlement.Redeem(r.Context(), marketID, req.Holder, req.Amount)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRedemptionResponse(red))
}

// ListRedemptions returns a market's redemption history.
// GET /api/markets/{id}/redemptions?limit=50&offset=0
func (h *SettlementHandler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	if h.redemptions == nil {
		writeError(w, http.StatusServiceUnavailable, "redemption history not configured")
		return
	}

	marketID := pathParam(r, "id")
	opts := parseListOpts(r)

	reds, err := h.redemptions.ListByMarket(r.Context(), marketID, opts)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	out := make([]redemptionResponse, 0, len(reds))
	for _, red := range reds {
		out = append(out, toRedemptionResponse(red))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"redemptions": out,
		"limit":       opts.Limit,
		"offset":      opts.Offset,
	})
}
