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

// OracleService defines the methods the oracle handler requires from the
// service layer.
type OracleService interface {
	ProposeOutcome(ctx context.Context, marketID string, outcome domain.Outcome, proposer string, bond decimal.Decimal) error
	DisputeOutcome(ctx context.Context, marketID, disputer string, bond decimal.Decimal) error
	ResolveOutcome(ctx context.Context, marketID string, finalOutcome domain.Outcome, proposerCorrect bool, resolver string) error
	OracleRequest(marketID string) (domain.OracleRequest, error)
}

// OracleHandler serves the optimistic oracle dispute protocol endpoints.
type OracleHandler struct {
	oracle OracleService
	logger *slog.Logger
}

// NewOracleHandler creates an OracleHandler with the given service and logger.
func NewOracleHandler(oracle OracleService, logger *slog.Logger) *OracleHandler {
	return &OracleHandler{
		oracle: oracle,
		logger: logHandler(logger, "oracle"),
	}
}

// proposeRequest is the body of POST /api/markets/{id}/oracle/propose.
type proposeRequest struct {
	Proposer string          `json:"proposer"`
	Outcome  string          `json:"outcome"`
	Bond     decimal.Decimal `json:"bond"`
}

// Propose submits a bonded outcome proposal.
// POST /api/markets/{id}/oracle/propose
func (h *OracleHandler) Propose(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Proposer == "" {
		writeError(w, http.StatusBadRequest, "missing proposer")
		return
	}
	outcome, err := domain.ParseOutcome(req.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.oracle.ProposeOutcome(r.Context(), marketID, outcome, req.Proposer, req.Bond); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"state": "proposed"})
}

// disputeRequest is the body of POST /api/markets/{id}/oracle/dispute.
type disputeRequest struct {
	Disputer string          `json:"disputer"`
	Bond     decimal.Decimal `json:"bond"`
}

// Dispute challenges a pending proposal within the dispute window.
// POST /api/markets/{id}/oracle/dispute
func (h *OracleHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	var req disputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Disputer == "" {
		writeError(w, http.StatusBadRequest, "missing disputer")
		return
	}

	if err := h.oracle.DisputeOutcome(r.Context(), marketID, req.Disputer, req.Bond); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"state": "disputed"})
}

// resolveRequest is the body of POST /api/markets/{id}/oracle/resolve.
type resolveRequest struct {
	Resolver        string `json:"resolver"`
	Outcome         string `json:"outcome"`
	ProposerCorrect bool   `json:"proposer_correct"`
}

// Resolve records a resolver's decision on a disputed request.
// POST /api/markets/{id}/oracle/resolve
func (h *OracleHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Resolver == "" {
		writeError(w, http.StatusBadRequest, "missing resolver")
		return
	}
	outcome, err := domain.ParseOutcome(req.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.oracle.ResolveOutcome(r.Context(), marketID, outcome, req.ProposerCorrect, req.Resolver); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": "finalized"})
}

// oracleRequestResponse is the JSON representation of a market's oracle
// request.
type oracleRequestResponse struct {
	MarketID        string          `json:"market_id"`
	State           string          `json:"state"`
	ProposedOutcome string          `json:"proposed_outcome"`
	Proposer        string          `json:"proposer"`
	ProposerBond    decimal.Decimal `json:"proposer_bond"`
	ProposedAt      time.Time       `json:"proposed_at"`
	Disputer        string          `json:"disputer,omitempty"`
	DisputerBond    decimal.Decimal `json:"disputer_bond"`
	DisputedAt      *time.Time      `json:"disputed_at,omitempty"`
	FinalOutcome    *string         `json:"final_outcome,omitempty"`
	FinalizedAt     *time.Time      `json:"finalized_at,omitempty"`
}

// GetRequest returns the oracle request for a market.
// GET /api/markets/{id}/oracle
func (h *OracleHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	req, err := h.oracle.OracleRequest(marketID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	resp := oracleRequestResponse{
		MarketID:        req.MarketID,
		State:           string(req.State),
		ProposedOutcome: req.ProposedOutcome.String(),
		Proposer:        req.Proposer,
		ProposerBond:    req.ProposerBond,
		ProposedAt:      req.ProposedAt,
		Disputer:        req.Disputer,
		DisputerBond:    req.DisputerBond,
		DisputedAt:      req.DisputedAt,
		FinalizedAt:     req.FinalizedAt,
	}
	if req.FinalOutcome != nil {
		s := req.FinalOutcome.String()
		resp.FinalOutcome = &s
	}
	writeJSON(w, http.StatusOK, resp)
}
