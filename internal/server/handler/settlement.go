package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/predictarena/ledger/internal/service"
)

// SettlementHandler serves market resolution and cancellation.
type SettlementHandler struct {
	settlement *service.SettlementService
	logger     *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(settlement *service.SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{settlement: settlement, logger: logger}
}

type resolveRequest struct {
	WinningOptionID *string  `json:"winning_option_id,omitempty"`
	WinningValue    *float64 `json:"winning_value,omitempty"`
}

// ResolveMarket settles the market with the posted winning outcome.
// POST /api/markets/{id}/resolve
func (h *SettlementHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.settlement.ResolveMarket(r.Context(), userID, r.PathValue("id"), req.WinningOptionID, req.WinningValue)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

// CancelMarket voids the market and refunds all stakes.
// POST /api/markets/{id}/cancel
func (h *SettlementHandler) CancelMarket(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	res, err := h.settlement.CancelMarket(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}
