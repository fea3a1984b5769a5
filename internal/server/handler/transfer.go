package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/predictarena/ledger/internal/service"
)

// TransferHandler serves peer-to-peer point transfers.
type TransferHandler struct {
	transfers *service.TransferService
	logger    *slog.Logger
}

// NewTransferHandler creates a TransferHandler.
func NewTransferHandler(transfers *service.TransferService, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{transfers: transfers, logger: logger}
}

type transferRequest struct {
	ToEmail string `json:"to_email"`
	Amount  int64  `json:"amount"`
	ArenaID string `json:"arena_id"`
}

// Transfer moves points from the caller to another arena member.
// POST /api/transfers
func (h *TransferHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.transfers.Transfer(r.Context(), userID, req.ToEmail, req.Amount, req.ArenaID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"transferred": req.Amount})
}
