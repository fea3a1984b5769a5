package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/predictarena/ledger/internal/domain"
	"github.com/predictarena/ledger/internal/service"
)

// BetHandler serves bet placement.
type BetHandler struct {
	bets   *service.BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(bets *service.BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{bets: bets, logger: logger}
}

type placeBetRequest struct {
	MarketID       string   `json:"market_id"`
	OptionID       *string  `json:"option_id,omitempty"`
	NumericValue   *float64 `json:"numeric_value,omitempty"`
	Amount         int64    `json:"amount"`
	IdempotencyKey *string  `json:"idempotency_key,omitempty"`
}

// PlaceBet executes a wager for the authenticated caller.
// POST /api/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bet, err := h.bets.PlaceBet(r.Context(), domain.PlaceBetRequest{
		UserID:         userID,
		MarketID:       req.MarketID,
		OptionID:       req.OptionID,
		NumericValue:   req.NumericValue,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, bet)
}
