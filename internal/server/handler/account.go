package handler

import (
	"log/slog"
	"net/http"

	"github.com/predictarena/ledger/internal/service"
)

// AccountHandler serves balances, standings, and history.
type AccountHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// GetAccount returns the user's balance in ?arena=<id> (global when omitted).
// GET /api/accounts/{user}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accounts.Get(r.Context(), r.PathValue("user"), r.URL.Query().Get("arena"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, acct)
}

// ListTransactions returns the user's ledger history, newest first.
// GET /api/accounts/{user}/transactions
func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.accounts.Transactions(r.Context(), r.PathValue("user"), parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, txs)
}

// ListBets returns the user's bets, newest first.
// GET /api/accounts/{user}/bets
func (h *AccountHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	bets, err := h.accounts.Bets(r.Context(), r.PathValue("user"), parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, bets)
}

// Standings returns the arena's accounts ordered by balance.
// GET /api/arenas/{id}/standings
func (h *AccountHandler) Standings(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.Standings(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, accounts)
}
