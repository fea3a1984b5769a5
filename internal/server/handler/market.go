package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/predictarena/ledger/internal/service"
)

// MarketHandler serves market listings, prices, and quotes.
type MarketHandler struct {
	markets *service.MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets *service.MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

// ListMarkets returns open markets, optionally scoped to ?arena=<id>.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	arenaID := r.URL.Query().Get("arena")
	markets, err := h.markets.ListOpen(r.Context(), arenaID, parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, markets)
}

// GetMarket returns one market with its options and current prices.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("id")
	m, options, err := h.markets.GetMarket(r.Context(), marketID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := map[string]any{
		"market":  m,
		"options": options,
	}
	// Numeric markets have no option pools to price.
	if len(options) > 0 {
		if prices, err := h.markets.Prices(r.Context(), marketID); err == nil {
			resp["prices"] = prices
		}
	}
	writeData(w, http.StatusOK, resp)
}

// GetPrices returns the implied probability of every option.
// GET /api/markets/{id}/prices
func (h *MarketHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.markets.Prices(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, prices)
}

// GetQuote prices a prospective bet: ?option=<id>&amount=<points>.
// GET /api/markets/{id}/quote
func (h *MarketHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	optionID := q.Get("option")
	amount, err := strconv.ParseInt(q.Get("amount"), 10, 64)
	if err != nil || optionID == "" {
		writeError(w, http.StatusBadRequest, "option and a numeric amount are required")
		return
	}

	quote, err := h.markets.GetQuote(r.Context(), r.PathValue("id"), optionID, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, quote)
}
