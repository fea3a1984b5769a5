package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/predictarena/ledger/internal/domain"
	"github.com/predictarena/ledger/internal/server/middleware"
)

// envelope is the JSON response shape shared by every endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// writeData sends a success envelope with the given HTTP status code.
func writeData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, envelope{Success: true, Data: v})
}

// writeError sends a failure envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

// writeDomainError maps a domain error to its HTTP status and sends a
// failure envelope. Unrecognized errors become an opaque 500.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"

	for sentinel, code := range statusByError {
		if errors.Is(err, sentinel) {
			status = code
			msg = sentinel.Error()
			break
		}
	}
	writeError(w, status, msg)
}

// statusByError maps domain sentinels to HTTP status codes. State conflicts
// use 409; validation failures 400.
var statusByError = map[error]int{
	domain.ErrInvalidInput:      http.StatusBadRequest,
	domain.ErrInvalidOption:     http.StatusBadRequest,
	domain.ErrInvalidResolution: http.StatusBadRequest,
	domain.ErrUnauthorized:      http.StatusForbidden,
	domain.ErrNotFound:          http.StatusNotFound,
	domain.ErrReceiverNotFound:  http.StatusNotFound,
	domain.ErrMarketClosed:      http.StatusConflict,
	domain.ErrMarketExpired:     http.StatusConflict,
	domain.ErrInsufficientFunds: http.StatusConflict,
	domain.ErrBetLimit:          http.StatusConflict,
	domain.ErrAlreadyResolved:   http.StatusConflict,
	domain.ErrTransfersDisabled: http.StatusConflict,
	domain.ErrTransferLimit:     http.StatusConflict,
	domain.ErrSelfTransfer:      http.StatusConflict,
	domain.ErrReceiverNotMember: http.StatusConflict,
	domain.ErrRateLimited:       http.StatusTooManyRequests,
}

// writeJSON marshals v and writes it with the given status. If marshaling
// fails, it falls back to a plain 500 envelope.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"success":false,"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// callerID returns the identity set by the edge, or "" when absent.
func callerID(r *http.Request) string {
	return middleware.UserIDFrom(r.Context())
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}
