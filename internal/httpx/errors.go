package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"go.uber.org/zap"
)

const (
	codeInvalidRequestBody = "invalid_request_body"
	codeValidation         = "validation_failed"
	codeNotFound           = "not_found"
	codeDateUnavailable    = "date_unavailable"
	codeInvalidTransition  = "invalid_transition"
	codeIdempotencyInUse   = "idempotency_in_flight"
	codeLockTimeout        = "lock_timeout"
	codeUnauthorized       = "unauthorized"
	codeRateLimited        = "rate_limited"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeDomainError maps the booking error taxonomy onto client responses.
// Anything unrecognized is logged and reported without detail.
func writeDomainError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, bookings.ErrValidation):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, bookings.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, bookings.ErrConflict):
		writeError(w, http.StatusConflict, codeDateUnavailable, err.Error())
	case errors.Is(err, bookings.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	case errors.Is(err, bookings.ErrIdempotencyInFlight):
		writeError(w, http.StatusConflict, codeIdempotencyInUse, err.Error())
	case errors.Is(err, bookings.ErrLockTimeout):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, codeLockTimeout, "date is busy, retry shortly")
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
