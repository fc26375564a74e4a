package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cardbudget/internal/core"
	"cardbudget/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		verr *core.ValidationError
		nerr *core.NotFoundError
		derr *core.DuplicateMonthError
		cerr *core.CycleComputationError
		lerr *core.LimitExceededError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &nerr):
		return http.StatusNotFound
	case errors.As(err, &derr):
		return http.StatusConflict
	case errors.As(err, &cerr), errors.As(err, &lerr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and writes {"error": ...}. Internal
// errors are logged and their text is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var verr *core.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}

	logger := log.FromContext(r.Context())
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", "error", err)
		resp.Error = "internal error"
	} else {
		logger.DebugContext(r.Context(), "Request rejected", "status_code", status, "error", err)
	}
	writeJSON(w, status, resp)
}
