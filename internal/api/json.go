package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/teemow/recircuit/internal/logging"
)

// MaxJSONBodyBytes bounds JSON request bodies.
const MaxJSONBodyBytes = 1 << 20

// ErrorResponse is the JSON body of an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	SetSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to encode JSON response", logging.Err(err))
	}
}

// WriteError writes err as {"error": ...}. Causes of 5xx errors are logged.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := AsError(err, "Internal server error")
	if apiErr.Status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int(logging.KeyStatus, apiErr.Status),
			logging.Err(apiErr.Err))
	}
	WriteJSON(w, apiErr.Status, ErrorResponse{Error: apiErr.Message})
}

// DecodeJSON decodes a bounded JSON request body into v.
// An empty body decodes into the zero value.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	default:
		return ErrBadRequest("Invalid JSON body").Wrap(fmt.Errorf("decode request: %w", err))
	}
}

// SetSecurityHeaders sets security headers on API responses.
func SetSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
}
