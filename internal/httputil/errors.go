// Package httputil centralizes HTTP error handling for ambientlog. Every
// error response is logged with request context and returned as JSON so both
// the control page and API clients can parse it.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error writes a JSON error response and logs it with the request context.
// The reason is the client-facing message; err (optional) is logged only —
// it may contain filesystem paths or backend URLs that should not leak.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, reason string, err error) {
	attrs := []any{
		"status", status,
		"method", r.Method,
		"path", r.URL.Path,
		"remote", r.RemoteAddr,
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	logger.Error(reason, attrs...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error":  reason,
		"status": status,
	})
}

// MethodNotAllowed is the common 405 response for endpoints with one verb.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request, logger *slog.Logger, allowed string) {
	w.Header().Set("Allow", allowed)
	Error(w, r, logger, http.StatusMethodNotAllowed, "method not allowed", nil)
}

// JSON writes a 200 response with the given payload.
func JSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}
