// Package middleware provides the HTTP middleware chain: request IDs,
// logging, panic recovery, security headers, CORS, authentication, rate
// limiting and request metrics.
package middleware

import (
	"encoding/json"
	"net/http"
)

// errorBody matches the error shape written by the handlers.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError writes a JSON error response. Middleware rejections happen
// before any handler runs, so they write the body themselves.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}
