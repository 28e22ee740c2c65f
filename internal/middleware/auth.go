package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stacklane/stacklane/internal/auth"
	"github.com/stacklane/stacklane/internal/model"
)

// Authenticator resolves a presented API key to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, plaintext string) (*model.Principal, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger

	// Enabled turns key checking on. When false every request runs as
	// model.LocalPrincipal.
	Enabled bool
	Keys    Authenticator

	// MinDuration pads failed attempts so response timing does not reveal
	// which check rejected the key.
	MinDuration time.Duration
}

// Auth returns a middleware that authenticates API requests and attaches
// the principal to the request context. Failures answer 401.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), model.LocalPrincipal())))
				return
			}

			start := time.Now()
			principal, reason := authenticate(r, cfg.Keys)
			if principal == nil {
				if wait := cfg.MinDuration - time.Since(start); wait > 0 {
					time.Sleep(wait)
				}
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("key_id", principal.KeyID),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

func authenticate(r *http.Request, keys Authenticator) (*model.Principal, string) {
	key := extractAPIKey(r)
	if key == "" {
		return nil, "missing_key"
	}
	if keys == nil {
		return nil, "no_keys_configured"
	}
	p, err := keys.Authenticate(r.Context(), key)
	if err != nil {
		return nil, "invalid_key"
	}
	return p, ""
}

// extractAPIKey reads "Authorization: Bearer <key>" or "X-API-Key: <key>".
func extractAPIKey(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// writeAuthError uses one message for all failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing API key")
}
