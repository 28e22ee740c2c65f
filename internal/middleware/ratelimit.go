package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/stacklane/stacklane/internal/auth"
	"github.com/stacklane/stacklane/internal/cache"
)

// Limiter checks token-bucket budgets. *cache.Cache implements it.
type Limiter interface {
	CheckKeyRateLimit(ctx context.Context, keyID string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
	CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*cache.RateLimitResult, error)
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter Limiter
	Enabled bool

	// KeyRPM is the per-minute budget of an authenticated API key.
	KeyRPM int
	// IPRPS is the per-second budget of an anonymous client IP.
	IPRPS int
	Burst int
}

// RateLimit returns middleware that limits authenticated callers per API
// key and everyone else per client IP. Must run after Auth. Limiter
// failures let the request through.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled || cfg.Limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				result *cache.RateLimitResult
				err    error
				limit  int
				kind   string
			)
			if keyID := auth.KeyIDFrom(r.Context()); keyID != "" && keyID != "local" {
				kind, limit = "key", cfg.KeyRPM
				result, err = cfg.Limiter.CheckKeyRateLimit(r.Context(), keyID, cfg.KeyRPM, cfg.Burst)
			} else {
				kind, limit = "ip", cfg.IPRPS
				result, err = cfg.Limiter.CheckIPRateLimit(r.Context(), clientIP(r), cfg.IPRPS, cfg.Burst)
			}
			if err != nil {
				cfg.Logger.Error("rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("type", kind),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, limit, result.Remaining, result.ResetAt)

			if !result.Allowed {
				retry := retrySeconds(result.RetryAfter)
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("type", kind),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int("retry_after_seconds", retry),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
					"Rate limit exceeded. Retry after "+strconv.Itoa(retry)+" seconds.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retrySeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	if limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

// clientIP strips the port from RemoteAddr. Proxy headers are resolved
// earlier by chi's RealIP middleware.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
