package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stacklane/stacklane/internal/auth"
	"github.com/stacklane/stacklane/internal/cache"
	"github.com/stacklane/stacklane/internal/model"
)

type fakeLimiter struct {
	allowed bool
	err     error
	keyIDs  []string
	ips     []string
}

func (f *fakeLimiter) CheckKeyRateLimit(_ context.Context, keyID string, rate, burst int) (*cache.RateLimitResult, error) {
	f.keyIDs = append(f.keyIDs, keyID)
	return f.result()
}

func (f *fakeLimiter) CheckIPRateLimit(_ context.Context, ip string, rate, burst int) (*cache.RateLimitResult, error) {
	f.ips = append(f.ips, ip)
	return f.result()
}

func (f *fakeLimiter) result() (*cache.RateLimitResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &cache.RateLimitResult{
		Allowed:    f.allowed,
		Remaining:  3,
		ResetAt:    time.Now().Add(time.Second),
		RetryAfter: 1500 * time.Millisecond,
	}, nil
}

func serveLimited(limiter *fakeLimiter, principal *model.Principal) *httptest.ResponseRecorder {
	mw := RateLimit(RateLimitConfig{
		Logger:  discardLogger,
		Limiter: limiter,
		Enabled: true,
		KeyRPM:  600,
		IPRPS:   20,
		Burst:   5,
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	if principal != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), principal))
	}
	rec := httptest.NewRecorder()
	mw(principalEcho).ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_PerKey(t *testing.T) {
	limiter := &fakeLimiter{allowed: true}
	rec := serveLimited(limiter, &model.Principal{KeyID: "key_abc123"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(limiter.keyIDs) != 1 || limiter.keyIDs[0] != "key_abc123" || len(limiter.ips) != 0 {
		t.Errorf("expected one key check, got keys=%v ips=%v", limiter.keyIDs, limiter.ips)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "600" {
		t.Errorf("X-RateLimit-Limit = %q", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimit_LocalPrincipalUsesIP(t *testing.T) {
	limiter := &fakeLimiter{allowed: true}
	serveLimited(limiter, model.LocalPrincipal())

	if len(limiter.ips) != 1 || limiter.ips[0] != "203.0.113.7" {
		t.Errorf("expected IP check for 203.0.113.7, got %v", limiter.ips)
	}
}

func TestRateLimit_Rejected(t *testing.T) {
	rec := serveLimited(&fakeLimiter{allowed: false}, nil)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "2" {
		t.Errorf("Retry-After = %q, want 2", rec.Header().Get("Retry-After"))
	}
	if !strings.Contains(rec.Body.String(), `"code":"RATE_LIMITED"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	rec := serveLimited(&fakeLimiter{err: errors.New("redis down")}, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	limiter := &fakeLimiter{}
	mw := RateLimit(RateLimitConfig{Logger: discardLogger, Limiter: limiter})
	rec := httptest.NewRecorder()
	mw(principalEcho).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK || len(limiter.ips)+len(limiter.keyIDs) != 0 {
		t.Errorf("disabled limiter should not be consulted")
	}
}

func TestRateLimit_LocalLimiter(t *testing.T) {
	mw := RateLimit(RateLimitConfig{
		Logger:  discardLogger,
		Limiter: cache.NewLocalLimiter(),
		Enabled: true,
		IPRPS:   1,
		Burst:   2,
	})
	h := mw(principalEcho)

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
		req.RemoteAddr = "198.51.100.4:40000"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("status codes = %v, want [200 200 429]", codes)
	}
	if got := last.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
}
