package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// localIdle is how long an unused bucket is kept.
const localIdle = 10 * time.Minute

// LocalLimiter is an in-process token bucket limiter for deployments
// without Redis. Budgets are per process, not shared across replicas.
type LocalLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*localBucket
	lastSweep time.Time
	now       func() time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter creates an empty LocalLimiter.
func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{
		buckets: make(map[string]*localBucket),
		now:     time.Now,
	}
}

// CheckKeyRateLimit applies a per-minute budget to an API key.
func (l *LocalLimiter) CheckKeyRateLimit(_ context.Context, keyID string, ratePerMinute, burst int) (*RateLimitResult, error) {
	if ratePerMinute <= 0 {
		return unlimited(burst), nil
	}
	return l.take(rateLimitKeyPrefix+keyID, rate.Limit(float64(ratePerMinute)/60.0), burst), nil
}

// CheckIPRateLimit applies a per-second budget to a client IP.
func (l *LocalLimiter) CheckIPRateLimit(_ context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	if ratePerSecond <= 0 {
		return unlimited(burst), nil
	}
	return l.take(rateLimitIPPrefix+hashIP(ip), rate.Limit(ratePerSecond), burst), nil
}

func (l *LocalLimiter) take(key string, limit rate.Limit, burst int) *RateLimitResult {
	now := l.now()

	l.mu.Lock()
	l.sweep(now)
	b, ok := l.buckets[key]
	if !ok || b.limiter.Limit() != limit || b.limiter.Burst() != burst {
		b = &localBucket{limiter: rate.NewLimiter(limit, burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		// burst of zero: nothing is ever allowed.
		return &RateLimitResult{ResetAt: now.Add(time.Minute), RetryAfter: time.Minute}
	}
	delay := r.DelayFrom(now)
	res := &RateLimitResult{
		Allowed:   delay == 0,
		ResetAt:   now.Add(time.Duration(float64(time.Second) / float64(limit))),
		Remaining: int64(b.limiter.TokensAt(now)),
	}
	if !res.Allowed {
		// A rejected request must not consume future tokens.
		r.CancelAt(now)
		res.Remaining = 0
		res.RetryAfter = delay
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	return res
}

// sweep drops idle buckets at most once per idle period. Callers hold mu.
func (l *LocalLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < localIdle {
		return
	}
	l.lastSweep = now
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > localIdle {
			delete(l.buckets, k)
		}
	}
}

// Len reports the number of live buckets.
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
