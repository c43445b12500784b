package gdrive

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Drive rate limit defaults. Google allows 10 requests per second per user.
const (
	DefaultRequestsPerSecond = 8.0
	DefaultBurst             = 10
	defaultBackoff           = 60 * time.Second
)

// RateLimiter throttles Drive requests with a token bucket and backs off
// after a 429 response.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a limiter. A non-positive rps uses the default.
func NewRateLimiter(rps float64) *RateLimiter {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), DefaultBurst)}
}

// Wait blocks until a request can be made, honouring any backoff.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordRateLimitError sets a backoff period. Zero uses 60 seconds.
func (r *RateLimiter) RecordRateLimitError(retryAfterSeconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	backoff := defaultBackoff
	if retryAfterSeconds > 0 {
		backoff = time.Duration(retryAfterSeconds) * time.Second
	}
	r.retryAt = time.Now().Add(backoff)
}
