package tableau

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter paces REST API calls so a large site walk does not trip the
// server's request throttling.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a token bucket limiter.
// rps: requests per second; burst is twice the rate.
func NewRateLimiter(rps int) *RateLimiter {
	if rps <= 0 {
		rps = 10
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), rps*2),
	}
}

// Wait blocks until the rate limiter allows the next request.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow checks if a request is allowed without blocking.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}
