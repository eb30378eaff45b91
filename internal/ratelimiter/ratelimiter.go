// Package ratelimiter throttles adapter requests with a token bucket built on
// golang.org/x/time/rate.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket shared by all requests of one adapter.
//
// A nil *RateLimiter admits everything, so callers can hold one
// unconditionally and leave it nil when limiting is disabled.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New returns a limiter sustaining requestsPerSecond with room for burst
// requests at once. A zero rate means unlimited.
func New(requestsPerSecond, burst uint) *RateLimiter {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond == 0 {
		limit = rate.Inf
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, int(burst))}
}

// Allow consumes one token if available. It never blocks.
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

// Unlimited reports whether the limiter admits every request.
func (r *RateLimiter) Unlimited() bool {
	return r == nil || r.limiter.Limit() == rate.Inf
}

// Tokens returns the tokens currently in the bucket. Monitoring only.
func (r *RateLimiter) Tokens() float64 {
	if r == nil {
		return 0
	}
	return r.limiter.Tokens()
}
