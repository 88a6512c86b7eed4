// Package ratelimiter throttles consumer connection admission using a
// token bucket.
//
// A misbehaving consumer that reconnects in a tight loop would otherwise
// replay the changelog backlog on every attempt and starve well-behaved
// consumers of authority bandwidth.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps golang.org/x/time/rate with the zero-means-unlimited
// convention used throughout the configuration.
//
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing the given sustained rate with the
// given burst capacity. A rate of zero disables limiting.
func New(perSecond, burst uint) *RateLimiter {
	if perSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = perSecond
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), int(burst)),
	}
}

// Allow reports whether one more event fits the limit, consuming a token
// when it does. The fast path for reject-rather-than-wait callers.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the current number of available tokens. Primarily useful
// for monitoring and tests; the value can change immediately after the
// call.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
