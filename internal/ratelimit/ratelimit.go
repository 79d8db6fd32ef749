// Package ratelimit paces outbound alert deliveries.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps a token bucket refilled at rps tokens per second
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing rps events per second with the given burst.
// Non-positive values fall back to one event per second and a burst of one.
func New(rps float64, burst int) *Limiter {
	if rps <= 0 {
		rps = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Allow takes a token if one is available without waiting
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// allowAt is Allow evaluated at a fixed instant
func (l *Limiter) allowAt(t time.Time) bool {
	return l.limiter.AllowN(t, 1)
}

// Wait blocks until a token is available or the context is done
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Rate returns the configured events per second
func (l *Limiter) Rate() float64 {
	return float64(l.limiter.Limit())
}

// Burst returns the bucket size
func (l *Limiter) Burst() int {
	return l.limiter.Burst()
}
