package notifier

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket shared by every send on one transport.
type RateLimiter struct {
	rate    rate.Limit
	burst   int
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter that sustains requestsPerSecond and allows
// up to burst requests back to back.
//
// Example:
//
//	limiter := NewRateLimiter(0.5, 3) // 30 req/min, burst of 3
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return newRateLimiter(rate.Limit(requestsPerSecond), burst)
}

// NewWindowRateLimiter creates a limiter that never admits more than messages
// sends in any window-long span. A bucket of burst tokens refilling at r can
// pass burst + r*window sends in one window, so a quarter of the allowance is
// kept as burst and the remainder refills evenly across the window.
//
// Example:
//
//	limiter := NewWindowRateLimiter(20, 30*time.Second) // Twitch chat: burst 5, then one per 2s
func NewWindowRateLimiter(messages int, window time.Duration) *RateLimiter {
	if messages <= 1 {
		return newRateLimiter(rate.Every(window), 1)
	}
	burst := max(messages/4, 1)
	return newRateLimiter(rate.Every(window/time.Duration(messages-burst)), burst)
}

func newRateLimiter(r rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		rate:    r,
		burst:   burst,
		limiter: rate.NewLimiter(r, burst),
	}
}

// Allow blocks until a token is available or the context is done.
//
// Returns:
//   - error: Non-nil if ctx was canceled or its deadline would pass before a token frees up
func (r *RateLimiter) Allow(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
