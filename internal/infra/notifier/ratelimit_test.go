package notifier

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name      string
		limiter   *RateLimiter
		immediate int
	}{
		{name: "per second limiter grants its burst", limiter: NewRateLimiter(1.0, 3), immediate: 3},
		{name: "window limiter grants its burst", limiter: NewWindowRateLimiter(20, 30*time.Second), immediate: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()

			start := time.Now()
			for i := 0; i < tt.immediate; i++ {
				if err := tt.limiter.Allow(ctx); err != nil {
					t.Fatalf("request %d should pass immediately: %v", i+1, err)
				}
			}
			if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
				t.Errorf("burst took %v, want under 100ms", elapsed)
			}

			// The next token is at least a second away for both limiters.
			waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()

			if err := tt.limiter.Allow(waitCtx); err == nil {
				t.Error("expected request beyond the burst to be held back")
			}
		})
	}

	t.Run("cancellation releases a waiting caller", func(t *testing.T) {
		limiter := NewRateLimiter(0.1, 1)
		if err := limiter.Allow(context.Background()); err != nil {
			t.Fatalf("first request should succeed: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := limiter.Allow(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestNewWindowRateLimiter(t *testing.T) {
	tests := []struct {
		messages  int
		window    time.Duration
		wantBurst int
	}{
		{messages: 20, window: 30 * time.Second, wantBurst: 5},
		{messages: 100, window: 30 * time.Second, wantBurst: 25},
		{messages: 3, window: time.Minute, wantBurst: 1},
	}

	for _, tt := range tests {
		limiter := NewWindowRateLimiter(tt.messages, tt.window)

		if limiter.burst != tt.wantBurst {
			t.Errorf("NewWindowRateLimiter(%d, %v) burst = %d, want %d", tt.messages, tt.window, limiter.burst, tt.wantBurst)
		}
		// The most a full bucket can pass in one window.
		worst := float64(limiter.burst) + float64(limiter.rate)*tt.window.Seconds()
		if worst > float64(tt.messages)+1e-9 {
			t.Errorf("NewWindowRateLimiter(%d, %v) admits up to %.2f sends per window", tt.messages, tt.window, worst)
		}
	}
}
