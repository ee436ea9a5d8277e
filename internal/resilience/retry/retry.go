// Package retry runs an operation again after transient failures, with
// exponential backoff and jitter. The relay only retries where a short stall
// is acceptable: talking to the donation API before the first poll, and
// migrating the checkpoint schema.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"syscall"
	"time"

	"donation-relay/internal/observability/logging"
)

// Config describes one backoff schedule.
type Config struct {
	MaxAttempts    int           // calls in total, the first one included
	InitialDelay   time.Duration // wait after the first failure
	MaxDelay       time.Duration // ceiling before jitter
	Multiplier     float64
	JitterFraction float64 // 0.1 adds up to 10% on top of each wait
}

// TiltifyStartupConfig covers authentication, campaign lookup and watermark
// seeding. A rejected credential or unknown campaign is not retryable and
// aborts on the first attempt.
func TiltifyStartupConfig() Config {
	return Config{
		MaxAttempts:    5,
		InitialDelay:   2 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// DBConfig covers checkpoint schema setup.
func DBConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// next returns the wait after delay, capped at MaxDelay.
func (c Config) next(delay time.Duration) time.Duration {
	grown := time.Duration(float64(delay) * c.Multiplier)
	if grown > c.MaxDelay {
		grown = c.MaxDelay
	}
	return addJitter(grown, c.JitterFraction)
}

// WithBackoff calls fn until it returns nil or a non-retryable error, the
// attempts run out, or ctx is done. Retries are logged on the logger carried
// by ctx with the error masked.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	logger := logging.FromContext(ctx)
	delay := cfg.InitialDelay

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retry", slog.Int("attempt", attempt))
			}
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, err)
		}

		logger.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.Duration("delay", delay),
			slog.String("error", logging.SanitizeError(err)))

		if waitErr := sleep(ctx, delay); waitErr != nil {
			return fmt.Errorf("retry aborted: %w", waitErr)
		}
		delay = cfg.next(delay)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StatusCoder is implemented by errors that carry the HTTP status of the
// response that caused them. Zero means no response arrived.
type StatusCoder interface {
	HTTPStatus() int
}

// IsRetryable reports whether err looks transient: a network timeout, a
// refused or reset connection, or a 5xx, 408 or 429 response. Context
// cancellation never is.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ETIMEDOUT), errors.Is(err, syscall.ENETUNREACH):
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		status := sc.HTTPStatus()
		return status >= 500 && status < 600 ||
			status == http.StatusTooManyRequests ||
			status == http.StatusRequestTimeout
	}
	return false
}

// addJitter stretches d by a random share of up to fraction (capped at 1).
func addJitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}
	fraction = min(fraction, 1.0)
	// #nosec G404 -- jitter does not need a cryptographic source
	return d + time.Duration(rand.Float64()*float64(d)*fraction)
}
