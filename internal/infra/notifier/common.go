package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"donation-relay/internal/observability/logging"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const requestIDKey contextKey = "request_id"

const (
	// defaultRetryAfter is used when a 429 response carries no usable hint.
	defaultRetryAfter = 5 * time.Second

	// maxResponseBody bounds how much of an error response is kept.
	maxResponseBody = 4 << 10
)

// Common webhook error types used by Discord and Slack notifiers

// RateLimitError represents a 429 rate limit error from a webhook service.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string // Optional custom message
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// HTTPStatus returns 429.
func (e *RateLimitError) HTTPStatus() int { return http.StatusTooManyRequests }

// ClientError represents a 4xx client error from a webhook service.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// HTTPStatus returns the response status code.
func (e *ClientError) HTTPStatus() int { return e.StatusCode }

// ServerError represents a 5xx server error from a webhook service.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// HTTPStatus returns the response status code.
func (e *ServerError) HTTPStatus() int { return e.StatusCode }

// is429Error checks if the error is a rate limit error and extracts retry_after.
func is429Error(err error) (*RateLimitError, bool) {
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr, true
	}
	return nil, false
}

// isRetryableError checks if the error is worth retrying (5xx server errors, network errors).
// Client errors (4xx) are not retryable except for rate limits (429).
func isRetryableError(err error) bool {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return true
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return false
	}

	// Rate limit errors are handled by is429Error
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return false
	}

	// Canceled callers are not retried
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Network errors, timeouts, etc. are retryable
	return true
}

// truncateText shortens text to at most maxRunes runes, appending suffix when cut.
// It never splits a multi-byte character.
func truncateText(text string, maxRunes int, suffix string) string {
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	keep := maxRunes - utf8.RuneCountInString(suffix)
	if keep < 0 {
		keep = 0
	}

	runes := []rune(text)
	return string(runes[:keep]) + suffix
}

// webhookClient posts JSON payloads to a chat webhook and classifies the response.
// Discord and Slack share it; they differ only in payload shape and limits.
type webhookClient struct {
	service     string
	url         string
	httpClient  *http.Client
	rateLimiter *RateLimiter
	logger      *slog.Logger

	maxAttempts int
	baseDelay   time.Duration

	// retryAfter derives the backoff from a 429 response.
	retryAfter func(resp *http.Response, body []byte) time.Duration
}

// post sends one request and maps the response onto the webhook error types.
func (w *webhookClient) post(ctx context.Context, payload any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("execute http request: %w", ctxErr)
		}
		// The URL embeds the webhook secret and net/http echoes it in errors.
		return fmt.Errorf("execute http request: %s", logging.SanitizeError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			Message:    fmt.Sprintf("%s rate limit exceeded", w.service),
			RetryAfter: w.retryAfter(resp, body),
		}
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API client error: %s", w.service, string(body)),
		}
	}

	if resp.StatusCode >= 500 {
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API server error: %s", w.service, string(body)),
		}
	}

	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

// postWithRetry sends the payload, retrying 429 and transient failures.
//
// Retry strategy:
//   - 429 errors: wait for the service supplied retry_after
//   - Server errors (5xx) and network errors: linear backoff (baseDelay * attempt)
//   - Client errors (4xx): no retry, fail immediately
func (w *webhookClient) postWithRetry(ctx context.Context, payload any) error {
	requestID, _ := ctx.Value(requestIDKey).(string)
	logger := w.logger.With(
		slog.String("service", w.service),
		slog.String("request_id", requestID))

	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := w.post(ctx, payload)
		if err == nil {
			logger.Info("Webhook notification successful", slog.Int("attempt", attempt))
			return nil
		}

		lastErr = err

		if rateLimitErr, ok := is429Error(err); ok {
			if attempt == w.maxAttempts {
				break
			}
			logger.Warn("Webhook rate limit hit, backing off",
				slog.Duration("retry_after", rateLimitErr.RetryAfter),
				slog.Int("attempt", attempt))

			if err := sleepCtx(ctx, rateLimitErr.RetryAfter); err != nil {
				return fmt.Errorf("context canceled during rate limit backoff: %w", err)
			}
			continue
		}

		if !isRetryableError(err) {
			logger.Error("Webhook notification failed with non-retryable error",
				slog.Any("error", err),
				slog.Int("attempt", attempt))
			return err
		}

		if attempt < w.maxAttempts {
			delay := w.baseDelay * time.Duration(attempt)
			logger.Warn("Webhook request failed, retrying",
				slog.Any("error", err),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))

			if err := sleepCtx(ctx, delay); err != nil {
				return fmt.Errorf("context canceled during retry backoff: %w", err)
			}
		}
	}

	logger.Error("Webhook notification failed after all retries",
		slog.Any("error", lastErr),
		slog.Int("max_attempts", w.maxAttempts))

	return fmt.Errorf("%s notification failed after %d attempts: %w", w.service, w.maxAttempts, lastErr)
}

// retryAfterHeader reads a Retry-After header given in whole seconds.
func retryAfterHeader(resp *http.Response) (time.Duration, bool) {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
