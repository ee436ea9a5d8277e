package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// maxSlackTextLength keeps messages well under Slack's 40k character ceiling,
// past which Slack truncates on its own.
const maxSlackTextLength = 4000

// SlackConfig contains configuration for Slack webhook notifications.
type SlackConfig struct {
	// Enabled indicates whether Slack notifications are enabled
	Enabled bool

	// WebhookURL is the Slack incoming webhook URL (includes authentication token)
	WebhookURL string

	// Timeout is the HTTP request timeout for Slack API calls
	Timeout time.Duration
}

// SlackNotifier posts plain-text messages to a Slack channel via incoming webhook.
type SlackNotifier struct {
	config  SlackConfig
	webhook *webhookClient
}

// NewSlackNotifier creates a new SlackNotifier with the specified configuration.
// Slack allows roughly one message per second per webhook, so the limiter is 1 req/s
// with no burst.
func NewSlackNotifier(config SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		config: config,
		webhook: &webhookClient{
			service:     "slack",
			url:         config.WebhookURL,
			httpClient:  &http.Client{Timeout: config.Timeout},
			rateLimiter: NewRateLimiter(1.0, 1),
			logger:      slog.Default(),
			maxAttempts: 2,
			baseDelay:   5 * time.Second,
			retryAfter:  slackRetryAfter,
		},
	}
}

// SlackWebhookPayload represents the JSON payload sent to Slack webhook.
type SlackWebhookPayload struct {
	Text string `json:"text"`
}

func (s *SlackNotifier) buildPayload(text string) SlackWebhookPayload {
	return SlackWebhookPayload{Text: truncateText(text, maxSlackTextLength, "...")}
}

// slackRetryAfter reads the Retry-After header Slack sends with 429 responses.
func slackRetryAfter(resp *http.Response, _ []byte) time.Duration {
	if d, ok := retryAfterHeader(resp); ok {
		return d
	}
	return defaultRetryAfter
}

// NotifyText posts text to the Slack channel. This method implements the Notifier interface.
func (s *SlackNotifier) NotifyText(ctx context.Context, text string) error {
	requestID := uuid.New().String()
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	if err := s.webhook.rateLimiter.Allow(ctx); err != nil {
		s.webhook.logger.Error("Rate limiter error",
			slog.String("service", "slack"),
			slog.String("request_id", requestID),
			slog.Any("error", err))
		return fmt.Errorf("rate limiter error: %w", err)
	}

	return s.webhook.postWithRetry(ctx, s.buildPayload(text))
}
