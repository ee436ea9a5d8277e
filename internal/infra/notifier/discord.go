package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// maxDiscordContentLength is Discord's limit for a message's content field.
const maxDiscordContentLength = 2000

// DiscordConfig contains configuration for Discord webhook notifications.
type DiscordConfig struct {
	// Enabled indicates whether Discord notifications are enabled
	Enabled bool

	// WebhookURL is the Discord webhook URL (includes authentication token)
	WebhookURL string

	// Timeout is the HTTP request timeout for Discord API calls
	Timeout time.Duration
}

// DiscordNotifier posts plain-text messages to a Discord channel via webhook.
type DiscordNotifier struct {
	config  DiscordConfig
	webhook *webhookClient
}

// NewDiscordNotifier creates a new DiscordNotifier with the specified configuration.
//
// The notifier is initialized with:
//   - HTTP client with configured timeout
//   - Rate limiter set to 0.5 requests/second with burst of 3
//     (Discord Webhook limit: 30 requests per minute = 0.5 req/s)
//   - Two attempts per message, 5s base delay between transient failures
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		config: config,
		webhook: &webhookClient{
			service:     "discord",
			url:         config.WebhookURL,
			httpClient:  &http.Client{Timeout: config.Timeout},
			rateLimiter: NewRateLimiter(0.5, 3),
			logger:      slog.Default(),
			maxAttempts: 2,
			baseDelay:   5 * time.Second,
			retryAfter:  extractRetryAfter,
		},
	}
}

// DiscordWebhookPayload represents the JSON payload sent to Discord webhook.
type DiscordWebhookPayload struct {
	Content         string                 `json:"content"`
	AllowedMentions DiscordAllowedMentions `json:"allowed_mentions"`
}

// DiscordAllowedMentions controls which mentions in content ping anyone.
// An empty Parse list keeps donor comments from pinging @everyone or roles.
type DiscordAllowedMentions struct {
	Parse []string `json:"parse"`
}

// DiscordErrorResponse represents an error response from Discord API.
type DiscordErrorResponse struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"` // Seconds to wait before retrying (for 429 errors)
	Global     bool    `json:"global"`
}

// buildPayload wraps text in a webhook payload, truncated to Discord's limit.
func (d *DiscordNotifier) buildPayload(text string) DiscordWebhookPayload {
	return DiscordWebhookPayload{
		Content:         truncateText(text, maxDiscordContentLength, "..."),
		AllowedMentions: DiscordAllowedMentions{Parse: []string{}},
	}
}

// extractRetryAfter extracts retry_after duration from Discord error response.
// It tries to parse from JSON body first, then falls back to Retry-After header.
//
// Returns:
//   - time.Duration: Retry after duration (default 5s if not found)
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var discordErr DiscordErrorResponse
	if err := json.Unmarshal(body, &discordErr); err == nil && discordErr.RetryAfter > 0 {
		return time.Duration(discordErr.RetryAfter * float64(time.Second))
	}

	if d, ok := retryAfterHeader(resp); ok {
		return d
	}

	return defaultRetryAfter
}

// NotifyText posts text to the Discord channel. This method implements the Notifier interface.
//
// It performs the following steps:
//  1. Generate unique request_id for tracing
//  2. Apply rate limiting to prevent API abuse
//  3. Send webhook request with retry logic
func (d *DiscordNotifier) NotifyText(ctx context.Context, text string) error {
	requestID := uuid.New().String()
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	if err := d.webhook.rateLimiter.Allow(ctx); err != nil {
		d.webhook.logger.Error("Rate limiter error",
			slog.String("service", "discord"),
			slog.String("request_id", requestID),
			slog.Any("error", err))
		return fmt.Errorf("rate limiter error: %w", err)
	}

	return d.webhook.postWithRetry(ctx, d.buildPayload(text))
}
