package notify

import (
	"context"
	"strings"

	"donation-relay/internal/infra/notifier"
)

// WebhookChannel is a destination reached through a single webhook URL.
// Discord and Slack differ only in the notifier behind it.
type WebhookChannel struct {
	name     string
	notifier notifier.Notifier
	enabled  bool
}

// NewDiscordChannel returns the "discord" destination. A disabled config
// yields a channel that rejects every send.
func NewDiscordChannel(config notifier.DiscordConfig) *WebhookChannel {
	if !config.Enabled {
		return &WebhookChannel{name: "discord"}
	}
	return &WebhookChannel{name: "discord", notifier: notifier.NewDiscordNotifier(config), enabled: true}
}

// NewSlackChannel returns the "slack" destination.
func NewSlackChannel(config notifier.SlackConfig) *WebhookChannel {
	if !config.Enabled {
		return &WebhookChannel{name: "slack"}
	}
	return &WebhookChannel{name: "slack", notifier: notifier.NewSlackNotifier(config), enabled: true}
}

func (c *WebhookChannel) Name() string { return c.name }

func (c *WebhookChannel) IsEnabled() bool { return c.enabled }

// Send posts text to the webhook. Rate limiting and retries live in the
// notifier.
func (c *WebhookChannel) Send(ctx context.Context, text string) error {
	if !c.enabled {
		return ErrChannelDisabled
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	return c.notifier.NotifyText(ctx, text)
}
