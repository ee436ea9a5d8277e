// Package notify delivers formatted donation announcements to every configured
// chat destination. Delivery is synchronous and ordered: a message is attempted
// on each destination in turn, each behind its own circuit breaker, and the
// caller learns which destinations failed.
package notify

import (
	"context"
)

// Channel is one chat destination (a Discord webhook, a Slack webhook, or a
// single Twitch chat room).
//
// Retry Policy Contract:
//   - Transient failures (5xx, network errors): retried by the transport (max 2 attempts)
//   - Rate limits (429): wait for retry_after, then retry
//   - Client errors (4xx except 429): no retry
//   - Context timeout: no retry
//
// Implementations must be safe for concurrent use and must mask secrets
// (webhook tokens, oauth tokens) in returned errors.
type Channel interface {
	// Name identifies the destination in logs, metrics labels and health output.
	Name() string

	// IsEnabled reports whether the destination is configured.
	// Disabled channels are skipped by the service.
	IsEnabled() bool

	// Send posts text to the destination.
	//
	// Returns:
	//   - nil: message accepted by the destination
	//   - ErrChannelDisabled: called on a disabled channel
	//   - ErrEmptyMessage: text is blank
	//   - transport errors wrapped with context
	Send(ctx context.Context, text string) error
}
