// Package notifier provides the chat transports that donation announcements are
// written to. It defines the Notifier interface which allows Discord and Slack
// webhooks and Twitch chat to be used interchangeably through dependency injection.
package notifier

import (
	"context"
)

// Notifier sends a plain-text message to one chat destination.
// Implementations handle rate limiting, retries, and error logging internally.
type Notifier interface {
	// NotifyText delivers text to the destination.
	//
	// Returns:
	//   - error: Non-nil if the message could not be delivered after all retry attempts
	NotifyText(ctx context.Context, text string) error
}
