package notify

import (
	"context"
	"strings"
)

// twitchSender is the part of notifier.TwitchNotifier a chat room needs.
type twitchSender interface {
	SendToChannel(ctx context.Context, channel, text string) error
}

// TwitchChannel is one Twitch chat room. Rooms share a connection but each
// gets its own breaker and health entry.
type TwitchChannel struct {
	sender  twitchSender
	room    string
	enabled bool
}

// NewTwitchChannels returns one Channel per room, in the given order.
func NewTwitchChannels(sender twitchSender, rooms []string) []Channel {
	channels := make([]Channel, 0, len(rooms))
	for _, room := range rooms {
		channels = append(channels, &TwitchChannel{
			sender:  sender,
			room:    strings.ToLower(strings.TrimPrefix(room, "#")),
			enabled: sender != nil,
		})
	}
	return channels
}

// Name returns "twitch:#<room>".
func (c *TwitchChannel) Name() string {
	return "twitch:#" + c.room
}

// IsEnabled reports whether the room has a chat connection behind it.
func (c *TwitchChannel) IsEnabled() bool {
	return c.enabled
}

// Send writes text to the room. Twitch allows 20 messages per 30 seconds
// across all rooms; the shared notifier enforces that.
func (c *TwitchChannel) Send(ctx context.Context, text string) error {
	if !c.enabled {
		return ErrChannelDisabled
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	return c.sender.SendToChannel(ctx, c.room, text)
}
