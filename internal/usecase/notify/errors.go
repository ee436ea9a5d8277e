package notify

import (
	"errors"
	"fmt"
)

// Sentinel errors for notify use case operations.
var (
	// ErrChannelDisabled indicates that Send() was called on a disabled channel.
	ErrChannelDisabled = errors.New("channel is disabled")

	// ErrEmptyMessage indicates an attempt to announce blank text.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNoChannels indicates that no destination is enabled.
	ErrNoChannels = errors.New("no notification channels enabled")

	// ErrCircuitBreakerOpen indicates that the circuit breaker is open for this channel
	// and messages are being rejected to prevent continuous failures.
	// The circuit breaker lets a probe through after its timeout.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open for this channel")
)

// ChannelError records which destination a delivery failed on.
type ChannelError struct {
	Channel string
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Channel, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// FailedChannels lists the destinations named by ChannelErrors inside err,
// which may be a join of several.
func FailedChannels(err error) []string {
	if err == nil {
		return nil
	}

	var names []string
	var walk func(error)
	walk = func(e error) {
		if chErr, ok := e.(*ChannelError); ok {
			names = append(names, chErr.Channel)
			return
		}
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		if inner := errors.Unwrap(e); inner != nil {
			walk(inner)
		}
	}
	walk(err)
	return names
}
