// Package resilience provides fault tolerance patterns for the relay.
//
// Subpackages:
//   - circuitbreaker: per-destination and database breakers (sony/gobreaker)
//   - retry: exponential backoff with jitter for startup and database calls
//
// The poll cycle itself does not use retry: its single token refresh and
// re-fetch are handled explicitly by the poller.
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.ChatDeliveryConfig("discord"))
//	err := cb.Run(func() error {
//	    return channel.Send(ctx, text)
//	})
//
//	err = retry.WithBackoff(ctx, retry.TiltifyStartupConfig(), func() error {
//	    return seed(ctx)
//	})
package resilience
