// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes the relay's business metrics:
//   - Donations announced and their summed amounts
//   - Tiltify API latency and token refreshes
//   - Checkpoint query latency
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "donation-relay/internal/observability/metrics"
//
//	func announce(d *entity.Donation) {
//	    // ... deliver to destinations ...
//	    metrics.RecordDonationAnnounced(d.Amount.Value, d.Amount.Currency)
//	}
package metrics
