// Package observability provides the relay's observability infrastructure
// including structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// Subpackages:
//   - logging: Structured logging utilities with slog and credential masking
//   - metrics: Prometheus business metrics
//   - tracing: OpenTelemetry tracer access
//
// Example usage:
//
//	import (
//	    "donation-relay/internal/observability/logging"
//	    "donation-relay/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewFromEnv()
//	    logger.Info("relay started")
//
//	    metrics.RecordDonationsBelowMinimum(2)
//	}
package observability
