// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the relay.
//
// Key features:
//   - JSON and text output formats (LOG_FORMAT)
//   - Configurable log levels (LOG_LEVEL)
//   - Per-cycle logger propagation through context
//   - Masking of credentials in error messages (SanitizeError)
//
// Example usage:
//
//	logger := logging.NewFromEnv()
//	ctx = logging.WithLogger(ctx, logging.WithCycleID(logger, cycleID))
//	logging.FromContext(ctx).Info("cycle started")
package logging
