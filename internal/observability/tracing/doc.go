// Package tracing provides OpenTelemetry tracing integration.
//
// Spans are created through the global tracer provider. No exporter is
// configured by default, so spans are dropped unless the process installs a
// provider. Tests install an in-memory recorder from the OTel SDK.
//
// Span names used by the relay:
//   - poll.cycle: one poll cycle
//   - tiltify.list_donations: the donations request
//   - notify.deliver: fan-out of one announcement
package tracing
