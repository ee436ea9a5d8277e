package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the global tracer instance for the donation relay.
var tracer = otel.Tracer("donation-relay")

// GetTracer returns the global tracer for creating spans.
// This tracer can be used throughout the application to create new spans.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "poll.cycle")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}
