// Package tracing wraps the global OpenTelemetry tracer. Without a
// configured provider every span is a no-op.
package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationPrefix = "github.com/kcstrada/manufacturing-execution-system-sub001/"

// Tracer returns the tracer of a component, e.g. "bom" or "allocation"
func Tracer(component string) trace.Tracer {
	return otel.Tracer(instrumentationPrefix + component)
}

// End records err on the span, if any, and ends it
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
