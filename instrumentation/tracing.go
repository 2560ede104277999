package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span and metric attribute keys.
//
// Never record actual credential values (access tokens, refresh tokens,
// authorization codes, client secrets) in traces or metrics, only metadata
// such as operation names, outcomes, and error codes.
const (
	AttrOperation = "blitzware.operation" // protocol operation name
	AttrOutcome   = "blitzware.outcome"   // "success" or "failure"
	AttrDecision  = "blitzware.decision"  // middleware decision
	AttrSuccess   = "blitzware.success"   // boolean outcome
	AttrErrorCode = "blitzware.error"     // structured error code
	AttrUserID    = "blitzware.user_id"   // user identifier (non-secret)
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanError sets an error status on a span (nil-safe)
func SetSpanError(span trace.Span, message string) {
	if span != nil {
		span.SetStatus(codes.Error, message)
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}
