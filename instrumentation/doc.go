// Package instrumentation provides optional OpenTelemetry metrics and tracing
// for the blitzware SDK. When disabled (or when no Instrumentation is
// configured at all) every operation is a no-op, so the SDK carries zero
// observability overhead by default.
package instrumentation
