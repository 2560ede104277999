package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the SDK
type Metrics struct {
	// Protocol round trips to the authorization service
	RoundTripsTotal   metric.Int64Counter
	RoundTripDuration metric.Float64Histogram

	// Flow metrics
	LoginsStarted      metric.Int64Counter
	CallbacksProcessed metric.Int64Counter
	TokensRefreshed    metric.Int64Counter

	// Middleware decisions (attach, redirect_login, server_error)
	AuthDecisions metric.Int64Counter
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	clientMeter := inst.Meter("client")
	handlerMeter := inst.Meter("handler")

	var err error
	m.RoundTripsTotal, err = clientMeter.Int64Counter(
		"blitzware.client.round_trips.total",
		metric.WithDescription("Total number of protocol round trips to the authorization service"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create round_trips.total counter: %w", err)
	}

	m.RoundTripDuration, err = clientMeter.Float64Histogram(
		"blitzware.client.round_trip.duration",
		metric.WithDescription("Protocol round trip duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create round_trip.duration histogram: %w", err)
	}

	m.LoginsStarted, err = handlerMeter.Int64Counter(
		"blitzware.login.started",
		metric.WithDescription("Number of login flows initiated"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create login.started counter: %w", err)
	}

	m.CallbacksProcessed, err = handlerMeter.Int64Counter(
		"blitzware.callback.processed",
		metric.WithDescription("Number of authorization callbacks processed"),
		metric.WithUnit("{callback}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create callback.processed counter: %w", err)
	}

	m.TokensRefreshed, err = handlerMeter.Int64Counter(
		"blitzware.token.refreshed",
		metric.WithDescription("Number of access token refreshes attempted by the middleware"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.refreshed counter: %w", err)
	}

	m.AuthDecisions, err = handlerMeter.Int64Counter(
		"blitzware.auth.decisions",
		metric.WithDescription("Authentication middleware decisions by outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth.decisions counter: %w", err)
	}

	return m, nil
}

// RecordRoundTrip records one protocol round trip (nil-safe)
func (m *Metrics) RecordRoundTrip(ctx context.Context, operation string, err error, started time.Time) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrOperation, operation),
		attribute.String(AttrOutcome, outcome),
	)
	m.RoundTripsTotal.Add(ctx, 1, attrs)
	m.RoundTripDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)
}

// RecordLoginStarted records one initiated login flow (nil-safe)
func (m *Metrics) RecordLoginStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.LoginsStarted.Add(ctx, 1)
}

// RecordCallback records one processed callback (nil-safe)
func (m *Metrics) RecordCallback(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.CallbacksProcessed.Add(ctx, 1, metric.WithAttributes(attribute.Bool(AttrSuccess, success)))
}

// RecordRefresh records one middleware-driven token refresh attempt (nil-safe)
func (m *Metrics) RecordRefresh(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.TokensRefreshed.Add(ctx, 1, metric.WithAttributes(attribute.Bool(AttrSuccess, success)))
}

// RecordAuthDecision records one middleware decision (nil-safe)
func (m *Metrics) RecordAuthDecision(ctx context.Context, decision string) {
	if m == nil {
		return
	}
	m.AuthDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrDecision, decision)))
}
