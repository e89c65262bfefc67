package resilience

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics is an optional OpenTelemetry instrument bundle shared by breakers
// and retry managers. The caller owns the meter provider; this package only
// records against the supplied meter.
type Metrics struct {
	calls       metric.Int64Counter
	transitions metric.Int64Counter
	retries     metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewMetrics creates the resilience instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	calls, err := meter.Int64Counter(
		"resilience.circuit.calls",
		metric.WithDescription("Calls executed through a circuit breaker"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		"resilience.circuit.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter(
		"resilience.retry.attempts",
		metric.WithDescription("Retry attempts performed"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"resilience.call.duration_ms",
		metric.WithDescription("Protected call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		calls:       calls,
		transitions: transitions,
		retries:     retries,
		duration:    duration,
	}, nil
}

func (m *Metrics) recordCall(ctx context.Context, name string, d time.Duration, failure bool) {
	outcome := "success"
	if failure {
		outcome = "failure"
	}
	opt := metric.WithAttributes(
		attribute.String("circuit.name", name),
		attribute.String("outcome", outcome),
	)
	m.calls.Add(ctx, 1, opt)
	m.duration.Record(ctx, float64(d.Milliseconds()), opt)
}

func (m *Metrics) recordTransition(name string, from, to State) {
	m.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("circuit.name", name),
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}

func (m *Metrics) recordRetry(ctx context.Context, attempt int) {
	m.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("attempt", attempt),
	))
}
