package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	MetricTotal    = "auth.signin.total"
	MetricErrors   = "auth.signin.errors"
	MetricDuration = "auth.signin.duration_ms"
)

// Metrics records authentication outcomes.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	RecordOperation(ctx context.Context, op Operation, duration time.Duration, err error)
}

type otelMetrics struct {
	total    metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates the auth.signin.* instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	total, err := meter.Int64Counter(MetricTotal,
		metric.WithDescription("Authentication operations started"),
		metric.WithUnit("{operation}"))
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter(MetricErrors,
		metric.WithDescription("Authentication operations that failed"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Authentication operation duration in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &otelMetrics{total: total, errors: errs, duration: duration}, nil
}

func (m *otelMetrics) RecordOperation(ctx context.Context, op Operation, d time.Duration, err error) {
	opt := metric.WithAttributes(op.attributes()...)
	m.total.Add(ctx, 1, opt)
	if err != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(append(op.attributes(), attribute.Bool("auth.error", true))...))
	}
	m.duration.Record(ctx, float64(d.Microseconds())/1000, opt)
}
