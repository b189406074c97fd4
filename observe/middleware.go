package observe

import (
	"context"
	"time"
)

// Middleware wraps authentication operations with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware from its parts.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// MiddlewareFromObserver creates a Middleware using obs' tracer, meter and logger.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Run executes fn inside a span for op.
func (m *Middleware) Run(ctx context.Context, op Operation, fn func(ctx context.Context) error) error {
	if op.Name == "" {
		return ErrMissingOperationName
	}

	ctx, span := m.tracer.StartSpan(ctx, op)
	start := time.Now()

	err := fn(ctx)

	d := time.Since(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordOperation(ctx, op, d, err)

	log := m.logger.WithOperation(op)
	if err != nil {
		log.Error(ctx, op.Name+" failed", F("duration_ms", d.Milliseconds()), F("error", err))
	} else {
		log.Info(ctx, op.Name+" completed", F("duration_ms", d.Milliseconds()))
	}
	return err
}
