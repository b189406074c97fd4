package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type harness struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	logs   *bytes.Buffer
	mw     *Middleware
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	logs := &bytes.Buffer{}
	return &harness{
		spans:  spans,
		reader: reader,
		logs:   logs,
		mw:     NewMiddleware(NewTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter("info", logs)),
	}
}

func (h *harness) collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	if m == nil {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMiddleware_Success(t *testing.T) {
	h := newHarness(t)
	op := Operation{Name: "signin", Provider: "internet_identity"}

	if err := h.mw.Run(context.Background(), op, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	spans := h.spans.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name() != "auth.signin.internet_identity" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", spans[0].Status().Code)
	}

	rm := h.collect(t)
	if got := sumValue(t, findMetric(rm, MetricTotal)); got != 1 {
		t.Errorf("%s = %d, want 1", MetricTotal, got)
	}
	if got := sumValue(t, findMetric(rm, MetricErrors)); got != 0 {
		t.Errorf("%s = %d, want 0", MetricErrors, got)
	}
	if findMetric(rm, MetricDuration) == nil {
		t.Errorf("%s not recorded", MetricDuration)
	}

	entries := decodeEntries(t, h.logs)
	if len(entries) != 1 || entries[0]["msg"] != "signin completed" {
		t.Errorf("unexpected log entries %v", entries)
	}
}

func TestMiddleware_ErrorReturnedUnchanged(t *testing.T) {
	h := newHarness(t)
	interrupted := errors.New("user interrupted")

	err := h.mw.Run(context.Background(), Operation{Name: "signin", Provider: "nfid"}, func(context.Context) error {
		return interrupted
	})
	if err != interrupted {
		t.Fatalf("Run() error = %v, want the original error", err)
	}

	spans := h.spans.Ended()
	if len(spans) != 1 || spans[0].Status().Code != codes.Error {
		t.Fatalf("expected one errored span, got %v", spans)
	}

	rm := h.collect(t)
	if got := sumValue(t, findMetric(rm, MetricErrors)); got != 1 {
		t.Errorf("%s = %d, want 1", MetricErrors, got)
	}

	entries := decodeEntries(t, h.logs)
	if len(entries) != 1 || entries[0]["level"] != "error" || entries[0]["error"] != "user interrupted" {
		t.Errorf("unexpected log entries %v", entries)
	}
}

func TestMiddleware_RequiresOperationName(t *testing.T) {
	h := newHarness(t)
	called := false
	err := h.mw.Run(context.Background(), Operation{}, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrMissingOperationName) {
		t.Errorf("Run() error = %v, want ErrMissingOperationName", err)
	}
	if called {
		t.Error("fn should not run without an operation name")
	}
}

func TestMiddlewareFromObserver(t *testing.T) {
	if _, err := MiddlewareFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Errorf("MiddlewareFromObserver(nil) error = %v, want ErrNilObserver", err)
	}
	mw, err := MiddlewareFromObserver(Nop())
	if err != nil {
		t.Fatalf("MiddlewareFromObserver() error = %v", err)
	}
	if err := mw.Run(context.Background(), Operation{Name: "signout"}, func(context.Context) error { return nil }); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestOperation_SpanName(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{Operation{Name: "signin", Provider: "google"}, "auth.signin.google"},
		{Operation{Name: "signout"}, "auth.signout"},
	}
	for _, tt := range tests {
		if got := tt.op.SpanName(); got != tt.want {
			t.Errorf("SpanName() = %q, want %q", got, tt.want)
		}
	}
}
