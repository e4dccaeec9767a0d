package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// otelLogger wraps a sink function so it can be swapped independently of the
// otel SDK's own (still-maturing) logging API; production deployments route
// this through their existing structured logger and tag it with the trace id
// pulled from ctx for correlation.
type otelLogger struct {
	sink func(ctx context.Context, level, msg string, kv ...any)
}

// NewOtelLogger builds a Logger that forwards every call to sink, enriched
// with the active span's trace id when present.
func NewOtelLogger(sink func(ctx context.Context, level, msg string, kv ...any)) Logger {
	return &otelLogger{sink: sink}
}

func (l *otelLogger) Debug(ctx context.Context, msg string, kv ...any) { l.log(ctx, "debug", msg, kv...) }
func (l *otelLogger) Info(ctx context.Context, msg string, kv ...any)  { l.log(ctx, "info", msg, kv...) }
func (l *otelLogger) Warn(ctx context.Context, msg string, kv ...any)  { l.log(ctx, "warn", msg, kv...) }
func (l *otelLogger) Error(ctx context.Context, msg string, kv ...any) { l.log(ctx, "error", msg, kv...) }

func (l *otelLogger) log(ctx context.Context, level, msg string, kv ...any) {
	if l == nil || l.sink == nil {
		return
	}
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		kv = append(kv, "trace_id", sc.TraceID().String())
	}
	l.sink(ctx, level, msg, kv...)
}

type otelMetrics struct {
	meter    metric.Meter
	counters map[string]metric.Float64Counter
	timers   map[string]metric.Float64Histogram
}

// NewOtelMetrics builds a Metrics recorder backed by the given meter.
func NewOtelMetrics(meter metric.Meter) Metrics {
	return &otelMetrics{
		meter:    meter,
		counters: make(map[string]metric.Float64Counter),
		timers:   make(map[string]metric.Float64Histogram),
	}
}

func (m *otelMetrics) IncCounter(name string, value float64, tags ...string) {
	c, ok := m.counters[name]
	if !ok {
		var err error
		c, err = m.meter.Float64Counter(name)
		if err != nil {
			return
		}
		m.counters[name] = c
	}
	c.Add(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

func (m *otelMetrics) RecordTimer(name string, d time.Duration, tags ...string) {
	h, ok := m.timers[name]
	if !ok {
		var err error
		h, err = m.meter.Float64Histogram(name)
		if err != nil {
			return
		}
		m.timers[name] = h
	}
	h.Record(context.Background(), d.Seconds(), metric.WithAttributes(tagsToAttrs(tags)...))
}

func tagsToAttrs(tags []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		attrs = append(attrs, attribute.String(tags[i], tags[i+1]))
	}
	return attrs
}

type otelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer builds a Tracer backed by the given otel tracer.
func NewOtelTracer(tracer trace.Tracer) Tracer {
	return &otelTracer{tracer: tracer}
}

func (t *otelTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *otelSpan) SetAttribute(key string, value any) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, "unsupported-attribute-type"))
	}
}
