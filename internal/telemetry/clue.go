package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

type (
	// clueLogger wraps goa.design/clue/log, matching the teacher's
	// runtime/agent/telemetry.ClueLogger. clue's log package reads its format
	// (JSON/text) and debug-level settings from the context, so construction
	// takes no arguments.
	clueLogger struct{}

	// otelMetrics wraps OTEL metrics instruments. Counter/gauge instruments
	// are created lazily and cached by name since OTEL meters do not allow
	// registering the same instrument name twice.
	otelMetrics struct {
		meter      metric.Meter
		counters   map[string]metric.Float64Counter
		gauges     map[string]metric.Float64Gauge
		histograms map[string]metric.Float64Histogram
	}

	otelTracer struct{ tracer trace.Tracer }

	otelSpan struct{ span trace.Span }
)

// NewClueLogger constructs a Logger backed by goa.design/clue/log, the
// logging library the teacher repo uses throughout its runtime package.
func NewClueLogger() Logger { return clueLogger{} }

func (clueLogger) Debug(ctx context.Context, msg string, kv ...any) {
	log.Debug(ctx, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvToClue(kv)...)...)
}

func (clueLogger) Info(ctx context.Context, msg string, kv ...any) {
	log.Info(ctx, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvToClue(kv)...)...)
}

func (clueLogger) Warn(ctx context.Context, msg string, kv ...any) {
	fielders := []log.Fielder{log.KV{K: "msg", V: msg}, log.KV{K: "severity", V: "warning"}}
	log.Warn(ctx, append(fielders, kvToClue(kv)...)...)
}

func (clueLogger) Error(ctx context.Context, msg string, kv ...any) {
	log.Error(ctx, nil, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvToClue(kv)...)...)
}

func kvToClue(kv []any) []log.Fielder {
	out := make([]log.Fielder, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		if key == "" {
			continue
		}
		out = append(out, log.KV{K: key, V: kv[i+1]})
	}
	return out
}

// NewOTELMetrics constructs a Metrics recorder over the global OTEL
// MeterProvider. Configure the provider (e.g. via clue.ConfigureOpenTelemetry)
// before using the returned recorder.
func NewOTELMetrics(instrumentationName string) Metrics {
	return &otelMetrics{
		meter:      otel.Meter(instrumentationName),
		counters:   make(map[string]metric.Float64Counter),
		gauges:     make(map[string]metric.Float64Gauge),
		histograms: make(map[string]metric.Float64Histogram),
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
	h, ok := m.histograms[name]
	if !ok {
		var err error
		h, err = m.meter.Float64Histogram(name)
		if err != nil {
			return
		}
		m.histograms[name] = h
	}
	h.Record(context.Background(), d.Seconds(), metric.WithAttributes(tagsToAttrs(tags)...))
}

func (m *otelMetrics) RecordGauge(name string, value float64, tags ...string) {
	g, ok := m.gauges[name]
	if !ok {
		var err error
		g, err = m.meter.Float64Gauge(name)
		if err != nil {
			return
		}
		m.gauges[name] = g
	}
	g.Record(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

func tagsToAttrs(tags []string) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		out = append(out, attribute.String(tags[i], tags[i+1]))
	}
	return out
}

// NewOTELTracer constructs a Tracer over the global OTEL TracerProvider.
func NewOTELTracer(instrumentationName string) Tracer {
	return otelTracer{tracer: otel.Tracer(instrumentationName)}
}

func (t otelTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, otelSpan{span: span}
}

func (s otelSpan) End() { s.span.End() }

func (s otelSpan) SetError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}
