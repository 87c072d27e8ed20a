package telemetry

import (
	"context"
	"time"
)

type (
	noopLogger  struct{}
	noopMetrics struct{}
	noopTracer  struct{}
	noopSpan    struct{}
)

// NewNoopLogger constructs a Logger that discards all messages. Used by tests
// and any deployment that disables logging outright.
func NewNoopLogger() Logger { return noopLogger{} }

// NewNoopMetrics constructs a Metrics recorder that discards everything.
func NewNoopMetrics() Metrics { return noopMetrics{} }

// NewNoopTracer constructs a Tracer that produces no-op spans.
func NewNoopTracer() Tracer { return noopTracer{} }

func (noopLogger) Debug(context.Context, string, ...any) {}
func (noopLogger) Info(context.Context, string, ...any)  {}
func (noopLogger) Warn(context.Context, string, ...any)  {}
func (noopLogger) Error(context.Context, string, ...any) {}

func (noopMetrics) IncCounter(string, float64, ...string)      {}
func (noopMetrics) RecordTimer(string, time.Duration, ...string) {}
func (noopMetrics) RecordGauge(string, float64, ...string)     {}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, Span) { return ctx, noopSpan{} }
func (noopSpan) End()         {}
func (noopSpan) SetError(error) {}

// noop is a full Telemetry implementation that discards logs/metrics/traces
// and broadcasts to nobody. Nothing in this module constructs it; tests build
// New over NewNoopLogger, NewNoopMetrics and NewNoopTracer instead.
type noop struct{}

// NewNoop constructs a Telemetry that discards everything.
func NewNoop() Telemetry { return noop{} }

func (noop) Logger() Logger   { return noopLogger{} }
func (noop) Metrics() Metrics { return noopMetrics{} }
func (noop) Tracer() Tracer   { return noopTracer{} }
func (noop) Broadcast(context.Context, string, any) {}
func (noop) EmitMetric(string, float64, ...string)  {}
func (noop) Alert(context.Context, string, AlertType, AlertSeverity, string) {}
