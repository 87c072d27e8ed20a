// Package telemetry defines the C3 Telemetry port: structured logging,
// metrics, tracing, and the real-time event bus used by the Thinking
// Recorder, Recovery Analyser, and Health Manager to broadcast observability
// events. Shaped after the teacher's runtime/agent/telemetry package
// (Logger/Metrics/Tracer split with Clue/Noop implementations).
package telemetry

import (
	"context"
	"time"
)

type (
	// Logger emits structured log lines. Implementations must never panic and
	// must treat keyvals as alternating key/value pairs.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters and timers. Implementations must be safe for
	// concurrent use from every worker and controller goroutine.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, d time.Duration, tags ...string)
		RecordGauge(name string, value float64, tags ...string)
	}

	// Tracer creates spans for cross-component operations (validation passes,
	// planning episodes, task execution).
	Tracer interface {
		Start(ctx context.Context, name string) (context.Context, Span)
	}

	// Span is a single trace span; End must be safe to call exactly once.
	Span interface {
		End()
		SetError(err error)
	}
)

// Telemetry bundles the three ports plus event broadcast and alerting, which
// is the full C3 contract from spec §6. Components depend on this single
// interface rather than threading Logger/Metrics/Tracer separately.
type Telemetry interface {
	Logger() Logger
	Metrics() Metrics
	Tracer() Tracer

	// Broadcast emits a structured event for real-time observation (spec §6
	// "Thinking events", "Recovery events"). eventType is a short dotted name
	// (e.g. "thinking.step_added"); payload is implementation-defined but
	// typically one of the payload structs in events.go.
	Broadcast(ctx context.Context, eventType string, payload any)

	// EmitMetric is a convenience wrapper some callers use instead of
	// Metrics().IncCounter when they only have a single scalar to report.
	EmitMetric(name string, value float64, tags ...string)

	// Alert raises a system alert (spec §6 "System alerts"). workspaceID may
	// be empty for alerts not scoped to a single workspace.
	Alert(ctx context.Context, workspaceID string, alertType AlertType, severity AlertSeverity, description string)
}
