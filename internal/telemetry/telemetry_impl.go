package telemetry

import (
	"context"
	"time"
)

// telemetry is the production Telemetry implementation: it wires a Logger,
// Metrics, and Tracer chosen at startup (config.Config.LogBackend and the
// OTEL/Prometheus constructors above) to the event Bus, and turns Alert into
// both a log line and a broadcast so any subscriber (e.g. a notification
// sink) can react without the Health Manager knowing about it directly.
type telemetry struct {
	logger  Logger
	metrics Metrics
	tracer  Tracer
	bus     *Bus
}

// New constructs the production Telemetry. bus may be shared with callers
// that also need to Register/Unregister subscribers directly (the thinking
// package's tests do, to observe broadcasts).
func New(logger Logger, metrics Metrics, tracer Tracer, bus *Bus) Telemetry {
	return &telemetry{logger: logger, metrics: metrics, tracer: tracer, bus: bus}
}

func (t *telemetry) Logger() Logger   { return t.logger }
func (t *telemetry) Metrics() Metrics { return t.metrics }
func (t *telemetry) Tracer() Tracer   { return t.tracer }

func (t *telemetry) Broadcast(ctx context.Context, eventType string, payload any) {
	t.bus.Publish(ctx, eventType, payload)
}

func (t *telemetry) EmitMetric(name string, value float64, tags ...string) {
	t.metrics.IncCounter(name, value, tags...)
}

func (t *telemetry) Alert(ctx context.Context, workspaceID string, alertType AlertType, severity AlertSeverity, description string) {
	alert := SystemAlert{
		Type:        alertType,
		Severity:    severity,
		WorkspaceID: workspaceID,
		Description: description,
		DetectedAt:  time.Now().UTC(),
		Component:   "health_manager",
	}
	t.logger.Warn(ctx, "system alert",
		"alert_type", string(alertType),
		"severity", string(severity),
		"workspace_id", workspaceID,
		"description", description,
	)
	t.metrics.IncCounter("system_alerts_total", 1, "alert_type", string(alertType), "severity", string(severity))
	t.bus.Publish(ctx, "system.alert", alert)
}
