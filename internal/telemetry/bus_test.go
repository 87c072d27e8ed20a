package telemetry

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubscriber struct {
	calls int32
	last  any
}

func (r *recordingSubscriber) HandleEvent(_ context.Context, eventType string, payload any) {
	atomic.AddInt32(&r.calls, 1)
	r.last = payload
}

type panickingSubscriber struct{}

func (panickingSubscriber) HandleEvent(context.Context, string, any) { panic("boom") }

func TestBusPublishDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(NewNoopLogger())
	a := &recordingSubscriber{}
	b := &recordingSubscriber{}
	bus.Register(a)
	bus.Register(b)

	bus.Publish(context.Background(), "thinking.step_added", StepAddedEvent{ProcessID: "p1"})

	assert.EqualValues(t, 1, a.calls)
	assert.EqualValues(t, 1, b.calls)
	require.IsType(t, StepAddedEvent{}, a.last)
}

func TestBusPublishRecoversPanickingSubscriber(t *testing.T) {
	bus := NewBus(NewNoopLogger())
	bus.Register(panickingSubscriber{})
	ok := &recordingSubscriber{}
	bus.Register(ok)

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), "x", nil)
	})
	assert.EqualValues(t, 1, ok.calls)
}

func TestBusUnregisterStopsDelivery(t *testing.T) {
	bus := NewBus(NewNoopLogger())
	a := &recordingSubscriber{}
	sub := bus.Register(a)
	bus.Unregister(sub)

	bus.Publish(context.Background(), "x", nil)
	assert.EqualValues(t, 0, a.calls)

	// Unregister is idempotent.
	assert.NotPanics(t, func() { bus.Unregister(sub) })
}

func TestTelemetryAlertBroadcastsSystemAlert(t *testing.T) {
	bus := NewBus(NewNoopLogger())
	sub := &recordingSubscriber{}
	bus.Register(sub)

	tel := New(NewNoopLogger(), NewNoopMetrics(), NewNoopTracer(), bus)
	tel.Alert(context.Background(), "ws-1", AlertNoAvailableAgents, SeverityWarning, "no agents")

	require.EqualValues(t, 1, sub.calls)
	alert, ok := sub.last.(SystemAlert)
	require.True(t, ok)
	assert.Equal(t, "ws-1", alert.WorkspaceID)
	assert.Equal(t, AlertNoAvailableAgents, alert.Type)
}
