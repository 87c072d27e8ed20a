package thinking_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store/memstore"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/thinking"
)

func newRecorder() (*thinking.Recorder, *telemetry.Bus) {
	bus := telemetry.NewBus(telemetry.NewNoopLogger())
	tel := telemetry.New(telemetry.NewNoopLogger(), telemetry.NewNoopMetrics(), telemetry.NewNoopTracer(), bus)
	return thinking.New(memstore.New(), tel), bus
}

type recording struct {
	events []string
}

func (r *recording) HandleEvent(_ context.Context, eventType string, _ any) {
	r.events = append(r.events, eventType)
}

func TestStartAppendComplete(t *testing.T) {
	rec, bus := newRecorder()
	sub := &recording{}
	bus.Register(sub)
	ctx := context.Background()

	processID, err := rec.Start(ctx, "ws1", "planning goal X", "planning")
	require.NoError(t, err)
	require.NotEmpty(t, processID)

	require.NoError(t, rec.Append(ctx, processID, domain.StepAnalysis, "looking at requirements", 0.6, nil))
	require.NoError(t, rec.Append(ctx, processID, domain.StepReasoning, "weighing options", 0.7, nil))
	require.NoError(t, rec.Complete(ctx, processID, "proceed with plan A", 0.85))

	p, err := rec.Get(ctx, processID)
	require.NoError(t, err)
	assert.Len(t, p.Steps, 2)
	assert.True(t, p.Sealed())
	assert.Equal(t, "proceed with plan A", p.FinalConclusion)

	assert.Equal(t, []string{
		telemetry.EventProcessStarted, telemetry.EventStepAdded, telemetry.EventStepAdded, telemetry.EventProcessCompleted,
	}, sub.events)
}

func TestAppendAfterCompleteIsRejected(t *testing.T) {
	rec, _ := newRecorder()
	ctx := context.Background()
	processID, err := rec.Start(ctx, "ws1", "ctx", "planning")
	require.NoError(t, err)
	require.NoError(t, rec.Complete(ctx, processID, "done", 0.9))

	err = rec.Append(ctx, processID, domain.StepAnalysis, "too late", 0.5, nil)
	assert.True(t, errors.Is(err, thinking.ErrProcessSealed))
}

func TestMapLegacyStepTypeNormalizesContextLoading(t *testing.T) {
	assert.Equal(t, domain.StepAnalysis, thinking.MapLegacyStepType("context_loading"))
	assert.Equal(t, domain.StepSynthesis, thinking.MapLegacyStepType("synthesis"))
}

func TestListReturnsNewestFirst(t *testing.T) {
	rec, _ := newRecorder()
	ctx := context.Background()
	p1, err := rec.Start(ctx, "ws1", "first", "planning")
	require.NoError(t, err)
	p2, err := rec.Start(ctx, "ws1", "second", "planning")
	require.NoError(t, err)

	list, err := rec.List(ctx, "ws1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, p2, list[0].ProcessID)
	assert.Equal(t, p1, list[1].ProcessID)
}
