package inmem_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/engine"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/engine/inmem"
)

func TestWorkflowExecutesActivityAndReturnsResult(t *testing.T) {
	ctx := context.Background()
	e := inmem.New()

	require.NoError(t, e.RegisterActivity(ctx, engine.ActivityDefinition{
		Name: "greet",
		Handler: func(_ context.Context, input any) (any, error) {
			return fmt.Sprintf("hello, %v", input), nil
		},
	}))

	require.NoError(t, e.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: "greet_workflow",
		Handler: func(wctx engine.WorkflowContext, input any) (any, error) {
			var out string
			if err := wctx.ExecuteActivity(wctx.Context(), engine.ActivityRequest{Name: "greet", Input: input}, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
	}))

	h, err := e.StartWorkflow(ctx, engine.WorkflowStartRequest{ID: "run-1", Workflow: "greet_workflow", Input: "world"})
	require.NoError(t, err)

	var result string
	require.NoError(t, h.Wait(ctx, &result))
	assert.Equal(t, "hello, world", result)

	status, err := e.QueryRunStatus(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, engine.RunStatusCompleted, status)
}

func TestWorkflowFailurePropagatesAndMarksStatusFailed(t *testing.T) {
	ctx := context.Background()
	e := inmem.New()

	require.NoError(t, e.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: "boom",
		Handler: func(engine.WorkflowContext, any) (any, error) {
			return nil, fmt.Errorf("boom")
		},
	}))

	h, err := e.StartWorkflow(ctx, engine.WorkflowStartRequest{ID: "run-2", Workflow: "boom"})
	require.NoError(t, err)

	err = h.Wait(ctx, nil)
	assert.EqualError(t, err, "boom")

	status, err := e.QueryRunStatus(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, engine.RunStatusFailed, status)
}

func TestSignalDeliveredToRunningWorkflow(t *testing.T) {
	ctx := context.Background()
	e := inmem.New()

	require.NoError(t, e.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: "waits_for_signal",
		Handler: func(wctx engine.WorkflowContext, _ any) (any, error) {
			var payload string
			if err := wctx.SignalChannel("resume").Receive(wctx.Context(), &payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}))

	h, err := e.StartWorkflow(ctx, engine.WorkflowStartRequest{ID: "run-3", Workflow: "waits_for_signal"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.Signal(ctx, "resume", "go") == nil
	}, time.Second, time.Millisecond)

	var result string
	require.NoError(t, h.Wait(ctx, &result))
	assert.Equal(t, "go", result)
}

func TestStartWorkflowUnregisteredFails(t *testing.T) {
	e := inmem.New()
	_, err := e.StartWorkflow(context.Background(), engine.WorkflowStartRequest{ID: "run-4", Workflow: "missing"})
	assert.Error(t, err)
}

func TestQueryRunStatusUnknownRunFails(t *testing.T) {
	e := inmem.New()
	_, err := e.QueryRunStatus(context.Background(), "nope")
	assert.ErrorIs(t, err, engine.ErrWorkflowNotFound)
}
