package executor_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/agentruntime"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/executor"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/recovery"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store/memstore"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/thinking"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/toolregistry"
)

func newTelemetry() telemetry.Telemetry {
	bus := telemetry.NewBus(telemetry.NewNoopLogger())
	return telemetry.New(telemetry.NewNoopLogger(), telemetry.NewNoopMetrics(), telemetry.NewNoopTracer(), bus)
}

// fakeRuntime lets each test script a sequence of outcomes and counts calls.
type fakeRuntime struct {
	calls     int64
	outcome   func(n int64) (agentruntime.Result, error)
	onExecute func(task domain.Task)
}

func (f *fakeRuntime) Execute(_ context.Context, task domain.Task, _ domain.LLMConfig, _ time.Time) (agentruntime.Result, error) {
	n := atomic.AddInt64(&f.calls, 1)
	if f.onExecute != nil {
		f.onExecute(task)
	}
	return f.outcome(n)
}

func seedWorkspaceWithAgent(t *testing.T, st *memstore.Store, workspaceID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.UpsertWorkspace(ctx, domain.Workspace{ID: workspaceID, Status: domain.WorkspaceActive, GoalText: "ship it"}))
	require.NoError(t, st.UpsertAgent(ctx, domain.Agent{ID: "agent-1", WorkspaceID: workspaceID, Status: domain.AgentAvailable, Role: "worker"}))
}

func pendingTask(workspaceID, id string) domain.Task {
	now := time.Now().UTC()
	return domain.Task{
		ID: id, WorkspaceID: workspaceID, Name: "do the thing",
		Status: domain.TaskPending, Priority: domain.PriorityMedium,
		CreatedAt: now, UpdatedAt: now,
	}
}

func TestNoTaskExecutedTwiceConcurrently(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWorkspaceWithAgent(t, st, "ws1")
	task := pendingTask("ws1", "t1")
	created, err := st.CreateTask(ctx, task, "")
	require.NoError(t, err)

	rt := &fakeRuntime{outcome: func(int64) (agentruntime.Result, error) {
		time.Sleep(10 * time.Millisecond)
		return agentruntime.Result{Output: "done", Usage: agentruntime.Usage{Model: "gpt-4o-mini", InputTokens: 10, OutputTokens: 5}}, nil
	}}

	tel := newTelemetry()
	ex := executor.New(st, rt, tel, thinking.New(st, tel), recovery.New(st, tel, nil, false), nil, nil, 2, 3)
	require.NoError(t, ex.Start(ctx))
	defer ex.Stop()

	// Simulate the same pending task being handed to the queue twice (e.g. a
	// retry race with the control loop's own pending-task sweep): only one
	// claim should win the in_progress CAS.
	require.NoError(t, ex.Enqueue(ctx, created))
	require.NoError(t, ex.Enqueue(ctx, created))

	require.Eventually(t, func() bool {
		got, err := st.GetTask(ctx, created.ID)
		return err == nil && got.Status == domain.TaskCompleted
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(1), atomic.LoadInt64(&rt.calls))
}

func TestSuccessfulCompletionRecordsBudgetAndActivity(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWorkspaceWithAgent(t, st, "ws2")
	task := pendingTask("ws2", "t2")
	created, err := st.CreateTask(ctx, task, "")
	require.NoError(t, err)

	rt := &fakeRuntime{outcome: func(int64) (agentruntime.Result, error) {
		return agentruntime.Result{Output: "done", Usage: agentruntime.Usage{Model: "gpt-4o-mini", InputTokens: 100, OutputTokens: 50}}, nil
	}}

	tel := newTelemetry()
	ex := executor.New(st, rt, tel, thinking.New(st, tel), recovery.New(st, tel, nil, false), nil, nil, 1, 3)
	require.NoError(t, ex.Start(ctx))
	defer ex.Stop()

	require.NoError(t, ex.Enqueue(ctx, created))
	require.Eventually(t, func() bool {
		got, err := st.GetTask(ctx, created.ID)
		return err == nil && got.Status == domain.TaskCompleted
	}, time.Second, 5*time.Millisecond)

	got, err := st.GetTask(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Greater(t, got.Result.CostEstimated, 0.0)
	assert.Greater(t, ex.BudgetTracker().PerAgent("agent-1"), 0.0)

	activity := ex.RecentActivity("ws2", 10)
	var sawStarted, sawCompleted bool
	for _, e := range activity {
		switch e.Event {
		case executor.ActivityTaskStarted:
			sawStarted = true
		case executor.ActivityTaskCompleted:
			sawCompleted = true
		}
	}
	assert.True(t, sawStarted)
	assert.True(t, sawCompleted)
}

func TestRecoveryRetryRevertsAndIncrementsCount(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWorkspaceWithAgent(t, st, "ws3")
	task := pendingTask("ws3", "t3")
	created, err := st.CreateTask(ctx, task, "")
	require.NoError(t, err)

	rt := &fakeRuntime{outcome: func(int64) (agentruntime.Result, error) {
		return agentruntime.Result{}, fmt.Errorf("read timeout talking to provider")
	}}

	tel := newTelemetry()
	ex := executor.New(st, rt, tel, thinking.New(st, tel), recovery.New(st, tel, nil, false), nil, nil, 1, 3)
	require.NoError(t, ex.Start(ctx))
	defer ex.Stop()

	require.NoError(t, ex.Enqueue(ctx, created))
	require.Eventually(t, func() bool {
		got, err := st.GetTask(ctx, created.ID)
		return err == nil && got.RecoveryCount == 1
	}, time.Second, 5*time.Millisecond)

	got, err := st.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPending, got.Status)
}

func TestRecoveryEscalateMarksTaskFailed(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWorkspaceWithAgent(t, st, "ws4")
	task := pendingTask("ws4", "t4")
	created, err := st.CreateTask(ctx, task, "")
	require.NoError(t, err)

	rt := &fakeRuntime{outcome: func(int64) (agentruntime.Result, error) {
		return agentruntime.Result{}, fmt.Errorf("ImportError: no module named foo")
	}}

	tel := newTelemetry()
	ex := executor.New(st, rt, tel, thinking.New(st, tel), recovery.New(st, tel, nil, false), nil, nil, 1, 3)
	require.NoError(t, ex.Start(ctx))
	defer ex.Stop()

	require.NoError(t, ex.Enqueue(ctx, created))
	require.Eventually(t, func() bool {
		got, err := st.GetTask(ctx, created.ID)
		return err == nil && got.Status == domain.TaskFailed
	}, time.Second, 5*time.Millisecond)
}

func TestRecoveryCircuitBreakRevertsWithoutIncrementingBeyondAttempt(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWorkspaceWithAgent(t, st, "ws5")
	task := pendingTask("ws5", "t5")
	created, err := st.CreateTask(ctx, task, "")
	require.NoError(t, err)

	rt := &fakeRuntime{outcome: func(int64) (agentruntime.Result, error) {
		return agentruntime.Result{}, fmt.Errorf("circuit breaker open for downstream service")
	}}

	tel := newTelemetry()
	ex := executor.New(st, rt, tel, thinking.New(st, tel), recovery.New(st, tel, nil, false), nil, nil, 1, 3)
	require.NoError(t, ex.Start(ctx))
	defer ex.Stop()

	require.NoError(t, ex.Enqueue(ctx, created))
	require.Eventually(t, func() bool {
		got, err := st.GetTask(ctx, created.ID)
		return err == nil && got.Status == domain.TaskPending
	}, time.Second, 5*time.Millisecond)

	got, err := st.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RecoveryCount)
}

func TestRecoveryRetryHonorsStrategyDelayBeforeReenqueueing(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWorkspaceWithAgent(t, st, "ws9")
	task := pendingTask("ws9", "t9")
	created, err := st.CreateTask(ctx, task, "")
	require.NoError(t, err)

	rt := &fakeRuntime{outcome: func(int64) (agentruntime.Result, error) {
		return agentruntime.Result{}, fmt.Errorf("rate limit exceeded, too many requests")
	}}

	tel := newTelemetry()
	ex := executor.New(st, rt, tel, thinking.New(st, tel), recovery.New(st, tel, nil, false), nil, nil, 1, 3)
	require.NoError(t, ex.Start(ctx))
	defer ex.Stop()

	require.NoError(t, ex.Enqueue(ctx, created))
	// The rate_limit_exceeded pattern carries a 60s linear-backoff delay, so
	// the revert to pending (synchronous) happens well before any re-enqueue
	// (scheduled via time.AfterFunc) could fire.
	require.Eventually(t, func() bool {
		got, err := st.GetTask(ctx, created.ID)
		return err == nil && got.RecoveryCount == 1 && got.Status == domain.TaskPending
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, int64(1), atomic.LoadInt64(&rt.calls))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&rt.calls), "a 60s strategy delay must not let the task re-run within 50ms")
}

func TestResolveAgentSkipsAgentWithOpenCircuitBreaker(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWorkspaceWithAgent(t, st, "ws10")
	firstTask := pendingTask("ws10", "t10a")
	firstTask.AgentID = "agent-1" // pinned, so resolveAgent takes the direct-lookup path and skips the breaker check
	createdFirst, err := st.CreateTask(ctx, firstTask, "")
	require.NoError(t, err)

	rt := &fakeRuntime{outcome: func(int64) (agentruntime.Result, error) {
		return agentruntime.Result{}, fmt.Errorf("MemoryError: out of memory")
	}}

	tel := newTelemetry()
	analyser := recovery.New(st, tel, nil, false)
	ex := executor.New(st, rt, tel, thinking.New(st, tel), analyser, nil, nil, 1, 3)
	require.NoError(t, ex.Start(ctx))
	defer ex.Stop()

	require.NoError(t, ex.Enqueue(ctx, createdFirst))
	require.Eventually(t, func() bool {
		return analyser.Breakers().State("ws10", "agent-1") == gobreaker.StateOpen
	}, time.Second, 5*time.Millisecond)

	// Second task has no pinned agent, so resolveAgent must consult
	// ListAgents; the only agent in the workspace now has an open circuit, so
	// it should be skipped and the task left with no agent to run on.
	secondTask := pendingTask("ws10", "t10b")
	createdSecond, err := st.CreateTask(ctx, secondTask, "")
	require.NoError(t, err)

	require.NoError(t, ex.Enqueue(ctx, createdSecond))
	require.Eventually(t, func() bool {
		got, err := st.GetTask(ctx, createdSecond.ID)
		return err == nil && got.Status == domain.TaskPending
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(1), atomic.LoadInt64(&rt.calls), "the second task must never reach the runtime since its only agent is quarantined")
}

func TestTriggerInitialIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWorkspaceWithAgent(t, st, "ws6")

	tel := newTelemetry()
	ex := executor.New(st, &fakeRuntime{outcome: func(int64) (agentruntime.Result, error) { return agentruntime.Result{}, nil }},
		tel, thinking.New(st, tel), recovery.New(st, tel, nil, false), nil, nil, 1, 3)

	first, err := ex.TriggerInitial(ctx, "ws6")
	require.NoError(t, err)
	second, err := ex.TriggerInitial(ctx, "ws6")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestPauseBlocksGateUntilResume(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWorkspaceWithAgent(t, st, "ws7")
	tel := newTelemetry()
	ex := executor.New(st, &fakeRuntime{outcome: func(int64) (agentruntime.Result, error) { return agentruntime.Result{}, nil }},
		tel, thinking.New(st, tel), recovery.New(st, tel, nil, false), nil, nil, 1, 3)

	require.NoError(t, ex.Start(ctx))
	defer ex.Stop()
	ex.Pause()
	assert.True(t, ex.Stats().Paused)
	ex.Resume()
	assert.False(t, ex.Stats().Paused)
}

func TestTaskExecutionReceivesToolRegistryViaContextData(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedWorkspaceWithAgent(t, st, "ws8")
	task := pendingTask("ws8", "t8")
	created, err := st.CreateTask(ctx, task, "")
	require.NoError(t, err)

	registry := toolregistry.NewStaticRegistry(toolregistry.NewToolSpec("echo", "", nil,
		func(context.Context, map[string]any) (any, error) { return nil, nil }))

	var seen toolregistry.Registry
	rt := &fakeRuntime{
		onExecute: func(task domain.Task) { seen, _ = task.ContextData[toolregistry.ContextDataKey].(toolregistry.Registry) },
		outcome: func(int64) (agentruntime.Result, error) {
			return agentruntime.Result{Output: "done", Usage: agentruntime.Usage{Model: "gpt-4o-mini"}}, nil
		},
	}

	tel := newTelemetry()
	ex := executor.New(st, rt, tel, thinking.New(st, tel), recovery.New(st, tel, nil, false), nil, registry, 1, 3)
	require.NoError(t, ex.Start(ctx))
	defer ex.Stop()

	require.NoError(t, ex.Enqueue(ctx, created))
	require.Eventually(t, func() bool {
		got, err := st.GetTask(ctx, created.ID)
		return err == nil && got.Status == domain.TaskCompleted
	}, time.Second, 5*time.Millisecond)

	require.NotNil(t, seen)
	_, ok := seen.Lookup("echo")
	assert.True(t, ok)
	assert.Same(t, ex.ToolRegistry(), registry)
}
