package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/agentruntime"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/recovery"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/toolregistry"
)

const (
	minTaskDeadline = 2 * time.Minute
	maxTaskDeadline = 30 * time.Minute
	defaultTaskDeadline = 10 * time.Minute

	controlLoopInterval = 10 * time.Second
)

// dispatch is the control-loop-independent consumer side of the queue: a
// single goroutine that bounds concurrency with sem (sized to
// MAX_CONCURRENT_TASKS) and hands each dequeued task to its own goroutine
// tracked by an errgroup, replacing the teacher's fixed-size goroutine-per-
// worker pool with a semaphore-bounded fan-out — the shape jordigilh-
// kubernaut's go.mod pulls in golang.org/x/sync for.
func (e *Executor) dispatch(ctx context.Context, queue chan domain.Task, eg *errgroup.Group, sem *semaphore.Weighted) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-queue:
			if !ok {
				return
			}
			if err := e.gate.Wait(ctx); err != nil {
				return
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			eg.Go(func() error {
				defer sem.Release(1)
				e.runTask(ctx, task)
				return nil
			})
		}
	}
}

// controlLoop implements spec §4.10's "control loop (outside the worker
// pool)": every 10s, bootstrap active workspaces with no tasks and enqueue
// pending tasks from workspaces that have them, respecting queue capacity.
// Grounded on the same ticker shape as monitor.Monitor.loop.
func (e *Executor) controlLoop(ctx context.Context) {
	defer e.controlWG.Done()
	ticker := time.NewTicker(controlLoopInterval)
	defer ticker.Stop()

	e.runControlCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runControlCycle(ctx)
		}
	}
}

func (e *Executor) runControlCycle(ctx context.Context) {
	if err := e.gate.Wait(ctx); err != nil {
		return
	}

	active, err := e.store.ListActiveWorkspaces(ctx)
	if err != nil {
		if e.tel != nil {
			e.tel.Logger().Error(ctx, "executor: list active workspaces failed", "error", err.Error())
		}
		return
	}
	for _, w := range active {
		tasks, err := e.store.ListTasks(ctx, w.ID, store.TaskFilter{})
		if err != nil {
			if e.tel != nil {
				e.tel.Logger().Error(ctx, "executor: list tasks failed", "workspace_id", w.ID, "error", err.Error())
			}
			continue
		}
		if len(tasks) == 0 {
			if _, err := e.TriggerInitial(ctx, w.ID); err != nil && e.tel != nil {
				e.tel.Logger().Error(ctx, "executor: trigger_initial failed", "workspace_id", w.ID, "error", err.Error())
			}
		}
	}

	pendingWs, err := e.store.ListWorkspacesWithPendingTasks(ctx)
	if err != nil {
		if e.tel != nil {
			e.tel.Logger().Error(ctx, "executor: list workspaces with pending tasks failed", "error", err.Error())
		}
		return
	}
	pending := domain.TaskPending
	for _, w := range pendingWs {
		tasks, err := e.store.ListTasks(ctx, w.ID, store.TaskFilter{Status: &pending})
		if err != nil {
			if e.tel != nil {
				e.tel.Logger().Error(ctx, "executor: list pending tasks failed", "workspace_id", w.ID, "error", err.Error())
			}
			continue
		}
		for _, t := range tasks {
			if !e.TryEnqueue(t) {
				break // queue at capacity; remaining tasks pick up next cycle
			}
		}
	}
}

// runTask executes the worker behaviour for a single task (spec §4.10 worker
// steps 2-8).
func (e *Executor) runTask(ctx context.Context, task domain.Task) {
	// Detached from the pool's cancellation so Stop lets an in-flight task
	// finish its agent call; the per-task deadline still bounds that call.
	ctx = context.WithoutCancel(ctx)
	claimedFrom := task.Status
	if err := e.store.UpdateTaskStatus(ctx, task.ID, domain.TaskInProgress, nil, claimedFrom); err != nil {
		// Another worker claimed it first, or it moved on since enqueue;
		// either way this worker has no more business with it.
		return
	}
	task.Status = domain.TaskInProgress

	e.activity.record(ActivityEvent{
		Timestamp: time.Now().UTC(), Event: ActivityTaskStarted,
		TaskID: task.ID, AgentID: task.AgentID, WorkspaceID: task.WorkspaceID, Summary: task.Name,
	})
	e.tel.Broadcast(ctx, telemetry.EventTaskStarted, task.ID)

	agent, err := e.resolveAgent(ctx, task)
	if err != nil {
		if e.tel != nil {
			e.tel.Logger().Warn(ctx, "executor: no agent available for task", "task_id", task.ID, "error", err.Error())
			e.tel.Alert(ctx, task.WorkspaceID, telemetry.AlertCorrectiveTaskNoAgent, telemetry.SeverityWarning,
				fmt.Sprintf("task %s has no available agent", task.ID))
		}
		_ = e.store.UpdateTaskStatus(ctx, task.ID, claimedFrom, nil, domain.TaskInProgress)
		return
	}

	processID, err := e.thinking.Start(ctx, task.WorkspaceID, task.ID, "task_execution")
	if err != nil && e.tel != nil {
		e.tel.Logger().Debug(ctx, "executor: thinking start failed", "task_id", task.ID, "error", err.Error())
	}
	if processID != "" {
		_ = e.thinking.Append(ctx, processID, domain.StepAnalysis, fmt.Sprintf("executing %q via agent %s", task.Name, agent.ID), 0.7, nil)
	}

	if task.ContextData == nil {
		task.ContextData = make(map[string]any, 1)
	}
	task.ContextData[toolregistry.ContextDataKey] = e.tools

	deadline := time.Now().Add(taskDeadlineFor(task))
	execCtx, cancel := context.WithDeadline(ctx, deadline)
	result, execErr := e.runtime.Execute(execCtx, task, agent.LLMConfig, deadline)
	cancel()

	if execErr == nil {
		e.completeTask(ctx, task, agent, processID, result)
		return
	}
	e.failTask(ctx, task, claimedFrom, agent, processID, execErr)
}

func (e *Executor) completeTask(ctx context.Context, task domain.Task, agent domain.Agent, processID string, result agentruntime.Result) {
	spend := e.budget.Record(agent.ID, task.ID, result.Usage.Model, result.Usage.InputTokens, result.Usage.OutputTokens)

	taskResult := &domain.TaskResult{
		Output: result.Output, StatusDetail: "completed", ModelUsed: result.Usage.Model,
		InputTokens: result.Usage.InputTokens, OutputTokens: result.Usage.OutputTokens,
		TokensEstimated: result.Usage.Estimated, CostEstimated: spend.TotalCost,
		AgentMetadata: result.AgentMetadata, StructuredPayload: result.StructuredPayload,
	}
	if err := e.store.UpdateTaskStatus(ctx, task.ID, domain.TaskCompleted, taskResult, domain.TaskInProgress); err != nil {
		if e.tel != nil {
			e.tel.Logger().Error(ctx, "executor: CAS to completed failed", "task_id", task.ID, "error", err.Error())
		}
		return
	}
	task.Status = domain.TaskCompleted
	task.Result = taskResult

	if processID != "" {
		_ = e.thinking.Complete(ctx, processID, "task executed successfully", 0.8)
	}
	e.tel.Broadcast(ctx, telemetry.EventTaskCompleted, task.ID)
	e.activity.record(ActivityEvent{
		Timestamp: time.Now().UTC(), Event: ActivityTaskCompleted,
		TaskID: task.ID, AgentID: agent.ID, WorkspaceID: task.WorkspaceID, Summary: task.Name,
	})

	if e.deliverable != nil {
		if _, err := e.deliverable.ProcessCompletedTask(ctx, task); err != nil && e.tel != nil {
			e.tel.Logger().Error(ctx, "executor: post-completion hook failed", "task_id", task.ID, "error", err.Error())
		}
	}

	if followUps, ok := result.AgentMetadata["follow_up_tasks"]; ok {
		if list, ok := followUps.([]any); ok && len(list) > 0 {
			e.activity.record(ActivityEvent{
				Timestamp: time.Now().UTC(), Event: ActivityAutoTaskGenerated,
				TaskID: task.ID, AgentID: agent.ID, WorkspaceID: task.WorkspaceID,
				Summary: fmt.Sprintf("agent proposed %d follow-up task(s)", len(list)),
			})
		}
	}
}

func (e *Executor) failTask(ctx context.Context, task domain.Task, revertTo domain.TaskStatus, agent domain.Agent, processID string, execErr error) {
	if processID != "" {
		_ = e.thinking.Complete(ctx, processID, "task execution failed: "+execErr.Error(), 0.3)
	}
	e.tel.Broadcast(ctx, telemetry.EventTaskFailed, task.ID)
	e.activity.record(ActivityEvent{
		Timestamp: time.Now().UTC(), Event: ActivityTaskFailed,
		TaskID: task.ID, AgentID: agent.ID, WorkspaceID: task.WorkspaceID, Summary: execErr.Error(),
	})

	// The task's own AgentID may still be empty (tasks resolved by role/
	// availability rather than pinned to a specific agent); stamp in the
	// agent that actually failed so RecordOpen and resolveAgent's
	// breakerOpen check key the circuit breaker off the same identity.
	task.AgentID = agent.ID

	rc := recovery.Context{PreviousAttempts: task.RecoveryCount, WorkspaceHealthScore: e.workspaceHealthScore(ctx, task.WorkspaceID)}
	analysis, err := e.analyser.Analyze(ctx, task, execErr.Error(), rc)
	if err != nil {
		if e.tel != nil {
			e.tel.Logger().Error(ctx, "executor: recovery analysis failed", "task_id", task.ID, "error", err.Error())
		}
		analysis = recovery.Analysis{Decision: recovery.DecisionEscalate, Reasoning: "analysis unavailable"}
	}

	switch analysis.Decision {
	case recovery.DecisionRetry:
		e.retryTask(ctx, task, revertTo, execErr, analysis.DelaySeconds)
	case recovery.DecisionCircuitBreak:
		_ = e.store.UpdateTaskStatus(ctx, task.ID, revertTo, nil, domain.TaskInProgress)
	case recovery.DecisionEscalate:
		e.markFailed(ctx, task, execErr, analysis.Reasoning)
		if e.tel != nil {
			e.tel.Alert(ctx, task.WorkspaceID, telemetry.AlertCriticalUnrecoverable, telemetry.SeverityCritical,
				fmt.Sprintf("task %s escalated: %s", task.ID, analysis.Reasoning))
		}
	default: // DecisionSkip
		e.markFailed(ctx, task, execErr, "skipped per recovery analysis")
	}
}

func (e *Executor) retryTask(ctx context.Context, task domain.Task, revertTo domain.TaskStatus, execErr error, delaySeconds float64) {
	if task.RecoveryCount >= e.maxRecoveryAttempts {
		e.markFailed(ctx, task, execErr, "exhausted recovery attempts")
		return
	}
	if err := e.store.UpdateTask(ctx, task.ID, func(t *domain.Task) error {
		t.RecoveryCount++
		t.Status = revertTo
		return nil
	}); err != nil {
		if e.tel != nil {
			e.tel.Logger().Error(ctx, "executor: recovery count bump failed", "task_id", task.ID, "error", err.Error())
		}
		return
	}
	e.scheduleRetry(task, revertTo, delaySeconds)
}

func (e *Executor) scheduleRetry(task domain.Task, revertTo domain.TaskStatus, delaySeconds float64) {
	delay := retryDelay(delaySeconds)
	time.AfterFunc(delay, func() {
		refreshed, err := e.store.GetTask(context.Background(), task.ID)
		if err != nil || refreshed.Status != revertTo {
			return
		}
		e.TryEnqueue(refreshed)
	})
}

func (e *Executor) markFailed(ctx context.Context, task domain.Task, execErr error, detail string) {
	result := &domain.TaskResult{
		LastError: execErr.Error(), StatusDetail: detail,
	}
	if err := e.store.UpdateTaskStatus(ctx, task.ID, domain.TaskFailed, result, domain.TaskInProgress); err != nil && e.tel != nil {
		e.tel.Logger().Error(ctx, "executor: mark failed CAS failed", "task_id", task.ID, "error", err.Error())
	}
}

func taskDeadlineFor(task domain.Task) time.Duration {
	if task.Deadline == nil {
		return defaultTaskDeadline
	}
	d := time.Until(*task.Deadline)
	if d < minTaskDeadline {
		return minTaskDeadline
	}
	if d > maxTaskDeadline {
		return maxTaskDeadline
	}
	return d
}

// retryDelay converts the Recovery Analyser's strategy-specific
// delay_seconds (immediate=0s, exponential up to 300s, linear up to 600s per
// spec §4.10 step 7) into a time.Duration. A non-positive value retries
// immediately rather than waiting.
func retryDelay(delaySeconds float64) time.Duration {
	if delaySeconds <= 0 {
		return 0
	}
	return time.Duration(delaySeconds * float64(time.Second))
}

func (e *Executor) resolveAgent(ctx context.Context, task domain.Task) (domain.Agent, error) {
	if task.AgentID != "" {
		return e.store.GetAgent(ctx, task.AgentID)
	}
	agents, err := e.store.ListAgents(ctx, task.WorkspaceID)
	if err != nil {
		return domain.Agent{}, err
	}
	for _, a := range agents {
		if !a.Available() || e.breakerOpen(task.WorkspaceID, a.ID) {
			continue
		}
		if task.AssignedRole != "" && a.Role != task.AssignedRole {
			continue
		}
		return a, nil
	}
	for _, a := range agents {
		if a.Available() && !e.breakerOpen(task.WorkspaceID, a.ID) {
			return a, nil
		}
	}
	return domain.Agent{}, fmt.Errorf("executor: no available agent in workspace %s", task.WorkspaceID)
}

// workspaceHealthScore gives the Recovery Analyser a coarse read on the
// workspace's condition, mirroring _get_recovery_context's status-based
// scoring (active=90, processing_tasks=75, anything else=50). Falls back to
// 100 (healthy) if the workspace can't be read, matching
// RecoveryContext.workspace_health_score's 100.0 default.
func (e *Executor) workspaceHealthScore(ctx context.Context, workspaceID string) float64 {
	w, err := e.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return 100
	}
	switch w.Status {
	case domain.WorkspaceActive:
		return 90
	case domain.WorkspaceProcessingTasks:
		return 75
	default:
		return 50
	}
}

// breakerOpen reports whether the agent's circuit for this workspace is
// currently quarantined, so resolveAgent doesn't hand a task to an agent a
// prior circuit_break decision just tripped (spec.md:235).
func (e *Executor) breakerOpen(workspaceID, agentID string) bool {
	if e.analyser == nil {
		return false
	}
	return e.analyser.Breakers().State(workspaceID, agentID) == gobreaker.StateOpen
}
