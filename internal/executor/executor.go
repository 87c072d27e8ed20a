// Package executor implements the C11 Task Executor: a bounded worker pool
// consuming a bounded in-memory queue, plus a control loop that bootstraps
// idle workspaces and keeps the queue topped up from the Store's pending
// tasks (spec §4.10). Grounded on the teacher's runtime/registry
// Manager.StartSync/StopSync ticker shape for the control loop, and on
// jordigilh-kubernaut's go.mod golang.org/x/sync dependency for the
// semaphore-bounded worker fan-out.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/agentruntime"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/budget"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/deliverable"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/idempotency"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/recovery"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/thinking"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/toolregistry"
)

// queueCapacityFactor is the "10·workers" bound on the executor queue (spec
// §4.10 "a bounded queue (size 10·workers)").
const queueCapacityFactor = 10

// Stats is the snapshot returned by Stats().
type Stats struct {
	Running       bool
	Paused        bool
	Workers       int
	QueueDepth    int
	QueueCapacity int
}

// Executor implements the C11 contract.
type Executor struct {
	store       store.Store
	runtime     agentruntime.AgentRuntime
	tel         telemetry.Telemetry
	thinking    *thinking.Recorder
	analyser    *recovery.Analyser
	deliverable *deliverable.Engine

	budget   *budget.Tracker
	activity *ActivityRing
	gate     *Gate
	tools    toolregistry.Registry

	workers             int
	maxRecoveryAttempts int

	queue chan domain.Task

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	controlWG  sync.WaitGroup
	poolWG     sync.WaitGroup
}

// New constructs an Executor. Any of thinking/analyser/deliverable may be
// nil, in which case the corresponding step in the worker pipeline is
// skipped (useful for focused tests). A nil tools registry falls back to
// toolregistry.NoopRegistry.
func New(st store.Store, runtime agentruntime.AgentRuntime, tel telemetry.Telemetry,
	think *thinking.Recorder, analyser *recovery.Analyser, deliv *deliverable.Engine,
	tools toolregistry.Registry,
	workers, maxRecoveryAttempts int) *Executor {
	if workers <= 0 {
		workers = 3
	}
	if tools == nil {
		tools = toolregistry.NoopRegistry{}
	}
	return &Executor{
		store: st, runtime: runtime, tel: tel,
		thinking: think, analyser: analyser, deliverable: deliv,
		budget: budget.New(), activity: NewActivityRing(0), gate: NewGate(), tools: tools,
		workers: workers, maxRecoveryAttempts: maxRecoveryAttempts,
		queue: make(chan domain.Task, workers*queueCapacityFactor),
	}
}

// Start launches the control loop and the worker pool. Calling Start twice
// without an intervening Stop returns an error.
func (e *Executor) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("executor: already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	queue := e.queue

	e.controlWG.Add(1)
	go e.controlLoop(runCtx)

	sem := semaphore.NewWeighted(int64(e.workers))
	eg, _ := errgroup.WithContext(runCtx)
	e.poolWG.Add(1)
	go func() {
		defer e.poolWG.Done()
		e.dispatch(runCtx, queue, eg, sem)
		_ = eg.Wait()
	}()
	return nil
}

// Stop signals both loops to exit, stops accepting new work, and waits for
// in-flight tasks to finish their current agent call before returning (spec
// §5 "Cancellation & timeouts": in-flight tasks finish, no new work picked
// up). Closing the queue is the idiomatic-Go equivalent of the reference's
// N-sentinel-values shutdown signal.
func (e *Executor) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.cancel = nil
	close(e.queue)
	e.mu.Unlock()

	cancel()
	e.controlWG.Wait()
	e.poolWG.Wait()

	// Recreate the queue so a subsequent Start has a fresh channel to send on.
	e.mu.Lock()
	e.queue = make(chan domain.Task, e.workers*queueCapacityFactor)
	e.mu.Unlock()
}

// Pause closes the cooperative gate: workers finish their current task and
// then block before claiming another; the control loop stops enqueuing new
// work until Resume.
func (e *Executor) Pause() { e.gate.Pause() }

// Resume reopens the gate.
func (e *Executor) Resume() { e.gate.Resume() }

// Enqueue submits task to the queue, blocking until either it is accepted or
// ctx is done.
func (e *Executor) Enqueue(ctx context.Context, task domain.Task) error {
	e.mu.Lock()
	q := e.queue
	e.mu.Unlock()
	select {
	case q <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryEnqueue submits task without blocking, reporting whether the queue had
// capacity. Used by the control loop, which tolerates dropping work to the
// next 10s cycle over blocking.
func (e *Executor) TryEnqueue(task domain.Task) bool {
	e.mu.Lock()
	q := e.queue
	e.mu.Unlock()
	select {
	case q <- task:
		return true
	default:
		return false
	}
}

// TriggerInitial creates the single Project-Manager-like bootstrap task for
// a workspace that has none yet (spec §4.10 "create_initial_workspace_task").
func (e *Executor) TriggerInitial(ctx context.Context, workspaceID string) (domain.Task, error) {
	w, err := e.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return domain.Task{}, fmt.Errorf("executor: trigger_initial: %w", err)
	}

	active := domain.GoalActive
	goals, err := e.store.ListWorkspaceGoals(ctx, workspaceID, store.GoalFilter{Status: &active})
	if err != nil {
		return domain.Task{}, fmt.Errorf("executor: trigger_initial: list goals: %w", err)
	}
	var goalID string
	if len(goals) > 0 {
		goalID = goals[0].ID
	}

	now := time.Now().UTC()
	task := domain.Task{
		ID:           uuid.NewString(),
		WorkspaceID:  workspaceID,
		GoalID:       goalID,
		AssignedRole: "project_manager",
		Name:         "Plan and delegate workspace goals",
		Description:  fmt.Sprintf("Review the goal %q, break it into asset requirements, and delegate tasks to the team.", w.GoalText),
		Status:       domain.TaskPending,
		Priority:     domain.PriorityHigh,
		AIGenerated:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	key := idempotency.TaskKey(workspaceID, "bootstrap", task.Name)
	created, err := e.store.CreateTask(ctx, task, key)
	if err != nil {
		return domain.Task{}, fmt.Errorf("executor: trigger_initial: create task: %w", err)
	}

	e.activity.record(ActivityEvent{
		Timestamp: now, Event: ActivityInitialTaskCreated,
		TaskID: created.ID, WorkspaceID: workspaceID, Summary: created.Name,
	})
	e.tel.Broadcast(ctx, telemetry.EventInitialTaskCreated, created.ID)
	return created, nil
}

// Stats reports a point-in-time snapshot of the pool.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Running: e.running, Paused: e.gate.Paused(), Workers: e.workers,
		QueueDepth: len(e.queue), QueueCapacity: cap(e.queue),
	}
}

// RecentActivity returns up to limit recent-activity events, optionally
// filtered to a single workspace.
func (e *Executor) RecentActivity(workspaceID string, limit int) []ActivityEvent {
	return e.activity.Recent(workspaceID, limit)
}

// HasRecentActivity implements health.ActivitySource by delegating to the
// executor's activity ring, so a *Executor can be passed directly as the
// Health Manager's activity source.
func (e *Executor) HasRecentActivity(workspaceID string, within time.Duration) bool {
	return e.activity.HasRecentActivity(workspaceID, within)
}

// BudgetTracker exposes the executor's cost ledger for external reporting.
func (e *Executor) BudgetTracker() *budget.Tracker { return e.budget }

// ToolRegistry exposes the registry threaded into every task's ContextData.
func (e *Executor) ToolRegistry() toolregistry.Registry { return e.tools }
