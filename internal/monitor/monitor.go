// Package monitor implements the C10 Goal Monitor: a single-threaded
// cooperative controller running a fixed-interval reconciliation loop, plus
// a synchronous "immediate validation" entry point other components can call
// to bypass the interval (spec §4.9). The ticker-driven start/stop shape is
// grounded on the teacher's runtime/registry Manager.StartSync/StopSync/
// syncRegistry loop.
package monitor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/health"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/planner"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/validator"
)

// Enqueuer is the seam into the C11 Executor: newly planned tasks are
// enqueued immediately rather than waiting for the Executor's own polling
// (spec §4.9 step 8).
type Enqueuer interface {
	Enqueue(ctx context.Context, task domain.Task) error
}

// Monitor implements the C10 contract.
type Monitor struct {
	store    store.Store
	tel      telemetry.Telemetry
	health   *health.Manager
	validate *validator.Validator
	plan     *planner.Planner
	enqueuer Enqueuer

	interval time.Duration

	mu          sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	recheckOnce map[string]*time.Timer
}

// New constructs a Monitor. enqueuer may be nil, in which case newly planned
// tasks are persisted (by the planner) but not proactively enqueued — the
// Executor's own polling will still pick them up.
func New(st store.Store, tel telemetry.Telemetry, h *health.Manager, v *validator.Validator, p *planner.Planner, enqueuer Enqueuer, interval time.Duration) *Monitor {
	return &Monitor{
		store: st, tel: tel, health: h, validate: v, plan: p, enqueuer: enqueuer,
		interval: interval, recheckOnce: make(map[string]*time.Timer),
	}
}

// Start launches the fixed-interval reconciliation loop in the background.
// Calling Start twice without an intervening Stop returns an error.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return fmt.Errorf("monitor: already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go m.loop(loopCtx)
	return nil
}

// Stop signals the loop to exit and waits for it to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.runCycleLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runCycleLogged(ctx)
		}
	}
}

func (m *Monitor) runCycleLogged(ctx context.Context) {
	if err := m.RunCycle(ctx); err != nil && m.tel != nil {
		m.tel.Logger().Error(ctx, "monitor: cycle failed", "error", err.Error())
	}
}

// RunCycle executes one reconciliation pass (spec §4.9 steps 1-9). It is
// exported so other components' "immediate validation" calls and tests can
// drive it synchronously outside the ticker.
func (m *Monitor) RunCycle(ctx context.Context) error {
	if m.health != nil {
		if _, err := m.health.Scan(ctx); err != nil {
			return fmt.Errorf("monitor: health scan: %w", err)
		}
	}

	workspaces, err := m.store.ListActiveWorkspaces(ctx)
	if err != nil {
		return fmt.Errorf("monitor: list workspaces: %w", err)
	}

	for _, w := range workspaces {
		if err := m.reconcileWorkspace(ctx, w); err != nil {
			if m.tel != nil {
				m.tel.Logger().Error(ctx, "monitor: reconcile workspace failed", "workspace_id", w.ID, "error", err.Error())
			}
		}
	}
	return nil
}

func (m *Monitor) reconcileWorkspace(ctx context.Context, w domain.Workspace) error {
	agents, err := m.store.ListAgents(ctx, w.ID)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	if !anyAvailable(agents) {
		return nil // spec §4.9 step 3: skip workspaces with no available agent
	}

	active := domain.GoalActive
	goals, err := m.store.ListWorkspaceGoals(ctx, w.ID, store.GoalFilter{Status: &active})
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}

	enqueuedAny := false
	for _, g := range goals {
		newTasks, err := m.reconcileGoal(ctx, w, g)
		if err != nil {
			if m.tel != nil {
				m.tel.Logger().Error(ctx, "monitor: reconcile goal failed", "goal_id", g.ID, "error", err.Error())
			}
			continue
		}
		if len(newTasks) > 0 {
			enqueuedAny = true
		}
	}

	if enqueuedAny {
		m.schedulePriorityRecheck(w.ID)
	}
	return nil
}

func (m *Monitor) reconcileGoal(ctx context.Context, w domain.Workspace, g domain.Goal) ([]domain.Task, error) {
	if m.plan != nil {
		if _, err := m.plan.EnsureRequirements(ctx, g); err != nil {
			return nil, fmt.Errorf("ensure requirements: %w", err)
		}
	}

	tasksSince, err := m.tasksSinceLastValidation(ctx, w.ID, g)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	var created []domain.Task

	opt := decide(g, tasksSince)
	if opt.Proceed && m.validate != nil {
		completed := domain.TaskCompleted
		allCompleted, err := m.store.ListTasks(ctx, w.ID, store.TaskFilter{GoalID: g.ID, Status: &completed})
		if err != nil {
			return nil, fmt.Errorf("list completed tasks: %w", err)
		}
		_, correctiveTasks, err := m.validate.ValidateGoal(ctx, w.ID, g.ID, w.GoalText, allCompleted)
		if err != nil {
			return nil, fmt.Errorf("validate goal: %w", err)
		}
		created = append(created, correctiveTasks...)

		if err := m.store.UpdateGoal(ctx, g.ID, func(goal *domain.Goal) error {
			now := time.Now().UTC()
			goal.LastValidationAt = &now
			return nil
		}); err != nil {
			return nil, fmt.Errorf("update last_validation_at: %w", err)
		}
	}

	if g.ProgressRatio() == 0 && m.plan != nil {
		initial, err := m.plan.PlanInitial(ctx, g)
		if err != nil {
			return nil, fmt.Errorf("plan initial: %w", err)
		}
		created = append(created, initial...)
	}

	for _, t := range created {
		if m.enqueuer == nil {
			continue
		}
		if err := m.enqueuer.Enqueue(ctx, t); err != nil && m.tel != nil {
			m.tel.Logger().Error(ctx, "monitor: enqueue failed", "task_id", t.ID, "error", err.Error())
		}
	}
	return created, nil
}

func (m *Monitor) tasksSinceLastValidation(ctx context.Context, workspaceID string, g domain.Goal) ([]domain.Task, error) {
	tasks, err := m.store.ListTasks(ctx, workspaceID, store.TaskFilter{GoalID: g.ID})
	if err != nil {
		return nil, err
	}
	if g.LastValidationAt == nil {
		return tasks, nil
	}
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.UpdatedAt.After(*g.LastValidationAt) {
			out = append(out, t)
		}
	}
	return out, nil
}

// schedulePriorityRecheck arranges a one-shot re-run of this workspace's
// reconciliation 3-5 minutes out (spec §4.9 step 9), replacing any pending
// recheck for the same workspace rather than stacking them.
func (m *Monitor) schedulePriorityRecheck(workspaceID string) {
	delay := 3*time.Minute + time.Duration(rand.Intn(120))*time.Second

	m.mu.Lock()
	if existing, ok := m.recheckOnce[workspaceID]; ok {
		existing.Stop()
	}
	m.recheckOnce[workspaceID] = time.AfterFunc(delay, func() {
		ctx := context.Background()
		w, err := m.store.GetWorkspace(ctx, workspaceID)
		if err != nil {
			return
		}
		if err := m.reconcileWorkspace(ctx, w); err != nil && m.tel != nil {
			m.tel.Logger().Error(ctx, "monitor: priority recheck failed", "workspace_id", workspaceID, "error", err.Error())
		}
	})
	m.mu.Unlock()
}

func anyAvailable(agents []domain.Agent) bool {
	for _, a := range agents {
		if a.Available() {
			return true
		}
	}
	return false
}
