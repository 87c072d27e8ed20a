// Package health implements the C9 Workspace Health Manager: a 0-100 health
// score per workspace, auto-recoverable-vs-not classification, and the three
// auto-recovery actions named in spec §4.8. Grounded on the teacher's
// reminder/engine.go for the "scan everything, mutate what's recoverable,
// report what isn't" cooperative-controller shape.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
)

// ActivitySource lets the Health Manager factor "recent executor activity"
// into the health score without importing the Executor package directly;
// the Executor's recent-activity ring implements this.
type ActivitySource interface {
	HasRecentActivity(workspaceID string, within time.Duration) bool
}

// Issue is one workspace's health assessment for the current scan.
type Issue struct {
	WorkspaceID    string
	Score          int
	AutoRecoverable bool
	Recovered      bool
	Reasons        []string
}

// Manager implements the C9 contract.
type Manager struct {
	store        store.Store
	tel          telemetry.Telemetry
	activity     ActivitySource
	lockTTL      time.Duration
	activityWindow time.Duration
}

// New constructs a Manager. activity may be nil, in which case the recent-
// activity scoring factor is skipped (neither rewarded nor penalised).
func New(st store.Store, tel telemetry.Telemetry, activity ActivitySource, lockTTL, activityWindow time.Duration) *Manager {
	return &Manager{store: st, tel: tel, activity: activity, lockTTL: lockTTL, activityWindow: activityWindow}
}

// Scan assesses every workspace, attempts auto-recovery for recoverable
// issues, cleans up goals whose workspace no longer exists, and raises a
// system alert for everything it cannot fix (spec §4.8).
func (m *Manager) Scan(ctx context.Context) ([]Issue, error) {
	workspaces, err := m.store.ListAllWorkspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("health: list workspaces: %w", err)
	}

	if err := m.cleanupOrphanedGoals(ctx, workspaces); err != nil {
		return nil, fmt.Errorf("health: cleanup orphaned goals: %w", err)
	}

	issues := make([]Issue, 0, len(workspaces))
	for _, w := range workspaces {
		issue, err := m.assess(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("health: assess %s: %w", w.ID, err)
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// cleanupOrphanedGoals is the third of the three auto-recovery actions from
// spec §4.8: a goal whose workspace_id no longer resolves to any workspace
// row is deleted rather than left to validate or plan against forever,
// mirroring _cleanup_orphaned_goals.
func (m *Manager) cleanupOrphanedGoals(ctx context.Context, existing []domain.Workspace) error {
	goals, err := m.store.ListAllGoals(ctx)
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}

	known := make(map[string]struct{}, len(existing))
	for _, w := range existing {
		known[w.ID] = struct{}{}
	}

	orphanedWorkspaces := make(map[string]struct{})
	for _, g := range goals {
		if _, ok := known[g.WorkspaceID]; !ok {
			orphanedWorkspaces[g.WorkspaceID] = struct{}{}
		}
	}

	for workspaceID := range orphanedWorkspaces {
		deleted, err := m.store.DeleteGoalsForWorkspace(ctx, workspaceID)
		if err != nil {
			return fmt.Errorf("delete goals for %s: %w", workspaceID, err)
		}
		if m.tel != nil {
			m.tel.Alert(ctx, workspaceID, telemetry.AlertOrphanedWorkspace, telemetry.SeverityWarning,
				fmt.Sprintf("cleaned up %d orphaned goal(s) for deleted workspace %s", deleted, workspaceID))
		}
	}
	return nil
}

func (m *Manager) assess(ctx context.Context, w domain.Workspace) (Issue, error) {
	score := 100
	var reasons []string

	if w.Status == domain.WorkspaceCreated {
		score -= 20
		reasons = append(reasons, "workspace never left created status")
	}

	agents, err := m.store.ListAgents(ctx, w.ID)
	if err != nil {
		return Issue{}, err
	}
	if !anyAgentAvailableOrActive(agents) {
		score -= 25
		if len(agents) == 0 {
			reasons = append(reasons, "no agents configured")
		} else {
			reasons = append(reasons, "no agent is available or active")
		}
	}

	goals, err := m.store.ListWorkspaceGoals(ctx, w.ID, store.GoalFilter{})
	if err != nil {
		return Issue{}, err
	}
	if len(goals) > 0 && !m.anyGoalHasTasks(ctx, w.ID, goals) {
		score -= 20
		reasons = append(reasons, "goals exist with no linked tasks")
	}

	if m.activity != nil && !m.activity.HasRecentActivity(w.ID, m.activityWindow) {
		score -= 15
		reasons = append(reasons, "no recent executor activity")
	}

	issue := Issue{WorkspaceID: w.ID, Score: score, Reasons: reasons}
	if len(reasons) == 0 {
		return issue, nil
	}

	recoverable, recovered, err := m.tryRecover(ctx, w)
	if err != nil {
		return Issue{}, err
	}
	issue.AutoRecoverable = recoverable
	issue.Recovered = recovered

	if !recoverable && m.tel != nil {
		m.tel.Alert(ctx, w.ID, telemetry.AlertCriticalUnrecoverable, telemetry.SeverityCritical,
			fmt.Sprintf("workspace %s has unrecoverable health issues: %v", w.ID, reasons))
	}
	return issue, nil
}

// tryRecover applies the per-workspace auto-recovery actions from spec §4.8:
// needs_intervention -> active reset and processing_tasks lock-TTL unlock.
// The third action, orphaned-goal cleanup, runs once per Scan in
// cleanupOrphanedGoals rather than here, since it acts on workspaces that no
// longer exist to assess.
func (m *Manager) tryRecover(ctx context.Context, w domain.Workspace) (recoverable, recovered bool, err error) {
	switch {
	case w.Status == domain.WorkspaceNeedsIntervention:
		if err := m.store.UpdateWorkspaceStatus(ctx, w.ID, domain.WorkspaceActive, domain.WorkspaceNeedsIntervention); err != nil {
			return true, false, nil // couldn't win the CAS this cycle; retry next scan
		}
		return true, true, nil

	case w.Status == domain.WorkspaceProcessingTasks && time.Since(w.UpdatedAt) > m.lockTTL:
		if err := m.store.UpdateWorkspaceStatus(ctx, w.ID, domain.WorkspaceActive, domain.WorkspaceProcessingTasks); err != nil {
			return true, false, nil
		}
		return true, true, nil

	default:
		return false, false, nil
	}
}

func anyAgentAvailableOrActive(agents []domain.Agent) bool {
	for _, a := range agents {
		if a.Status == domain.AgentAvailable || a.Status == domain.AgentActive {
			return true
		}
	}
	return false
}

func (m *Manager) anyGoalHasTasks(ctx context.Context, workspaceID string, goals []domain.Goal) bool {
	for _, g := range goals {
		tasks, err := m.store.ListTasks(ctx, workspaceID, store.TaskFilter{GoalID: g.ID})
		if err == nil && len(tasks) > 0 {
			return true
		}
	}
	return false
}
