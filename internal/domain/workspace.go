// Package domain defines the core entities of the orchestrator: the durable
// rows that the Store (C1) persists and every other component operates on.
// Types here carry no behavior beyond small invariant helpers; business logic
// lives in the owning component packages (validator, planner, executor, ...).
package domain

import "time"

// WorkspaceStatus is the lifecycle state of a Workspace.
type WorkspaceStatus string

const (
	WorkspaceCreated            WorkspaceStatus = "created"
	WorkspaceActive             WorkspaceStatus = "active"
	WorkspaceProcessingTasks    WorkspaceStatus = "processing_tasks"
	WorkspaceNeedsIntervention  WorkspaceStatus = "needs_intervention"
	WorkspacePaused             WorkspaceStatus = "paused"
	WorkspaceCompleted          WorkspaceStatus = "completed"
)

// Budget caps workspace spend. Currency is a free-form ISO 4217 code.
type Budget struct {
	MaxAmount float64
	Currency  string
}

// Workspace is the unit of tenancy: one business goal and the team working it.
//
// Invariant: status transitions follow created→active→(processing_tasks⇄active)
// →completed, with needs_intervention reachable from any non-terminal state and
// recoverable back to active. See health.Manager for the recovery path.
type Workspace struct {
	ID        string
	Name      string
	GoalText  string
	Status    WorkspaceStatus
	Budget    Budget
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanTransitionTo reports whether the workspace status graph permits moving
// from the receiver's current status to next.
func (w Workspace) CanTransitionTo(next WorkspaceStatus) bool {
	if next == WorkspaceNeedsIntervention {
		return w.Status != WorkspaceCompleted
	}
	switch w.Status {
	case WorkspaceCreated:
		return next == WorkspaceActive
	case WorkspaceActive:
		return next == WorkspaceProcessingTasks || next == WorkspaceCompleted
	case WorkspaceProcessingTasks:
		return next == WorkspaceActive || next == WorkspaceCompleted
	case WorkspaceNeedsIntervention:
		return next == WorkspaceActive
	case WorkspacePaused:
		return next == WorkspaceActive
	case WorkspaceCompleted:
		return false
	}
	return false
}

// IsTerminal reports whether the workspace can no longer transition (outside
// of the core's control; external deletion is an out-of-scope concern).
func (w Workspace) IsTerminal() bool {
	return w.Status == WorkspaceCompleted
}
