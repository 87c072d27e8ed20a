// Package store defines the C1 Store port: durable CRUD plus conditional
// compare-and-set on the core entities, shaped after the teacher's
// runtime/agent/run.Store and runtime/agent/session.Store ports. Every
// component (Goal Monitor, Executor, Recovery Analyser, Goal Validator,
// Deliverable Engine, Health Manager) depends on this interface rather than
// on any concrete backend; internal/store/memstore is the default in-process
// implementation and internal/store/mongostore is the durable adapter.
package store

import (
	"context"
	"errors"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
)

// Sentinel errors, matching spec §4.1's "NotFound, Conflict, Unavailable,
// Invalid" taxonomy and named after the teacher's run.ErrNotFound /
// session.ErrSessionNotFound convention. Use errors.Is against these, and
// errors.As against *ConflictError when the expected/actual status is needed.
var (
	ErrNotFound   = errors.New("store: not found")
	ErrConflict   = errors.New("store: compare-and-set conflict")
	ErrUnavailable = errors.New("store: unavailable")
	ErrInvalid    = errors.New("store: invalid")
)

// ConflictError carries the expected/actual values of a failed CAS so callers
// (primarily C5 Recovery Analyser and C11 Executor) can decide whether to
// retry, refresh, or give up. errors.Is(err, ErrConflict) holds for it.
type ConflictError struct {
	Field    string
	Expected any
	Actual   any
}

func (e *ConflictError) Error() string {
	return "store: compare-and-set conflict on " + e.Field
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// GoalFilter narrows ListWorkspaceGoals. A zero value matches every goal.
type GoalFilter struct {
	Status *domain.GoalStatus
}

// TaskFilter narrows ListTasks. A zero value matches every task.
type TaskFilter struct {
	Status   *domain.TaskStatus
	GoalID   string
	AgentID  string
}

// InsightFilter narrows GetInsights by tag intersection; an empty Tags slice
// matches every insight for the workspace.
type InsightFilter struct {
	Tags  []string
	Limit int
}

// EventRecord is one row in the append-only event log written by LogEvent,
// primarily used by the Health Manager and operational tooling, distinct
// from the real-time Telemetry.Broadcast bus.
type EventRecord struct {
	WorkspaceID string
	EventType   string
	Payload     map[string]any
	OccurredAt  string
}

// Store is the C1 port. All methods are synchronous and fallible; consumers
// must treat ErrUnavailable as retriable and everything else as terminal for
// the current attempt. Implementations must be safe for concurrent use.
type Store interface {
	// Workspaces
	GetWorkspace(ctx context.Context, id string) (domain.Workspace, error)
	ListActiveWorkspaces(ctx context.Context) ([]domain.Workspace, error)
	// ListAllWorkspaces returns every workspace regardless of status, used by
	// the Health Manager scan which must also see needs_intervention rows
	// that ListActiveWorkspaces deliberately excludes.
	ListAllWorkspaces(ctx context.Context) ([]domain.Workspace, error)
	ListWorkspacesWithPendingTasks(ctx context.Context) ([]domain.Workspace, error)
	UpdateWorkspaceStatus(ctx context.Context, id string, newStatus domain.WorkspaceStatus, expected domain.WorkspaceStatus) error
	UpsertWorkspace(ctx context.Context, w domain.Workspace) error

	// Agents
	ListAgents(ctx context.Context, workspaceID string) ([]domain.Agent, error)
	GetAgent(ctx context.Context, id string) (domain.Agent, error)
	UpdateAgentStatus(ctx context.Context, id string, newStatus domain.AgentStatus) error
	UpsertAgent(ctx context.Context, a domain.Agent) error

	// Goals and requirements
	ListWorkspaceGoals(ctx context.Context, workspaceID string, filter GoalFilter) ([]domain.Goal, error)
	// ListAllGoals returns every goal across every workspace, used by the
	// Health Manager to find goals whose workspace_id no longer resolves to
	// any workspace (orphaned goals, spec §4.8).
	ListAllGoals(ctx context.Context) ([]domain.Goal, error)
	GetGoal(ctx context.Context, id string) (domain.Goal, error)
	UpdateGoal(ctx context.Context, id string, mutate func(g *domain.Goal) error) error
	UpdateGoalCurrentValue(ctx context.Context, id string, newValue float64, expected float64) error
	UpsertGoal(ctx context.Context, g domain.Goal) error
	// DeleteGoalsForWorkspace removes every goal belonging to workspaceID,
	// reporting how many rows were deleted. Used by orphaned-goal cleanup,
	// where the owning workspace is already confirmed gone.
	DeleteGoalsForWorkspace(ctx context.Context, workspaceID string) (int, error)
	GetAssetRequirements(ctx context.Context, goalID string) ([]domain.AssetRequirement, error)
	UpsertAssetRequirement(ctx context.Context, r domain.AssetRequirement) error

	// Tasks
	ListTasks(ctx context.Context, workspaceID string, filter TaskFilter) ([]domain.Task, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	CreateTask(ctx context.Context, t domain.Task, idempotencyKey string) (domain.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, newStatus domain.TaskStatus, result *domain.TaskResult, expected domain.TaskStatus) error
	// UpdateTask applies an arbitrary field-level mutation (e.g. RecoveryCount,
	// AgentID, Deadline), mirroring UpdateGoal's mutate-callback shape. The
	// Executor uses this to bump RecoveryCount and revert a claimed task back
	// to pending without going through the status-CAS path.
	UpdateTask(ctx context.Context, id string, mutate func(t *domain.Task) error) error

	// Artifacts and deliverables
	InsertArtifact(ctx context.Context, a domain.Artifact) error
	ListArtifacts(ctx context.Context, taskID string) ([]domain.Artifact, error)
	InsertDeliverable(ctx context.Context, d domain.Deliverable) error
	LatestDeliverable(ctx context.Context, goalID string) (domain.Deliverable, error)

	// Thinking processes
	SaveThinkingProcess(ctx context.Context, p domain.ThinkingProcess) error
	GetThinkingProcess(ctx context.Context, processID string) (domain.ThinkingProcess, error)
	ListThinkingProcesses(ctx context.Context, workspaceID string, limit int) ([]domain.ThinkingProcess, error)

	// Recovery and insights
	InsertRecoveryAttempt(ctx context.Context, r domain.RecoveryAttempt) error
	ListRecoveryAttempts(ctx context.Context, taskID string) ([]domain.RecoveryAttempt, error)
	InsertInsight(ctx context.Context, i domain.Insight) error
	GetInsights(ctx context.Context, workspaceID string, filter InsightFilter) ([]domain.Insight, error)

	// Operational log
	LogEvent(ctx context.Context, e EventRecord) error
}
