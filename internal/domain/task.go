package domain

import "time"

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskQueued     TaskStatus = "queued"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// TaskPriority is a coarse-grained scheduling priority. Planner scoring (the
// planner package's score function) produces a finer-grained numeric score derived from this.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// TaskResult is the outcome payload recorded by the Executor on completion or
// failure. Fields mirror spec §4.10 step 6/7.
type TaskResult struct {
	Output             string
	StatusDetail       string
	ExecutionTime      time.Duration
	ModelUsed          string
	InputTokens        int
	OutputTokens       int
	TokensEstimated    bool
	CostEstimated      float64
	AgentMetadata      map[string]any
	LastError          string
	// StructuredPayload carries the AgentRuntime's parsed structured output
	// (when the agent returned one), letting the Goal Validator read known
	// achievement keys directly instead of regex-scanning Output.
	StructuredPayload map[string]any
}

// Task is a unit of work for a single agent.
//
// Invariants:
//   - a Task in TaskInProgress has a non-empty AgentID.
//   - RecoveryCount <= MAX_RECOVERY_ATTEMPTS_PER_TASK (config.Config).
//   - corrective tasks (IsCorrective) always have a non-empty GoalID.
type Task struct {
	ID                  string
	WorkspaceID         string
	GoalID              string // optional
	AssetRequirementID  string // optional
	AgentID             string // optional
	AssignedRole        string // optional
	Name                string
	Description         string
	Status              TaskStatus
	Priority            TaskPriority
	IsCorrective        bool
	NumericalTarget     *float64
	ContributionExpected *float64
	RecoveryCount       int
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Deadline            *time.Time
	Dependencies        []string
	ContextData         map[string]any
	Result              *TaskResult

	// AIGenerated marks tasks synthesized by planner.PlanInitial/PlanCorrective
	// (spec §4.6 step 3).
	AIGenerated bool
	// IdempotencyKey is the deterministic hash(goal_id, requirement_id,
	// task_name) used by the Store to dedupe retried inserts (spec §5).
	IdempotencyKey string
}

// CanStart reports whether the task may transition to TaskInProgress given an
// agent assignment.
func (t Task) CanStart(agentID string) bool {
	return agentID != "" && (t.Status == TaskPending || t.Status == TaskQueued)
}

// Artifact is the structured output of a task mapped to a requirement.
//
// Invariant: approval (Status == ArtifactApproved) requires QualityScore >=
// the configured approval threshold.
type ArtifactStatus string

const (
	ArtifactDraft    ArtifactStatus = "draft"
	ArtifactApproved ArtifactStatus = "approved"
	ArtifactRejected ArtifactStatus = "rejected"
)

type Artifact struct {
	ID            string
	WorkspaceID   string
	RequirementID string
	TaskID        string
	Content       map[string]any
	QualityScore  float64 // [0,100]
	Status        ArtifactStatus
	CreatedAt     time.Time
}
