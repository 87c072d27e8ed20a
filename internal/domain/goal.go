package domain

import "time"

// GoalStatus is the lifecycle state of a Goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalBlocked   GoalStatus = "blocked"
)

// Goal is a measurable objective extracted from (or explicitly attached to) a
// Workspace's goal text.
//
// Invariant: CurrentValue <= TargetValue except when the metric is a
// reduction metric (IsMinimum == false means the target is a ceiling, not a
// floor — e.g. "reduce churn below 5%").
type Goal struct {
	ID                     string
	WorkspaceID            string
	MetricType             string
	TargetValue            float64
	CurrentValue           float64
	Unit                   string
	IsMinimum              bool
	IsPercentage           bool
	Priority               int // 1..3, 1 highest
	Status                 GoalStatus
	LastValidationAt       *time.Time
	AssetRequirementsCount int
}

// ProgressRatio returns current/target in [0, 1+], 0 when target is zero.
func (g Goal) ProgressRatio() float64 {
	if g.TargetValue == 0 {
		return 0
	}
	return g.CurrentValue / g.TargetValue
}

// GapPercentage returns max(0, (target-current)/target*100).
func (g Goal) GapPercentage() float64 {
	if g.TargetValue <= 0 {
		return 0
	}
	gap := (g.TargetValue - g.CurrentValue) / g.TargetValue * 100
	if gap < 0 {
		return 0
	}
	return gap
}

// RequirementStatus is the lifecycle state of an AssetRequirement.
type RequirementStatus string

const (
	RequirementPending    RequirementStatus = "pending"
	RequirementInProgress RequirementStatus = "in_progress"
	RequirementFulfilled  RequirementStatus = "fulfilled"
)

// AcceptanceCriteria is a structured, free-form description of what makes an
// artifact acceptable for a requirement: a schema name that
// deliverable.ValidatePayload checks payloads against, plus arbitrary fields
// that are stored but not read by any validation step.
type AcceptanceCriteria struct {
	SchemaName string
	Fields     map[string]any
}

// AssetRequirement is a concrete deliverable component a Goal needs.
//
// Invariant: fulfilment requires at least one approved Artifact referencing
// this requirement's ID.
type AssetRequirement struct {
	ID                 string
	GoalID             string
	AssetName          string
	AssetType          string
	AssetFormat        string
	AcceptanceCriteria AcceptanceCriteria
	Priority           int
	BusinessValueScore float64 // [0,1]
	Status             RequirementStatus
}
