package domain

import "time"

// DeliverableSection is one titled block of the aggregated user-facing output.
type DeliverableSection struct {
	Title   string
	Content string
	// ArtifactIDs lists the artifacts bundled into this section.
	ArtifactIDs []string
}

// Deliverable is the aggregated, goal-scoped, user-facing output.
//
// Creation: deliverable.Engine.Aggregate creates one once GoalID has asset
// requirements, at least one completed task and at least one approved
// artifact. It does not check AssetRequirement status, so requirements need
// not be RequirementFulfilled.
type Deliverable struct {
	ID           string
	WorkspaceID  string
	GoalID       string
	Title        string
	Summary      string
	Sections     []DeliverableSection
	QualityScore float64
	CreatedAt    time.Time
}

// InsightType classifies a learned lesson.
type InsightType string

const (
	InsightFailureLesson  InsightType = "failure_lesson"
	InsightSuccessPattern InsightType = "success_pattern"
	InsightConstraint     InsightType = "constraint"
)

// Insight is a learned lesson tagged with relevance keys, consumed by the
// planner on future similar goals.
type Insight struct {
	ID          string
	WorkspaceID string
	Type        InsightType
	Content     string
	Tags        []string
	Confidence  float64
	CreatedAt   time.Time
}
