package domain

import "time"

// ThinkingStepType is the closed vocabulary of reasoning step kinds (spec
// §4.3). Legacy values ("reasoning"/"evaluation" only, as seen in
// original_source) are mapped onto this set by thinking.MapLegacyStepType
// rather than widening the enum — see DESIGN.md Open Question resolution.
type ThinkingStepType string

const (
	StepAnalysis       ThinkingStepType = "analysis"
	StepReasoning      ThinkingStepType = "reasoning"
	StepEvaluation     ThinkingStepType = "evaluation"
	StepConclusion     ThinkingStepType = "conclusion"
	StepPerspective    ThinkingStepType = "perspective"
	StepCriticalReview ThinkingStepType = "critical_review"
	StepSynthesis      ThinkingStepType = "synthesis"
)

// ThinkingStep is one append-only entry in a ThinkingProcess.
type ThinkingStep struct {
	ID         string
	Type       ThinkingStepType
	Content    string
	Confidence float64
	Timestamp  time.Time
	Metadata   map[string]any
}

// ThinkingProcess is the reasoning trace for a task or planning episode.
//
// Invariant: Steps is append-only while CompletedAt is nil; once set, further
// appends are rejected (thinking.ErrProcessSealed).
type ThinkingProcess struct {
	ProcessID          string
	WorkspaceID        string
	Context            string
	Type               string
	Steps              []ThinkingStep
	FinalConclusion     string
	OverallConfidence   float64
	StartedAt           time.Time
	CompletedAt         *time.Time
	Title               string
	SummaryMetadata     map[string]any
}

// Sealed reports whether the process has been finalized via Complete.
func (p ThinkingProcess) Sealed() bool {
	return p.CompletedAt != nil
}

// RecoveryAttempt is an audit record of a single recovery decision (spec
// §4.4).
type RecoveryAttempt struct {
	TaskID        string
	WorkspaceID   string
	AttemptNumber int
	Strategy      string
	Confidence    float64
	DelaySeconds  float64
	Reasoning     string
	Success       *bool
	CreatedAt     time.Time
}
