package telemetry

import "time"

// AlertType enumerates the system alert kinds from spec §6.
type AlertType string

const (
	AlertOrphanedWorkspace        AlertType = "ORPHANED_WORKSPACE"
	AlertNoAgentsAtAll            AlertType = "NO_AGENTS_AT_ALL"
	AlertNoAvailableAgents        AlertType = "NO_AVAILABLE_AGENTS"
	AlertNoTasksForGoal           AlertType = "NO_TASKS_FOR_GOAL"
	AlertCorrectiveTaskNoAgent    AlertType = "CORRECTIVE_TASK_NO_AGENT"
	AlertCriticalUnrecoverable    AlertType = "CRITICAL_UNRECOVERABLE_ISSUES"
	AlertHealthCheckError         AlertType = "HEALTH_CHECK_ERROR"
)

// AlertSeverity is the severity of a system alert.
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// SystemAlert is the durable/broadcast shape of an alert (spec §6).
type SystemAlert struct {
	Type        AlertType
	Severity    AlertSeverity
	WorkspaceID string
	Description string
	DetectedAt  time.Time
	Component   string
}

// Thinking event payloads (spec §6 "Thinking events").

type ProcessStartedEvent struct {
	ProcessID   string
	WorkspaceID string
	Context     string
	Type        string
}

type ThinkingStepPayload struct {
	ID         string
	Type       string
	Content    string
	Confidence float64
	Timestamp  time.Time
	Metadata   map[string]any
}

type StepAddedEvent struct {
	ProcessID string
	Step      ThinkingStepPayload
}

type ProcessCompletedEvent struct {
	ProcessID   string
	Conclusion  string
	Confidence  float64
	TotalSteps  int
}

// RecoveryAnalysisEvent mirrors spec §6 "Recovery events".
type RecoveryAnalysisEvent struct {
	TaskID      string
	WorkspaceID string
	Decision    string
	Strategy    string
	Confidence  float64
	DelaySeconds float64
	Reasoning   string
	Timestamp   time.Time
}

// Event type name constants used with Telemetry.Broadcast.
const (
	EventProcessStarted   = "thinking.process_started"
	EventStepAdded        = "thinking.step_added"
	EventProcessCompleted = "thinking.process_completed"
	EventRecoveryAnalysis = "recovery.analysis"
	EventTaskStarted      = "executor.task_started"
	EventTaskCompleted    = "executor.task_completed"
	EventTaskFailed       = "executor.task_failed"
	EventInitialTaskCreated = "executor.initial_task_created"
	EventAutoTaskGenerated  = "executor.auto_task_generated"
	EventHandoffRequested   = "executor.handoff_requested"
)
