// Package thinking implements the C4 Thinking Recorder: start/append/
// complete/get/list over a transport-agnostic reasoning trace, broadcast to
// Telemetry as each step lands. Adapted from the teacher's
// runtime/agent/runlog package: runlog treats the log as an immutable
// sequence of hook events keyed by RunID; the Recorder instead keeps one
// mutable-until-sealed ThinkingProcess row per process, because spec §4.3
// requires get/list to return the whole trace plus a final conclusion and
// confidence, not a paginated event stream.
package thinking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
)

// ErrProcessSealed is returned by Append/Complete once a process has already
// been completed, enforcing the append-only-until-sealed invariant on
// domain.ThinkingProcess.
var ErrProcessSealed = errors.New("thinking: process already completed")

// Recorder implements the C4 contract over a store.Store and
// telemetry.Telemetry.
type Recorder struct {
	store store.Store
	tel   telemetry.Telemetry
}

// New constructs a Recorder.
func New(st store.Store, tel telemetry.Telemetry) *Recorder {
	return &Recorder{store: st, tel: tel}
}

// Start begins a new reasoning trace and broadcasts EventProcessStarted.
func (r *Recorder) Start(ctx context.Context, workspaceID, reasonContext, procType string) (string, error) {
	processID := uuid.NewString()
	p := domain.ThinkingProcess{
		ProcessID:   processID,
		WorkspaceID: workspaceID,
		Context:     reasonContext,
		Type:        procType,
		StartedAt:   time.Now().UTC(),
	}
	if err := r.store.SaveThinkingProcess(ctx, p); err != nil {
		return "", fmt.Errorf("thinking: start: %w", err)
	}
	r.tel.Broadcast(ctx, telemetry.EventProcessStarted, telemetry.ProcessStartedEvent{
		ProcessID: processID, WorkspaceID: workspaceID, Context: reasonContext, Type: procType,
	})
	return processID, nil
}

// Append adds a reasoning step. stepType is normalized via MapLegacyStepType
// so callers that still speak the legacy ("reasoning"/"evaluation"-only)
// vocabulary from original_source continue to work.
func (r *Recorder) Append(ctx context.Context, processID string, stepType domain.ThinkingStepType, content string, confidence float64, metadata map[string]any) error {
	p, err := r.store.GetThinkingProcess(ctx, processID)
	if err != nil {
		return fmt.Errorf("thinking: append: %w", err)
	}
	if p.Sealed() {
		return ErrProcessSealed
	}
	step := domain.ThinkingStep{
		ID:         uuid.NewString(),
		Type:       MapLegacyStepType(string(stepType)),
		Content:    content,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
		Metadata:   metadata,
	}
	p.Steps = append(p.Steps, step)
	if err := r.store.SaveThinkingProcess(ctx, p); err != nil {
		return fmt.Errorf("thinking: append: %w", err)
	}
	r.tel.Broadcast(ctx, telemetry.EventStepAdded, telemetry.StepAddedEvent{
		ProcessID: processID,
		Step: telemetry.ThinkingStepPayload{
			ID: step.ID, Type: string(step.Type), Content: step.Content,
			Confidence: step.Confidence, Timestamp: step.Timestamp, Metadata: step.Metadata,
		},
	})
	return nil
}

// Complete seals the process with a final conclusion and confidence. Further
// Append calls on this process return ErrProcessSealed.
func (r *Recorder) Complete(ctx context.Context, processID, conclusion string, confidence float64) error {
	p, err := r.store.GetThinkingProcess(ctx, processID)
	if err != nil {
		return fmt.Errorf("thinking: complete: %w", err)
	}
	if p.Sealed() {
		return ErrProcessSealed
	}
	now := time.Now().UTC()
	p.FinalConclusion = conclusion
	p.OverallConfidence = confidence
	p.CompletedAt = &now
	if err := r.store.SaveThinkingProcess(ctx, p); err != nil {
		return fmt.Errorf("thinking: complete: %w", err)
	}
	r.tel.Broadcast(ctx, telemetry.EventProcessCompleted, telemetry.ProcessCompletedEvent{
		ProcessID: processID, Conclusion: conclusion, Confidence: confidence, TotalSteps: len(p.Steps),
	})
	return nil
}

// Get retrieves the full trace for a process.
func (r *Recorder) Get(ctx context.Context, processID string) (domain.ThinkingProcess, error) {
	return r.store.GetThinkingProcess(ctx, processID)
}

// List returns the most recent processes for a workspace, newest first.
func (r *Recorder) List(ctx context.Context, workspaceID string, limit int) ([]domain.ThinkingProcess, error) {
	return r.store.ListThinkingProcesses(ctx, workspaceID, limit)
}

// MapLegacyStepType normalizes free-form step-type strings onto the closed
// spec §4.3 taxonomy. original_source emits "context_loading" from its
// streaming planner narration (thinking_process.py's multi-step generator),
// a value outside the seven allowed ones — it is treated as the analysis
// phase of the trace. Recognized taxonomy values pass through unchanged.
func MapLegacyStepType(raw string) domain.ThinkingStepType {
	switch domain.ThinkingStepType(raw) {
	case domain.StepAnalysis, domain.StepReasoning, domain.StepEvaluation, domain.StepConclusion,
		domain.StepPerspective, domain.StepCriticalReview, domain.StepSynthesis:
		return domain.ThinkingStepType(raw)
	case "context_loading":
		return domain.StepAnalysis
	default:
		return domain.StepAnalysis
	}
}
