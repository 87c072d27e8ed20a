package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
)

// CorrectiveTaskCreator is the seam into the C7 Task Planner, kept as a
// narrow port rather than a direct import of internal/planner so this
// package depends only on the one method it calls.
type CorrectiveTaskCreator interface {
	PlanCorrective(ctx context.Context, goalID string, gapContext map[string]any) (domain.Task, error)
}

// Validator implements the C6 contract: extract requirements, extract
// achievements, validate each requirement, and wire the corrective-action
// side effects named in spec §4.5.3.
type Validator struct {
	store   store.Store
	tel     telemetry.Telemetry
	planner CorrectiveTaskCreator
}

// New constructs a Validator. planner may be nil, in which case corrective
// task creation is skipped (the Insight is still recorded).
func New(st store.Store, tel telemetry.Telemetry, planner CorrectiveTaskCreator) *Validator {
	return &Validator{store: st, tel: tel, planner: planner}
}

// ValidateGoal runs the full extraction+validation pipeline for one goal's
// text against its workspace's completed tasks, and triggers corrective
// action for any severity in {critical, high} (spec §4.5.3). The second
// return value lists every corrective task created this call, so callers
// (the Goal Monitor) can enqueue them immediately rather than waiting for
// the Executor's own polling (spec §4.9 step 8).
func (v *Validator) ValidateGoal(ctx context.Context, workspaceID, goalID, goalText string, completedTasks []domain.Task) ([]Result, []domain.Task, error) {
	requirements := Extract(goalText)
	achievements := ExtractAchievements(completedTasks)

	results := make([]Result, 0, len(requirements))
	var correctiveTasks []domain.Task
	for _, req := range requirements {
		structuredMatch := req.Type == "contacts" || req.Type == "email_sequences" || req.Type == "content_pieces"
		result := ValidateRequirement(req, achievements, structuredMatch && achievements.StructuredCount > 0)
		result.GoalID = goalID
		results = append(results, result)

		if result.Severity == SeverityCritical || result.Severity == SeverityHigh {
			task, err := v.triggerCorrectiveAction(ctx, workspaceID, goalID, req, result)
			if err != nil {
				return results, correctiveTasks, fmt.Errorf("validator: corrective action: %w", err)
			}
			if task.ID != "" {
				correctiveTasks = append(correctiveTasks, task)
			}
		}
	}
	return results, correctiveTasks, nil
}

func (v *Validator) triggerCorrectiveAction(ctx context.Context, workspaceID, goalID string, req Requirement, result Result) (domain.Task, error) {
	bucket := gapBucket(result.GapPercentage)
	insight := domain.Insight{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Type:        domain.InsightFailureLesson,
		Content:     result.Message,
		Tags: []string{
			"metric_" + req.Type,
			fmt.Sprintf("gap_%dpct", bucket),
			"course_correction",
			"critical_gap",
		},
		Confidence: result.Confidence,
		CreatedAt:  time.Now().UTC(),
	}
	if err := v.store.InsertInsight(ctx, insight); err != nil {
		return domain.Task{}, fmt.Errorf("insert insight: %w", err)
	}

	if v.planner == nil {
		return domain.Task{}, nil
	}
	gapContext := map[string]any{
		"requirement_type": req.Type,
		"target":           req.TargetValue,
		"unit":             req.Unit,
		"gap_percentage":   result.GapPercentage,
		"recommendations":  result.Recommendations,
	}
	task, err := v.planner.PlanCorrective(ctx, goalID, gapContext)
	if err != nil {
		// A cooldown rejection (or any other soft refusal from the planner)
		// is expected, routine behaviour under repeated validation cycles,
		// not a validator failure: the insight is already recorded, and the
		// next eligible cycle will retry the corrective task.
		if v.tel != nil {
			v.tel.Logger().Debug(ctx, "validator: corrective task not created", "goal_id", goalID, "requirement_type", req.Type, "error", err.Error())
		}
		return domain.Task{}, nil
	}
	return task, nil
}

func gapBucket(gap float64) int {
	switch {
	case gap >= 80:
		return 80
	case gap >= 50:
		return 50
	case gap >= 20:
		return 20
	default:
		return 0
	}
}
