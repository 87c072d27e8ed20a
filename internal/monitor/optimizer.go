package monitor

import (
	"time"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
)

// minRevalidationResolution is the floor below which two validation passes
// of the same goal are considered redundant regardless of new task activity
// (spec §4.9.1 "validated within the minimum resolution").
const minRevalidationResolution = time.Minute

// optimizerDecision is the Validation Optimizer's verdict for one goal.
type optimizerDecision struct {
	Proceed bool
	Reason  string
}

// decide implements spec §4.9.1: skip if nothing changed since
// last_validation_at, the goal was validated within the minimum resolution,
// or no completed tasks exist for this goal since the last validation.
func decide(goal domain.Goal, tasksSinceLastValidation []domain.Task) optimizerDecision {
	if goal.LastValidationAt == nil {
		return optimizerDecision{Proceed: true, Reason: "never validated"}
	}
	if time.Since(*goal.LastValidationAt) < minRevalidationResolution {
		return optimizerDecision{Proceed: false, Reason: "validated within minimum resolution"}
	}
	if !anyCompleted(tasksSinceLastValidation) {
		return optimizerDecision{Proceed: false, Reason: "no completed tasks since last validation"}
	}
	return optimizerDecision{Proceed: true, Reason: "new completed tasks since last validation"}
}

func anyCompleted(tasks []domain.Task) bool {
	for _, t := range tasks {
		if t.Status == domain.TaskCompleted {
			return true
		}
	}
	return false
}
