package planner

import (
	"sort"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
)

// taskTypeWeight is the task-type contribution to the priority score (spec
// §4.6 step 4 weight table).
var taskTypeWeight = map[string]float64{
	"integration": 3.5,
	"creation":    3.0,
	"analysis":    2.5,
	"validation":  2.0,
	"research":    2.0,
}

const defaultTaskTypeWeight = 1.5

func basePriorityScore(p domain.TaskPriority) float64 {
	switch p {
	case domain.PriorityHigh:
		return 3.0
	case domain.PriorityMedium:
		return 2.0
	default:
		return 1.0
	}
}

// score computes the spec §4.6 step 4 priority score for task t belonging to
// goal, contributing to requirement req:
//
//	base priority + urgency (goal progress gap) + business-value contribution
//	+ task-type weight + empty-dependency bonus.
func score(t domain.Task, goal domain.Goal, req domain.AssetRequirement) float64 {
	s := basePriorityScore(t.Priority)

	urgency := goal.GapPercentage() / 100 * 2.0 // 0..2
	s += urgency

	s += req.BusinessValueScore * 1.5 // 0..1.5

	taskType, _ := t.ContextData["task_type"].(string)
	if w, ok := taskTypeWeight[taskType]; ok {
		s += w
	} else {
		s += defaultTaskTypeWeight
	}

	if len(t.Dependencies) == 0 {
		s += 0.5
	}
	if t.IsCorrective {
		s += 5.0
	}
	return s
}

// sequence orders generated into a dependency-respecting, priority-descending
// batch (spec §4.6 steps 5-6). Dependencies name sibling tasks by Name within
// the same batch; a task whose declared dependency isn't present in the batch
// (already satisfied, or external) is treated as ready immediately.
func sequence(generated []domain.Task, goal domain.Goal, requirements []domain.AssetRequirement) []domain.Task {
	reqByID := make(map[string]domain.AssetRequirement, len(requirements))
	for _, r := range requirements {
		reqByID[r.ID] = r
	}

	scored := make([]float64, len(generated))
	byName := make(map[string]int, len(generated))
	for i, t := range generated {
		scored[i] = score(t, goal, reqByID[t.AssetRequirementID])
		byName[t.Name] = i
	}

	remaining := make(map[int]bool, len(generated))
	for i := range generated {
		remaining[i] = true
	}

	var ordered []domain.Task
	for len(remaining) > 0 {
		ready := make([]int, 0)
		for i := range remaining {
			if dependenciesSatisfied(generated[i], byName, remaining) {
				ready = append(ready, i)
			}
		}
		if len(ready) == 0 {
			// Circular or external-only dependency remainder: emit whatever
			// is left in score order rather than deadlocking the batch.
			for i := range remaining {
				ready = append(ready, i)
			}
		}
		sort.SliceStable(ready, func(a, b int) bool { return scored[ready[a]] > scored[ready[b]] })
		for _, i := range ready {
			ordered = append(ordered, generated[i])
			delete(remaining, i)
		}
	}
	return ordered
}

func dependenciesSatisfied(t domain.Task, byName map[string]int, remaining map[int]bool) bool {
	for _, dep := range t.Dependencies {
		if idx, ok := byName[dep]; ok && remaining[idx] {
			return false
		}
	}
	return true
}
