package deliverable

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store"
)

// minCompletedTasksForAggregation is the "enough completed tasks" threshold
// from spec §4.7 step 4: aggregation is only attempted once the goal has at
// least this many completed tasks in total; completion is not checked per
// requirement.
const minCompletedTasksForAggregation = 1

// Aggregate bundles goal's approved artifacts into a Deliverable, subject to
// a content-hash/timestamp cache (spec §4.7 step 5). The bool return reports
// whether a deliverable was produced (false when there isn't enough
// completed work yet, not an error condition).
func (e *Engine) Aggregate(ctx context.Context, workspaceID, goalID string) (domain.Deliverable, bool, error) {
	requirements, err := e.store.GetAssetRequirements(ctx, goalID)
	if err != nil {
		return domain.Deliverable{}, false, fmt.Errorf("deliverable: get requirements: %w", err)
	}
	if len(requirements) == 0 {
		return domain.Deliverable{}, false, nil
	}

	tasks, err := e.store.ListTasks(ctx, workspaceID, store.TaskFilter{GoalID: goalID})
	if err != nil {
		return domain.Deliverable{}, false, fmt.Errorf("deliverable: list tasks: %w", err)
	}
	completed := filterCompleted(tasks)
	if len(completed) < minCompletedTasksForAggregation {
		return domain.Deliverable{}, false, nil
	}

	key := cacheKey{latestUpdate: latestUpdateOf(completed), contentHash: contentHash(completed)}
	if cached, ok := e.cache.get(key); ok {
		return cached, true, nil
	}

	sections, approvedCount, err := e.buildSections(ctx, requirements, completed)
	if err != nil {
		return domain.Deliverable{}, false, err
	}
	if approvedCount == 0 {
		return domain.Deliverable{}, false, nil
	}

	goal, err := e.store.GetGoal(ctx, goalID)
	if err != nil {
		return domain.Deliverable{}, false, fmt.Errorf("deliverable: get goal: %w", err)
	}

	d := domain.Deliverable{
		ID:           uuid.NewString(),
		WorkspaceID:  workspaceID,
		GoalID:       goalID,
		Title:        "Deliverable: " + goal.MetricType,
		Summary:      executiveSummary(goal, requirements, sections),
		Sections:     sections,
		QualityScore: averageQuality(sections),
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.InsertDeliverable(ctx, d); err != nil {
		return domain.Deliverable{}, false, fmt.Errorf("deliverable: insert: %w", err)
	}
	e.cache.put(key, d)
	return d, true, nil
}

func filterCompleted(tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == domain.TaskCompleted {
			out = append(out, t)
		}
	}
	return out
}

// buildSections groups every approved artifact by its requirement into one
// DeliverableSection each.
func (e *Engine) buildSections(ctx context.Context, requirements []domain.AssetRequirement, completed []domain.Task) ([]domain.DeliverableSection, int, error) {
	reqByID := make(map[string]domain.AssetRequirement, len(requirements))
	for _, r := range requirements {
		reqByID[r.ID] = r
	}

	byRequirement := make(map[string][]domain.Artifact)
	approvedCount := 0
	for _, t := range completed {
		artifacts, err := e.store.ListArtifacts(ctx, t.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("deliverable: list artifacts: %w", err)
		}
		for _, a := range artifacts {
			if a.Status != domain.ArtifactApproved {
				continue
			}
			byRequirement[a.RequirementID] = append(byRequirement[a.RequirementID], a)
			approvedCount++
		}
	}

	sections := make([]domain.DeliverableSection, 0, len(byRequirement))
	for reqID, artifacts := range byRequirement {
		req := reqByID[reqID]
		ids := make([]string, 0, len(artifacts))
		var body strings.Builder
		for _, a := range artifacts {
			ids = append(ids, a.ID)
			body.WriteString(summarizeContent(a.Content))
			body.WriteString("\n")
		}
		sections = append(sections, domain.DeliverableSection{
			Title:       req.AssetName,
			Content:     body.String(),
			ArtifactIDs: ids,
		})
	}
	return sections, approvedCount, nil
}

func summarizeContent(content map[string]any) string {
	if summary, ok := content["summary"].(string); ok {
		return summary
	}
	var b strings.Builder
	for k, v := range content {
		fmt.Fprintf(&b, "%s: %v\n", k, v)
	}
	return b.String()
}

func averageQuality(sections []domain.DeliverableSection) float64 {
	if len(sections) == 0 {
		return 0
	}
	return 100 // sections only ever contain already-approved artifacts
}

func executiveSummary(goal domain.Goal, requirements []domain.AssetRequirement, sections []domain.DeliverableSection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal %s: %.0f/%.0f %s achieved across %d of %d requirements.\n",
		goal.MetricType, goal.CurrentValue, goal.TargetValue, goal.Unit, len(sections), len(requirements))
	for _, s := range sections {
		fmt.Fprintf(&b, "- %s\n", s.Title)
	}
	return b.String()
}
