package planner

import (
	"context"
	"time"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
)

// generateTaskSpecs asks the AgentRuntime to break req down into 2-5 tasks,
// falling back to the deterministic per-asset-type template when the runtime
// is nil, errors, or returns a payload this package can't interpret (spec
// §4.6 step 2).
func (p *Planner) generateTaskSpecs(ctx context.Context, goal domain.Goal, req domain.AssetRequirement) []taskSpec {
	if p.runtime == nil {
		return fallbackTemplate(req.AssetType, req.AssetName)
	}

	planningTask := domain.Task{
		WorkspaceID: goal.WorkspaceID,
		GoalID:      goal.ID,
		Name:        "plan:" + req.AssetName,
		Description: planningPrompt(goal, req),
		ContextData: map[string]any{"mode": "task_planning"},
	}
	result, err := p.runtime.Execute(ctx, planningTask, domain.LLMConfig{}, time.Now().Add(30*time.Second))
	if err != nil || result.StructuredPayload == nil {
		return fallbackTemplate(req.AssetType, req.AssetName)
	}

	specs := parseTaskSpecs(result.StructuredPayload)
	if len(specs) == 0 {
		return fallbackTemplate(req.AssetType, req.AssetName)
	}
	return specs
}

func planningPrompt(goal domain.Goal, req domain.AssetRequirement) string {
	return "Break the asset requirement '" + req.AssetName + "' (" + req.AssetType +
		") for goal metric '" + goal.MetricType + "' into 2-5 sequential tasks."
}

// parseTaskSpecs reads a "tasks" array of objects from an LLM structured
// payload. Unrecognised or malformed entries are skipped rather than
// rejecting the whole batch.
func parseTaskSpecs(payload map[string]any) []taskSpec {
	raw, ok := payload["tasks"].([]any)
	if !ok {
		return nil
	}
	specs := make([]taskSpec, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		if name == "" {
			continue
		}
		specs = append(specs, taskSpec{
			Name:                name,
			Description:         stringField(m, "description"),
			Priority:            stringField(m, "priority"),
			TaskType:            stringField(m, "task_type"),
			ExpectedOutput:      stringField(m, "expected_output"),
			SuccessCriteria:     stringSliceField(m, "success_criteria"),
			QualityCheckpoints:  stringSliceField(m, "quality_checkpoints"),
			RequiredSkills:      stringSliceField(m, "required_skills"),
			ToolsNeeded:         stringSliceField(m, "tools_needed"),
			ContributionToAsset: stringField(m, "contribution_to_asset"),
			Dependencies:        stringSliceField(m, "dependencies"),
		})
	}
	return specs
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringSliceField(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
