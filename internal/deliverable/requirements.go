package deliverable

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
)

// GenerateRequirements produces AssetRequirements for goal (spec §4.7
// step 1): it asks the AgentRuntime for 3-5 requirements and keeps every
// usable entry returned, else falls back to defaultRequirements' two. It
// satisfies planner.RequirementGenerator without importing that package,
// the same narrow-port pattern validator.CorrectiveTaskCreator uses.
func (e *Engine) GenerateRequirements(ctx context.Context, goal domain.Goal) ([]domain.AssetRequirement, error) {
	if e.runtime != nil {
		if reqs, ok := e.generateViaLLM(ctx, goal); ok {
			return reqs, nil
		}
	}
	return defaultRequirements(goal), nil
}

func (e *Engine) generateViaLLM(ctx context.Context, goal domain.Goal) ([]domain.AssetRequirement, bool) {
	planningTask := domain.Task{
		WorkspaceID: goal.WorkspaceID,
		GoalID:      goal.ID,
		Name:        "requirements:" + goal.MetricType,
		Description: "Propose 3-5 asset requirements that together fulfil goal metric '" + goal.MetricType + "'.",
		ContextData: map[string]any{"mode": "requirement_generation"},
	}
	result, err := e.runtime.Execute(ctx, planningTask, domain.LLMConfig{}, time.Now().Add(30*time.Second))
	if err != nil || result.StructuredPayload == nil {
		return nil, false
	}
	raw, ok := result.StructuredPayload["requirements"].([]any)
	if !ok || len(raw) == 0 {
		return nil, false
	}

	reqs := make([]domain.AssetRequirement, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["asset_name"].(string)
		if name == "" {
			continue
		}
		assetType, _ := m["asset_type"].(string)
		assetFormat, _ := m["asset_format"].(string)
		schemaName, _ := m["schema_name"].(string)
		businessValue, _ := m["business_value_score"].(float64)
		reqs = append(reqs, domain.AssetRequirement{
			ID:                 uuid.NewString(),
			GoalID:             goal.ID,
			AssetName:          name,
			AssetType:          assetType,
			AssetFormat:        assetFormat,
			AcceptanceCriteria: domain.AcceptanceCriteria{SchemaName: schemaName},
			Priority:           goal.Priority,
			BusinessValueScore: businessValue,
			Status:             domain.RequirementPending,
		})
	}
	if len(reqs) == 0 {
		return nil, false
	}
	return reqs, true
}

// defaultRequirements is the deterministic fallback when the AgentRuntime is
// unavailable or returns nothing usable: a primary structured requirement
// shaped around the goal's metric (its schema taken from the known schema
// registry when the metric type names one) plus a supporting markdown
// summary-report requirement.
func defaultRequirements(goal domain.Goal) []domain.AssetRequirement {
	schemaName := schemaNameForMetric(goal.MetricType)
	primary := domain.AssetRequirement{
		ID:                 uuid.NewString(),
		GoalID:             goal.ID,
		AssetName:          goal.MetricType,
		AssetType:          "document",
		AssetFormat:        "structured",
		AcceptanceCriteria: domain.AcceptanceCriteria{SchemaName: schemaName},
		Priority:           goal.Priority,
		BusinessValueScore: 0.7,
		Status:             domain.RequirementPending,
	}
	supporting := domain.AssetRequirement{
		ID:                 uuid.NewString(),
		GoalID:             goal.ID,
		AssetName:          goal.MetricType + " summary report",
		AssetType:          "document",
		AssetFormat:        "markdown",
		BusinessValueScore: 0.3,
		Priority:           goal.Priority,
		Status:             domain.RequirementPending,
	}
	return []domain.AssetRequirement{primary, supporting}
}

func schemaNameForMetric(metricType string) string {
	switch metricType {
	case "contacts":
		return "contact_database"
	case "email_sequences":
		return "email_sequence"
	default:
		return ""
	}
}
