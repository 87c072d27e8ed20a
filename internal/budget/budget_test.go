package budget_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/budget"
)

func TestRecordUsesModelRateTable(t *testing.T) {
	tr := budget.New()
	rec := tr.Record("agent-1", "task-1", "gpt-4o-mini", 1000, 1000)
	assert.InDelta(t, 0.15, rec.InputCost, 1e-9)
	assert.InDelta(t, 0.60, rec.OutputCost, 1e-9)
	assert.InDelta(t, 0.75, rec.TotalCost, 1e-9)
}

func TestRecordFallsBackToDefaultRateForUnknownModel(t *testing.T) {
	tr := budget.New()
	rec := tr.Record("agent-1", "task-1", "some-future-model", 1000, 1000)
	assert.InDelta(t, budget.DefaultRate.InputPer1k, rec.InputCost, 1e-9)
	assert.InDelta(t, budget.DefaultRate.OutputPer1k, rec.OutputCost, 1e-9)
}

func TestPerAgentAndPerWorkspaceAggregate(t *testing.T) {
	tr := budget.New()
	tr.Record("agent-1", "task-1", "gpt-4o-mini", 1000, 0)
	tr.Record("agent-1", "task-2", "gpt-4o-mini", 1000, 0)
	tr.Record("agent-2", "task-3", "gpt-4o-mini", 1000, 0)

	assert.InDelta(t, 0.30, tr.PerAgent("agent-1"), 1e-9)
	assert.InDelta(t, 0.45, tr.PerWorkspace([]string{"agent-1", "agent-2"}), 1e-9)
}
