package planner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/cooldown/memcooldown"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/planner"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store/memstore"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
)

func newTelemetry() telemetry.Telemetry {
	bus := telemetry.NewBus(telemetry.NewNoopLogger())
	return telemetry.New(telemetry.NewNoopLogger(), telemetry.NewNoopMetrics(), telemetry.NewNoopTracer(), bus)
}

func seedGoalWithRequirement(t *testing.T, st *memstore.Store) (domain.Goal, domain.AssetRequirement) {
	t.Helper()
	ctx := context.Background()
	goal := domain.Goal{
		ID: "g1", WorkspaceID: "ws1", MetricType: "contacts",
		TargetValue: 100, CurrentValue: 20, Status: domain.GoalActive,
	}
	require.NoError(t, st.UpsertGoal(ctx, goal))
	req := domain.AssetRequirement{
		ID: "r1", GoalID: goal.ID, AssetName: "Contact database", AssetType: "document",
		BusinessValueScore: 0.8, Status: domain.RequirementPending,
	}
	require.NoError(t, st.UpsertAssetRequirement(ctx, req))
	return goal, req
}

func TestPlanFromRequirementUsesFallbackTemplateWithoutRuntime(t *testing.T) {
	st := memstore.New()
	goal, req := seedGoalWithRequirement(t, st)
	p := planner.New(st, nil, newTelemetry(), nil, nil, time.Minute, 0)

	tasks, err := p.PlanFromRequirement(context.Background(), goal, req)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Research and draft Contact database", tasks[0].Name)
	assert.Equal(t, "Produce final Contact database", tasks[1].Name)
	assert.True(t, tasks[1].AIGenerated)
	assert.NotEmpty(t, tasks[0].ID)
}

func TestPlanFromRequirementIsIdempotentUnderRetry(t *testing.T) {
	st := memstore.New()
	goal, req := seedGoalWithRequirement(t, st)
	p := planner.New(st, nil, newTelemetry(), nil, nil, time.Minute, 0)

	first, err := p.PlanFromRequirement(context.Background(), goal, req)
	require.NoError(t, err)
	second, err := p.PlanFromRequirement(context.Background(), goal, req)
	require.NoError(t, err)

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[1].ID, second[1].ID)
}

func TestPlanInitialSkipsRequirementWithApprovedArtifact(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	goal, req := seedGoalWithRequirement(t, st)

	done := domain.Task{ID: "t-done", WorkspaceID: goal.WorkspaceID, GoalID: goal.ID, AssetRequirementID: req.ID, Status: domain.TaskCompleted}
	_, err := st.CreateTask(ctx, done, "")
	require.NoError(t, err)
	require.NoError(t, st.InsertArtifact(ctx, domain.Artifact{ID: "a1", TaskID: done.ID, RequirementID: req.ID, Status: domain.ArtifactApproved, QualityScore: 90}))

	p := planner.New(st, nil, newTelemetry(), nil, nil, time.Minute, 0)
	tasks, err := p.PlanInitial(ctx, goal)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestPlanInitialEnforcesPerCycleBudget(t *testing.T) {
	st := memstore.New()
	goal, _ := seedGoalWithRequirement(t, st)
	ctx := context.Background()
	req2 := domain.AssetRequirement{ID: "r2", GoalID: goal.ID, AssetName: "Outreach script", AssetType: "document", BusinessValueScore: 0.5}
	require.NoError(t, st.UpsertAssetRequirement(ctx, req2))

	p := planner.New(st, nil, newTelemetry(), nil, nil, time.Minute, 2)
	tasks, err := p.PlanInitial(ctx, goal)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestPlanCorrectiveRespectsCooldown(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	goal := domain.Goal{ID: "g2", WorkspaceID: "ws2", MetricType: "contacts", TargetValue: 50, CurrentValue: 10, Status: domain.GoalActive}
	require.NoError(t, st.UpsertGoal(ctx, goal))

	cooldowns := memcooldown.New(0)
	p := planner.New(st, nil, newTelemetry(), cooldowns, nil, time.Minute, 0)
	gapContext := map[string]any{"requirement_type": "contacts", "gap_percentage": 80.0}

	task, err := p.PlanCorrective(ctx, goal.ID, gapContext)
	require.NoError(t, err)
	assert.True(t, task.IsCorrective)
	assert.Equal(t, domain.PriorityHigh, task.Priority)
	assert.NotNil(t, task.Deadline)

	_, err = p.PlanCorrective(ctx, goal.ID, gapContext)
	assert.ErrorIs(t, err, planner.ErrCorrectiveCooldown)
}
