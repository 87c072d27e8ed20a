package deliverable_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/deliverable"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store/memstore"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
)

func newTelemetry() telemetry.Telemetry {
	bus := telemetry.NewBus(telemetry.NewNoopLogger())
	return telemetry.New(telemetry.NewNoopLogger(), telemetry.NewNoopMetrics(), telemetry.NewNoopTracer(), bus)
}

func TestValidatePayloadRejectsMissingRequiredField(t *testing.T) {
	ok, reason := deliverable.ValidatePayload("contact_database", map[string]any{"contacts": []any{}})
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
}

func TestValidatePayloadAcceptsWellFormedPayload(t *testing.T) {
	ok, _ := deliverable.ValidatePayload("contact_database", map[string]any{
		"contacts": []any{"a@example.com"}, "total_contacts": 1.0, "quality_score": 0.9,
	})
	assert.True(t, ok)
}

func TestValidatePayloadIgnoresUnknownSchemaName(t *testing.T) {
	ok, _ := deliverable.ValidatePayload("no_such_schema", map[string]any{"anything": true})
	assert.True(t, ok)
}

func TestProcessCompletedTaskApprovesHighQualityStructuredResult(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	goal := domain.Goal{ID: "g1", WorkspaceID: "ws1", MetricType: "contacts", TargetValue: 100, CurrentValue: 10}
	require.NoError(t, st.UpsertGoal(ctx, goal))
	req := domain.AssetRequirement{ID: "r1", GoalID: goal.ID, AssetName: "Contact database", AssetType: "document",
		AcceptanceCriteria: domain.AcceptanceCriteria{SchemaName: "contact_database"}, Status: domain.RequirementPending}
	require.NoError(t, st.UpsertAssetRequirement(ctx, req))

	task := domain.Task{
		ID: "t1", WorkspaceID: "ws1", GoalID: goal.ID, AssetRequirementID: req.ID, Status: domain.TaskCompleted,
		Result: &domain.TaskResult{StructuredPayload: map[string]any{
			"contacts": []any{"a@example.com", "b@example.com"}, "total_contacts": 2.0, "quality_score": 0.8,
		}},
	}

	e := deliverable.New(st, nil, newTelemetry(), 70, 100, 30*time.Minute)
	artifact, err := e.ProcessCompletedTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, domain.ArtifactApproved, artifact.Status)
	assert.GreaterOrEqual(t, artifact.QualityScore, 70.0)

	updatedReq, err := st.GetAssetRequirements(ctx, goal.ID)
	require.NoError(t, err)
	require.Len(t, updatedReq, 1)
	assert.Equal(t, domain.RequirementFulfilled, updatedReq[0].Status)
}

func TestProcessCompletedTaskDegradesQualityOnSchemaViolation(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	goal := domain.Goal{ID: "g2", WorkspaceID: "ws2", MetricType: "contacts"}
	require.NoError(t, st.UpsertGoal(ctx, goal))
	req := domain.AssetRequirement{ID: "r2", GoalID: goal.ID, AssetName: "Contact database",
		AcceptanceCriteria: domain.AcceptanceCriteria{SchemaName: "contact_database"}}
	require.NoError(t, st.UpsertAssetRequirement(ctx, req))

	task := domain.Task{
		ID: "t2", WorkspaceID: "ws2", GoalID: goal.ID, AssetRequirementID: req.ID, Status: domain.TaskCompleted,
		Result: &domain.TaskResult{StructuredPayload: map[string]any{"contacts": []any{}}},
	}

	e := deliverable.New(st, nil, newTelemetry(), 70, 100, 30*time.Minute)
	artifact, err := e.ProcessCompletedTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, domain.ArtifactDraft, artifact.Status)
	assert.Less(t, artifact.QualityScore, 70.0)
}

func TestAggregateBundlesApprovedArtifactsIntoSections(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	goal := domain.Goal{ID: "g3", WorkspaceID: "ws3", MetricType: "contacts", TargetValue: 100, CurrentValue: 50, Unit: "contacts"}
	require.NoError(t, st.UpsertGoal(ctx, goal))
	req := domain.AssetRequirement{ID: "r3", GoalID: goal.ID, AssetName: "Contact database"}
	require.NoError(t, st.UpsertAssetRequirement(ctx, req))

	task := domain.Task{ID: "t3", WorkspaceID: "ws3", GoalID: goal.ID, AssetRequirementID: req.ID, Status: domain.TaskCompleted, UpdatedAt: time.Now()}
	_, err := st.CreateTask(ctx, task, "")
	require.NoError(t, err)
	require.NoError(t, st.InsertArtifact(ctx, domain.Artifact{
		ID: "a3", TaskID: task.ID, RequirementID: req.ID, Status: domain.ArtifactApproved,
		QualityScore: 90, Content: map[string]any{"summary": "50 qualified contacts collected"},
	}))

	e := deliverable.New(st, nil, newTelemetry(), 70, 100, 30*time.Minute)
	d, ok, err := e.Aggregate(ctx, "ws3", goal.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, d.Sections, 1)
	assert.Equal(t, "Contact database", d.Sections[0].Title)
	assert.Contains(t, d.Summary, "contacts")
}

func TestAggregateSkipsWhenNoApprovedArtifacts(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	goal := domain.Goal{ID: "g4", WorkspaceID: "ws4", MetricType: "contacts"}
	require.NoError(t, st.UpsertGoal(ctx, goal))
	req := domain.AssetRequirement{ID: "r4", GoalID: goal.ID, AssetName: "Contact database"}
	require.NoError(t, st.UpsertAssetRequirement(ctx, req))

	e := deliverable.New(st, nil, newTelemetry(), 70, 100, 30*time.Minute)
	_, ok, err := e.Aggregate(ctx, "ws4", goal.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateRequirementsFallsBackWithoutRuntime(t *testing.T) {
	st := memstore.New()
	e := deliverable.New(st, nil, newTelemetry(), 70, 100, 30*time.Minute)
	goal := domain.Goal{ID: "g5", WorkspaceID: "ws5", MetricType: "contacts", Priority: 1}
	reqs, err := e.GenerateRequirements(context.Background(), goal)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(reqs), 1)
	assert.Equal(t, "contact_database", reqs[0].AcceptanceCriteria.SchemaName)
}
