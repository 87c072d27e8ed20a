package health_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/health"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store/memstore"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
)

func newTelemetry() telemetry.Telemetry {
	bus := telemetry.NewBus(telemetry.NewNoopLogger())
	return telemetry.New(telemetry.NewNoopLogger(), telemetry.NewNoopMetrics(), telemetry.NewNoopTracer(), bus)
}

func TestScanHealthyWorkspaceHasNoReasons(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	w := domain.Workspace{ID: "ws1", Status: domain.WorkspaceActive, UpdatedAt: time.Now()}
	require.NoError(t, st.UpsertWorkspace(ctx, w))
	require.NoError(t, st.UpsertAgent(ctx, domain.Agent{ID: "a1", WorkspaceID: "ws1", Status: domain.AgentAvailable}))

	m := health.New(st, newTelemetry(), nil, time.Hour, time.Hour)
	issues, err := m.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, 100, issues[0].Score)
	assert.Empty(t, issues[0].Reasons)
}

func TestScanRecoversNeedsInterventionWorkspace(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	w := domain.Workspace{ID: "ws2", Status: domain.WorkspaceNeedsIntervention, UpdatedAt: time.Now()}
	require.NoError(t, st.UpsertWorkspace(ctx, w))

	m := health.New(st, newTelemetry(), nil, time.Hour, time.Hour)
	issues, err := m.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.True(t, issues[0].AutoRecoverable)
	assert.True(t, issues[0].Recovered)

	updated, err := st.GetWorkspace(ctx, "ws2")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkspaceActive, updated.Status)
}

func TestScanUnlocksStaleProcessingTasksLock(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	w := domain.Workspace{ID: "ws3", Status: domain.WorkspaceProcessingTasks, UpdatedAt: time.Now().Add(-2 * time.Hour)}
	require.NoError(t, st.UpsertWorkspace(ctx, w))

	m := health.New(st, newTelemetry(), nil, time.Hour, time.Hour)
	issues, err := m.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.True(t, issues[0].Recovered)

	updated, err := st.GetWorkspace(ctx, "ws3")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkspaceActive, updated.Status)
}

func TestScanCleansUpGoalsForDeletedWorkspace(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	require.NoError(t, st.UpsertGoal(ctx, domain.Goal{ID: "g1", WorkspaceID: "ws-gone", Status: domain.GoalActive}))

	m := health.New(st, newTelemetry(), nil, time.Hour, time.Hour)
	_, err := m.Scan(ctx)
	require.NoError(t, err)

	remaining, err := st.ListAllGoals(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestScanFlagsUnrecoverableNoAgentsWorkspace(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	w := domain.Workspace{ID: "ws4", Status: domain.WorkspaceActive, UpdatedAt: time.Now()}
	require.NoError(t, st.UpsertWorkspace(ctx, w))

	m := health.New(st, newTelemetry(), nil, time.Hour, time.Hour)
	issues, err := m.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.False(t, issues[0].AutoRecoverable)
	assert.Less(t, issues[0].Score, 100)
}
