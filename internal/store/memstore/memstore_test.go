package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store"
)

func TestWorkspaceCASConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.UpsertWorkspace(ctx, domain.Workspace{ID: "w1", Status: domain.WorkspaceActive}))

	err := s.UpdateWorkspaceStatus(ctx, "w1", domain.WorkspaceProcessingTasks, domain.WorkspaceCompleted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrConflict))

	require.NoError(t, s.UpdateWorkspaceStatus(ctx, "w1", domain.WorkspaceProcessingTasks, domain.WorkspaceActive))
	w, err := s.GetWorkspace(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkspaceProcessingTasks, w.Status)
}

func TestGetWorkspaceNotFound(t *testing.T) {
	s := New()
	_, err := s.GetWorkspace(context.Background(), "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestCreateTaskIdempotentRetry(t *testing.T) {
	s := New()
	ctx := context.Background()
	t1, err := s.CreateTask(ctx, domain.Task{ID: "t1", WorkspaceID: "w1", Name: "first"}, "key-1")
	require.NoError(t, err)

	t2, err := s.CreateTask(ctx, domain.Task{ID: "t2", WorkspaceID: "w1", Name: "second"}, "key-1")
	require.NoError(t, err)
	assert.Equal(t, t1.ID, t2.ID, "retried create with same idempotency key must return original row")
}

func TestTaskStatusDefensiveCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.CreateTask(ctx, domain.Task{
		ID: "t1", WorkspaceID: "w1", Status: domain.TaskPending,
		Dependencies: []string{"t0"},
		ContextData:  map[string]any{"k": "v"},
	}, "")
	require.NoError(t, err)

	task, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	task.Dependencies[0] = "mutated"
	task.ContextData["k"] = "mutated"

	reread, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t0", reread.Dependencies[0], "expected defensive copy of Dependencies")
	assert.Equal(t, "v", reread.ContextData["k"], "expected defensive copy of ContextData")
}

func TestUpdateTaskStatusCAS(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.CreateTask(ctx, domain.Task{ID: "t1", WorkspaceID: "w1", Status: domain.TaskPending}, "")
	require.NoError(t, err)

	err = s.UpdateTaskStatus(ctx, "t1", domain.TaskInProgress, nil, domain.TaskQueued)
	require.Error(t, err)
	var conflict *store.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "task.status", conflict.Field)

	result := &domain.TaskResult{Output: "done"}
	require.NoError(t, s.UpdateTaskStatus(ctx, "t1", domain.TaskCompleted, result, domain.TaskPending))
	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Equal(t, "done", got.Result.Output)
}

func TestLatestDeliverablePicksMostRecent(t *testing.T) {
	s := New()
	ctx := context.Background()
	older := domain.Deliverable{ID: "d1", GoalID: "g1", Title: "old"}
	require.NoError(t, s.InsertDeliverable(ctx, older))

	newer := domain.Deliverable{ID: "d2", GoalID: "g1", Title: "new", CreatedAt: older.CreatedAt.Add(1)}
	require.NoError(t, s.InsertDeliverable(ctx, newer))

	latest, err := s.LatestDeliverable(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "d2", latest.ID)
}

func TestGetInsightsFiltersByTag(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.InsertInsight(ctx, domain.Insight{ID: "i1", WorkspaceID: "w1", Tags: []string{"seo"}}))
	require.NoError(t, s.InsertInsight(ctx, domain.Insight{ID: "i2", WorkspaceID: "w1", Tags: []string{"content"}}))

	got, err := s.GetInsights(ctx, "w1", store.InsightFilter{Tags: []string{"seo"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "i1", got[0].ID)
}
