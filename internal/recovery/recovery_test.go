package recovery_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/recovery"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store/memstore"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
)

func newAnalyser() *recovery.Analyser {
	bus := telemetry.NewBus(telemetry.NewNoopLogger())
	tel := telemetry.New(telemetry.NewNoopLogger(), telemetry.NewNoopMetrics(), telemetry.NewNoopTracer(), bus)
	return recovery.New(memstore.New(), tel, nil, false)
}

func TestOrchestrationContextMissingTriggersImmediateRetry(t *testing.T) {
	a := newAnalyser()
	task := domain.Task{ID: "t1", WorkspaceID: "ws1", AgentID: "a1"}
	errorText := "ValidationError\n  OrchestrationContext\n    field required (type=value_error.missing)"

	analysis, err := a.Analyze(context.Background(), task, errorText, recovery.Context{})
	require.NoError(t, err)

	assert.Equal(t, recovery.StrategyImmediateRetry, analysis.Strategy)
	assert.Equal(t, recovery.DecisionRetry, analysis.Decision)
	assert.GreaterOrEqual(t, analysis.Confidence, 0.9)
	assert.Equal(t, 2, analysis.MaxRetries)
	assert.Equal(t, "orchestration_context_missing", analysis.PatternID)
	assert.Zero(t, analysis.DelaySeconds)
}

func TestRateLimitUsesLinearBackoffWithPatternDelay(t *testing.T) {
	a := newAnalyser()
	task := domain.Task{ID: "t2", WorkspaceID: "ws1", AgentID: "a1", RecoveryCount: 1}

	analysis, err := a.Analyze(context.Background(), task, "429 Too Many Requests: rate limit exceeded", recovery.Context{})
	require.NoError(t, err)

	assert.Equal(t, recovery.StrategyLinearBackoff, analysis.Strategy)
	assert.Equal(t, recovery.DecisionRetry, analysis.Decision)
	assert.Equal(t, float64(120), analysis.DelaySeconds) // 60s initial * attempt 2
}

func TestImportErrorEscalatesToHuman(t *testing.T) {
	a := newAnalyser()
	task := domain.Task{ID: "t3", WorkspaceID: "ws1", AgentID: "a1"}

	analysis, err := a.Analyze(context.Background(), task, "ModuleNotFoundError: no module named 'foo'", recovery.Context{})
	require.NoError(t, err)

	assert.Equal(t, recovery.StrategyEscalateToHuman, analysis.Strategy)
	assert.Equal(t, recovery.DecisionEscalate, analysis.Decision)
	assert.Equal(t, 0, analysis.MaxRetries)
}

func TestConfidenceAdjustedDownByPreviousAttemptsAndHealth(t *testing.T) {
	a := newAnalyser()
	task := domain.Task{ID: "t4", WorkspaceID: "ws1", AgentID: "a1"}

	analysis, err := a.Analyze(context.Background(), task, "read timeout while calling model", recovery.Context{
		PreviousAttempts:     2,
		WorkspaceHealthScore: 40,
	})
	require.NoError(t, err)

	// base 0.9 * 0.9^2 * 0.85 < 0.9
	assert.Less(t, analysis.Confidence, 0.9)
	assert.Greater(t, analysis.Confidence, 0.0)
}

func TestUnmatchedErrorFallsBackToHeuristic(t *testing.T) {
	a := newAnalyser()
	task := domain.Task{ID: "t5", WorkspaceID: "ws1", AgentID: "a1"}

	analysis, err := a.Analyze(context.Background(), task, "some completely novel failure mode", recovery.Context{})
	require.NoError(t, err)

	assert.Equal(t, recovery.StrategyExponentialBackoff, analysis.Strategy)
	assert.Empty(t, analysis.PatternID)
}

func TestMemoryExhaustionTripsCircuitBreaker(t *testing.T) {
	a := newAnalyser()
	task := domain.Task{ID: "t6", WorkspaceID: "ws2", AgentID: "a2"}

	analysis, err := a.Analyze(context.Background(), task, "MemoryError: out of memory", recovery.Context{})
	require.NoError(t, err)

	assert.Equal(t, recovery.DecisionCircuitBreak, analysis.Decision)
}
