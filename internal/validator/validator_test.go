package validator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store/memstore"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/validator"
)

func TestExtractFindsContactsAndPercentage(t *testing.T) {
	reqs := validator.Extract("Collect at least 50 contacts and reach 30% conversion rate within 6 weeks")

	var sawContacts, sawPct bool
	for _, r := range reqs {
		if r.Type == "contacts" && r.TargetValue == 50 {
			sawContacts = true
			assert.True(t, r.IsMinimum)
		}
		if r.Type == "percentage" {
			sawPct = true
		}
	}
	assert.True(t, sawContacts, "expected a contacts requirement, got %+v", reqs)
	assert.True(t, sawPct, "expected a percentage requirement, got %+v", reqs)
}

func TestExtractDeduplicatesRepeatedPercentageSpans(t *testing.T) {
	reqs := validator.Extract("target 30% quality, target 30% quality")
	count := 0
	for _, r := range reqs {
		if r.Type == "percentage" && r.TargetValue == 30 {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExtractDropsVaguePrepositionalUnits(t *testing.T) {
	reqs := validator.Extract("finish in 2 for the team")
	for _, r := range reqs {
		assert.NotEqual(t, "for", r.Unit)
	}
}

func TestExtractAchievementsPrefersStructuredPayload(t *testing.T) {
	tasks := []domain.Task{
		{
			ID: "t1",
			Result: &domain.TaskResult{
				StructuredPayload: map[string]any{
					"contacts": []any{1, 2, 3},
				},
			},
		},
		{
			ID: "t2",
			Result: &domain.TaskResult{
				Output: "found 10 contacts today",
			},
		},
	}
	ach := validator.ExtractAchievements(tasks)
	assert.Equal(t, float64(3)+10, ach.Contacts) // structured 3 + text-scan max(0,10)
	assert.Equal(t, 1, ach.StructuredCount)
}

func TestValidateRequirementComputesGapAndSeverity(t *testing.T) {
	req := validator.Requirement{Type: "contacts", TargetValue: 100, Unit: "contacts", IsMinimum: true}
	ach := validator.Achievements{Contacts: 10}

	result := validator.ValidateRequirement(req, ach, false)
	assert.False(t, result.Valid)
	assert.Equal(t, validator.SeverityCritical, result.Severity)
	assert.InDelta(t, 90, result.GapPercentage, 0.01)
	assert.NotEmpty(t, result.Recommendations)
}

func TestValidateRequirementExactTargetToleratesTenPercent(t *testing.T) {
	req := validator.Requirement{Type: "contacts", TargetValue: 100, IsMinimum: false}
	ach := validator.Achievements{Contacts: 91}

	result := validator.ValidateRequirement(req, ach, false)
	assert.True(t, result.Valid)
}

func TestCheckTransitionPassedWarningBlocked(t *testing.T) {
	passing := []validator.Result{{GapPercentage: 5}}
	gate := validator.CheckTransition(validator.PhaseAnalysis, validator.PhaseImplementation, passing)
	assert.Equal(t, validator.GatePassed, gate.Status)

	warning := []validator.Result{{GapPercentage: 35}}
	gateW := validator.CheckTransition(validator.PhaseAnalysis, validator.PhaseImplementation, warning)
	assert.Equal(t, validator.GateWarning, gateW.Status)

	blocked := []validator.Result{{GapPercentage: 50}}
	gateB := validator.CheckTransition(validator.PhaseFinalization, validator.PhaseCompletion, blocked)
	assert.Equal(t, validator.GateBlocked, gateB.Status)
	assert.False(t, gateB.RemediationAllowed)
}

type fakePlanner struct {
	called bool
}

func (f *fakePlanner) PlanCorrective(_ context.Context, goalID string, gapContext map[string]any) (domain.Task, error) {
	f.called = true
	return domain.Task{ID: "corrective-1", GoalID: goalID, IsCorrective: true}, nil
}

func TestValidateGoalTriggersCorrectiveActionOnCriticalGap(t *testing.T) {
	st := memstore.New()
	bus := telemetry.NewBus(telemetry.NewNoopLogger())
	tel := telemetry.New(telemetry.NewNoopLogger(), telemetry.NewNoopMetrics(), telemetry.NewNoopTracer(), bus)
	planner := &fakePlanner{}
	v := validator.New(st, tel, planner)

	results, correctiveTasks, err := v.ValidateGoal(context.Background(), "ws1", "goal1", "collect at least 500 contacts", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, validator.SeverityCritical, results[0].Severity)
	assert.True(t, planner.called)
	require.Len(t, correctiveTasks, 1)

	insights, err := st.GetInsights(context.Background(), "ws1", store.InsightFilter{})
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, domain.InsightFailureLesson, insights[0].Type)
}
