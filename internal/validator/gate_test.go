package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/validator"
)

func TestCheckTransitionBlocksOnCriticalSeverityDespiteHighMeanRate(t *testing.T) {
	results := []validator.Result{
		{Severity: validator.SeverityLow, GapPercentage: 0},
		{Severity: validator.SeverityLow, GapPercentage: 0},
		{Severity: validator.SeverityCritical, GapPercentage: 5, Recommendations: []string{"fix the critical gap"}},
	}

	gate := validator.CheckTransition(validator.PhaseAnalysis, validator.PhaseImplementation, results)

	assert.Greater(t, gate.AchievementRate, 0.8) // mean alone would pass this transition's 0.8 critical threshold
	assert.Equal(t, validator.GateFailed, gate.Status)
	assert.NotEmpty(t, gate.Recommendations)
}

func TestCheckTransitionBlocksFinalizationOnCriticalSeverity(t *testing.T) {
	results := []validator.Result{
		{Severity: validator.SeverityCritical, GapPercentage: 1},
	}

	gate := validator.CheckTransition(validator.PhaseFinalization, validator.PhaseCompletion, results)

	assert.Equal(t, validator.GateBlocked, gate.Status)
}

func TestCheckTransitionPassesWithoutCriticalSeverity(t *testing.T) {
	results := []validator.Result{
		{Severity: validator.SeverityLow, GapPercentage: 0},
	}

	gate := validator.CheckTransition(validator.PhaseAnalysis, validator.PhaseImplementation, results)

	assert.Equal(t, validator.GatePassed, gate.Status)
}
