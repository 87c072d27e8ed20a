package recovery

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/agentruntime"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
)

// Context carries the situational inputs the confidence-adjustment formula
// needs, ported from original_source's RecoveryContext dataclass.
type Context struct {
	PreviousAttempts    int
	WorkspaceHealthScore float64 // [0,100]
	SystemLoad          float64 // [0,1]
	LastSuccessWithin1h bool
}

// Analysis is the outcome of Analyze: the decision the Executor acts on plus
// the audit trail persisted as a domain.RecoveryAttempt.
type Analysis struct {
	Decision     Decision
	Strategy     Strategy
	Confidence   float64
	DelaySeconds float64
	MaxRetries   int
	Reasoning    string
	PatternID    string
	AIUsed       bool
}

// Analyser implements the C5 contract.
type Analyser struct {
	store        store.Store
	tel          telemetry.Telemetry
	runtime      agentruntime.AgentRuntime // optional; nil disables AI-assisted analysis
	enableAI     bool
	breakers     *Breakers
}

// New constructs an Analyser. runtime may be nil, in which case enableAI is
// forced off regardless of its argument value.
func New(st store.Store, tel telemetry.Telemetry, runtime agentruntime.AgentRuntime, enableAI bool) *Analyser {
	return &Analyser{
		store:    st,
		tel:      tel,
		runtime:  runtime,
		enableAI: enableAI && runtime != nil,
		breakers: NewBreakers(),
	}
}

// Analyze runs the full pipeline: pattern match, optional AI-assisted
// analysis, deterministic fallback, confidence adjustment, decision mapping,
// delay computation. It always persists a domain.RecoveryAttempt and
// broadcasts EventRecoveryAnalysis, matching spec §4.4 and §6.
func (a *Analyser) Analyze(ctx context.Context, task domain.Task, errorMessage string, rc Context) (Analysis, error) {
	errorText := strings.ToLower(errorMessage)
	pattern := Match(errorText)

	var strategy Strategy
	var confidence float64
	var maxRetries int
	var reasoning string
	aiUsed := false

	switch {
	case pattern != nil:
		strategy, confidence, maxRetries = pattern.Strategy, pattern.Confidence, pattern.MaxRetries
		reasoning = pattern.Description
	case a.enableAI:
		res, err := a.runtime.Execute(ctx, task, domain.LLMConfig{}, time.Now().Add(30*time.Second))
		if err == nil && res.StructuredPayload != nil {
			strategy, confidence, maxRetries, reasoning = parseAIPayload(res.StructuredPayload)
			aiUsed = true
		}
	}

	if strategy == "" {
		strategy, confidence, maxRetries, reasoning = heuristicFallback(errorText)
	}

	confidence = adjustConfidence(confidence, rc)
	decision := DecisionFor(strategy)

	patternDelay := 0.0
	if pattern != nil {
		patternDelay = pattern.InitialDelay
	}
	delay := Delay(strategy, task.RecoveryCount+1, patternDelay)

	if decision == DecisionCircuitBreak {
		a.breakers.RecordOpen(task.WorkspaceID, task.AgentID)
	}

	analysis := Analysis{
		Decision:     decision,
		Strategy:     strategy,
		Confidence:   confidence,
		DelaySeconds: delay,
		MaxRetries:   maxRetries,
		Reasoning:    reasoning,
		AIUsed:       aiUsed,
	}
	if pattern != nil {
		analysis.PatternID = pattern.ID
	}

	attempt := domain.RecoveryAttempt{
		TaskID:        task.ID,
		WorkspaceID:   task.WorkspaceID,
		AttemptNumber: task.RecoveryCount + 1,
		Strategy:      string(strategy),
		Confidence:    confidence,
		DelaySeconds:  delay,
		Reasoning:     reasoning,
	}
	if err := a.store.InsertRecoveryAttempt(ctx, attempt); err != nil {
		return analysis, fmt.Errorf("recovery: persist attempt: %w", err)
	}

	a.tel.Broadcast(ctx, telemetry.EventRecoveryAnalysis, telemetry.RecoveryAnalysisEvent{
		TaskID: task.ID, WorkspaceID: task.WorkspaceID, Decision: string(decision), Strategy: string(strategy),
		Confidence: confidence, DelaySeconds: delay, Reasoning: reasoning, Timestamp: time.Now().UTC(),
	})

	return analysis, nil
}

// Breakers exposes the per-(workspace, agent) circuit breaker registry so
// callers (the Executor's agent-resolution step) can skip agents whose
// circuit is currently open, enforcing the quarantine window a circuit_break
// decision establishes (spec.md:235).
func (a *Analyser) Breakers() *Breakers { return a.breakers }

// parseAIPayload extracts the fallback-analysis-shaped fields an AgentRuntime
// response carries when AI-assisted recovery analysis is enabled. Unknown or
// missing fields fall through to the deterministic heuristic.
func parseAIPayload(payload map[string]any) (Strategy, float64, int, string) {
	strategy, _ := payload["recommended_strategy"].(string)
	confidence, _ := payload["confidence_score"].(float64)
	maxRetriesF, _ := payload["max_retry_attempts"].(float64)
	reasoning, _ := payload["reasoning"].(string)
	if strategy == "" {
		return "", 0, 0, ""
	}
	if confidence == 0 {
		confidence = 0.5
	}
	return Strategy(strategy), confidence, int(maxRetriesF), reasoning
}

// heuristicFallback is the "Simple heuristic-based analysis" branch of
// _fallback_analysis, used when no table pattern matched and AI analysis is
// disabled or unavailable.
func heuristicFallback(errorLower string) (Strategy, float64, int, string) {
	switch {
	case strings.Contains(errorLower, "orchestrationcontext") && strings.Contains(errorLower, "field required"):
		return StrategyImmediateRetry, 0.95, 2, "Heuristic: OrchestrationContext field missing"
	case strings.Contains(errorLower, "timeout") || strings.Contains(errorLower, "connection"):
		return StrategyExponentialBackoff, 0.8, 5, "Heuristic: timeout or connection failure"
	case strings.Contains(errorLower, "rate limit") || strings.Contains(errorLower, "429"):
		return StrategyLinearBackoff, 0.9, 3, "Heuristic: rate limited"
	case strings.Contains(errorLower, "memory") || strings.Contains(errorLower, "resource"):
		return StrategyCircuitBreaker, 0.7, 1, "Heuristic: resource exhaustion"
	case strings.Contains(errorLower, "import") || strings.Contains(errorLower, "module"):
		return StrategyEscalateToHuman, 0.9, 0, "Heuristic: import/module failure"
	default:
		return StrategyExponentialBackoff, 0.6, 3, "Heuristic: no pattern matched, defaulting to backoff"
	}
}

// adjustConfidence ports _adjust_confidence_score's multiplicative factors.
func adjustConfidence(base float64, rc Context) float64 {
	adjusted := base
	if rc.PreviousAttempts > 0 {
		adjusted *= math.Pow(0.9, float64(rc.PreviousAttempts))
	}
	// > 0 treats an unset score (the zero value callers get when they have no
	// workspace to read, e.g. direct unit tests) as "healthy" rather than as
	// the worst possible reading — diverging deliberately from the original's
	// unconditional < 70, since 0 here means "unknown", not "confirmed bad".
	if rc.WorkspaceHealthScore > 0 && rc.WorkspaceHealthScore < 70 {
		adjusted *= 0.85
	}
	if rc.SystemLoad > 0.8 {
		adjusted *= 0.90
	}
	if rc.LastSuccessWithin1h {
		adjusted *= 1.1
	}
	return math.Min(1.0, math.Max(0.0, adjusted))
}
