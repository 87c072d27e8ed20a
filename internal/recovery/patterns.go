// Package recovery implements the C5 Recovery Analyser: pattern match on a
// failed task's error text, optional LLM-assisted analysis via the
// AgentRuntime port, a deterministic fallback when that is unavailable or
// disabled, and a confidence adjustment before mapping to a decision and
// computed backoff delay. The regex table, confidence values, and
// quality-gate behavior are ported verbatim from
// original_source/backend/services/recovery_analysis_engine.py's
// RecoveryPatternMatcher — the spec names the quality gate
// ("auto-detect OrchestrationContext field missing ⇒ immediate_retry >90%
// confidence") but leaves the full pattern table to be recovered from there.
package recovery

import "regexp"

// Strategy is the concrete recovery strategy chosen for a failed task,
// ported 1:1 from the original's RecoveryStrategy enum.
type Strategy string

const (
	StrategyImmediateRetry           Strategy = "immediate_retry"
	StrategyExponentialBackoff       Strategy = "exponential_backoff"
	StrategyLinearBackoff            Strategy = "linear_backoff"
	StrategyCircuitBreaker           Strategy = "circuit_breaker"
	StrategyGracefulDegradation      Strategy = "graceful_degradation"
	StrategyEscalateToHuman          Strategy = "escalate_to_human"
	StrategyEscalateToDifferentAgent Strategy = "escalate_to_different_agent"
	StrategySkipTask                 Strategy = "skip_task"
	StrategyMarkAsFailed             Strategy = "mark_as_failed"
	StrategyRetryWithEnhancedContext Strategy = "retry_with_enhanced_context"
)

// Decision is the high-level recovery decision the Executor acts on.
type Decision string

const (
	DecisionRetry        Decision = "retry"
	DecisionSkip         Decision = "skip"
	DecisionEscalate     Decision = "escalate"
	DecisionCircuitBreak Decision = "circuit_break"
)

// Pattern is one entry in the ordered recovery pattern table. The first
// pattern whose Regex matches the combined error text wins; order therefore
// matters; specific patterns (e.g. orchestrationContextMissing) must precede
// generic ones (e.g. pydanticMissingField) that would otherwise also match.
type Pattern struct {
	ID              string
	Regex           *regexp.Regexp
	Strategy        Strategy
	Confidence      float64
	IsTransient     bool
	MaxRetries      int
	InitialDelay    float64 // seconds; 0 means "use the strategy's default"
	Description     string
}

func mustCompile(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)` + expr)
}

// Patterns is the ordered recovery pattern table, matched top to bottom.
var Patterns = []Pattern{
	{
		ID:          "orchestration_context_missing",
		Regex:       mustCompile(`ValidationError.*OrchestrationContext.*field required`),
		Strategy:    StrategyImmediateRetry,
		Confidence:  0.95,
		IsTransient: false,
		MaxRetries:  2,
		Description: "Agent response missing OrchestrationContext field",
	},
	{
		ID:          "pydantic_missing_field",
		Regex:       mustCompile(`ValidationError.*field required`),
		Strategy:    StrategyRetryWithEnhancedContext,
		Confidence:  0.85,
		IsTransient: false,
		MaxRetries:  3,
		Description: "Missing required field in model validation",
	},
	{
		ID:           "openai_timeout",
		Regex:        mustCompile(`timeout|connection.*timeout|read.*timeout`),
		Strategy:     StrategyExponentialBackoff,
		Confidence:   0.9,
		IsTransient:  true,
		MaxRetries:   5,
		InitialDelay: 5,
		Description:  "API timeout - likely network or server issue",
	},
	{
		ID:           "rate_limit_exceeded",
		Regex:        mustCompile(`rate.*limit.*exceeded|429.*too many|too many requests`),
		Strategy:     StrategyLinearBackoff,
		Confidence:   0.95,
		IsTransient:  true,
		MaxRetries:   3,
		InitialDelay: 60,
		Description:  "API rate limit exceeded - need to wait",
	},
	{
		ID:          "memory_exhaustion",
		Regex:       mustCompile(`MemoryError|memory.*exhausted|out of memory`),
		Strategy:    StrategyCircuitBreaker,
		Confidence:  0.9,
		IsTransient: true,
		MaxRetries:  1,
		Description: "Memory exhaustion - system needs recovery time",
	},
	{
		ID:           "database_connection",
		Regex:        mustCompile(`connection.*refused|database.*connection|datastore.*error`),
		Strategy:     StrategyExponentialBackoff,
		Confidence:   0.85,
		IsTransient:  true,
		MaxRetries:   4,
		InitialDelay: 10,
		Description:  "Database connection issue - likely temporary",
	},
	{
		ID:          "import_error",
		Regex:       mustCompile(`ImportError|ModuleNotFoundError|import.*failed`),
		Strategy:    StrategyEscalateToHuman,
		Confidence:  0.9,
		IsTransient: false,
		MaxRetries:  0,
		Description: "Import error - requires system administrator intervention",
	},
	{
		ID:          "circuit_breaker_open",
		Regex:       mustCompile(`circuit.*breaker.*open|circuit.*breaker.*tripped`),
		Strategy:    StrategyGracefulDegradation,
		Confidence:  0.95,
		IsTransient: true,
		MaxRetries:  0,
		Description: "Circuit breaker protection active - use fallback",
	},
}

// Match returns the first pattern whose Regex matches errorText, or nil.
func Match(errorText string) *Pattern {
	for i := range Patterns {
		if Patterns[i].Regex.MatchString(errorText) {
			return &Patterns[i]
		}
	}
	return nil
}

// DecisionFor maps a Strategy onto its high-level Decision, ported from
// _synthesize_recovery_decision's if/elif chain.
func DecisionFor(s Strategy) Decision {
	switch s {
	case StrategyImmediateRetry, StrategyExponentialBackoff, StrategyLinearBackoff, StrategyRetryWithEnhancedContext:
		return DecisionRetry
	case StrategyEscalateToHuman, StrategyEscalateToDifferentAgent:
		return DecisionEscalate
	case StrategyCircuitBreaker, StrategyGracefulDegradation:
		return DecisionCircuitBreak
	default:
		return DecisionSkip
	}
}
