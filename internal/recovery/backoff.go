package recovery

import "math"

// backoffConfig mirrors BackoffCalculator._initialize_backoff_configs.
type backoffConfig struct {
	initialDelay float64
	maxDelay     float64
	multiplier   float64
}

var backoffConfigs = map[Strategy]backoffConfig{
	StrategyImmediateRetry:     {initialDelay: 0, maxDelay: 1, multiplier: 1},
	StrategyExponentialBackoff: {initialDelay: 5, maxDelay: 300, multiplier: 2},
	StrategyLinearBackoff:      {initialDelay: 30, maxDelay: 600, multiplier: 1.5},
	StrategyCircuitBreaker:     {initialDelay: 1800, maxDelay: 7200, multiplier: 1},
}

// Delay computes the backoff delay in seconds for strategy at attemptNumber
// (1-indexed), honoring a pattern-specific initial delay when patternDelay is
// non-zero. Ported from BackoffCalculator.calculate_delay.
func Delay(s Strategy, attemptNumber int, patternDelay float64) float64 {
	cfg, ok := backoffConfigs[s]
	if !ok {
		cfg = backoffConfigs[StrategyExponentialBackoff]
	}
	initial := cfg.initialDelay
	if patternDelay > 0 {
		initial = patternDelay
	}

	var delay float64
	switch s {
	case StrategyImmediateRetry:
		return 0
	case StrategyExponentialBackoff:
		delay = initial * math.Pow(cfg.multiplier, float64(attemptNumber-1))
	case StrategyLinearBackoff:
		delay = initial * float64(attemptNumber)
	case StrategyCircuitBreaker:
		delay = initial
	default:
		delay = initial
	}
	return math.Min(delay, cfg.maxDelay)
}
