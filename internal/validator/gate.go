package validator

// Phase is a workspace lifecycle stage the gate transitions between.
type Phase string

const (
	PhaseAnalysis       Phase = "analysis"
	PhaseImplementation Phase = "implementation"
	PhaseFinalization   Phase = "finalization"
	PhaseCompletion     Phase = "completion"
)

// GateStatus is the outcome of a phase-transition check (spec §4.5.4).
type GateStatus string

const (
	GatePassed   GateStatus = "passed"
	GateWarning  GateStatus = "warning"
	GateFailed   GateStatus = "failed"
	GateBlocked  GateStatus = "blocked"
)

type transitionThreshold struct {
	critical            float64
	warning              float64
	remediationAllowed bool
}

// transitionThresholds is the phase-specific gate table from spec §4.5.4.
var transitionThresholds = map[[2]Phase]transitionThreshold{
	{PhaseAnalysis, PhaseImplementation}:     {critical: 0.8, warning: 0.6, remediationAllowed: true},
	{PhaseImplementation, PhaseFinalization}: {critical: 0.9, warning: 0.7, remediationAllowed: true},
	{PhaseFinalization, PhaseCompletion}:     {critical: 0.95, warning: 0.8, remediationAllowed: false},
}

// GateResult is the outcome of CheckTransition.
type GateResult struct {
	Status              GateStatus
	AchievementRate      float64
	RemediationAllowed  bool
	Recommendations     []string
}

// CheckTransition computes the achievement rate across results (mean of
// 1-gap/100) and compares it to the phase pair's thresholds, per spec
// §4.5.4. Returns GateBlocked immediately for an unconfigured transition pair
// — no threshold means no sanctioned path between those phases. A single
// critical-severity requirement blocks the transition outright regardless of
// the averaged rate (spec.md §8 Testable Property #6): the mean can clear a
// threshold even while one requirement is badly unmet, and averaging must
// never paper over that.
func CheckTransition(current, next Phase, results []Result) GateResult {
	threshold, ok := transitionThresholds[[2]Phase{current, next}]
	if !ok {
		return GateResult{Status: GateBlocked, RemediationAllowed: false}
	}

	rate := achievementRate(results)
	res := GateResult{AchievementRate: rate, RemediationAllowed: threshold.remediationAllowed}

	if hasCritical(results) {
		res.Recommendations = collectRecommendations(results)
		if threshold.remediationAllowed {
			res.Status = GateFailed
		} else {
			res.Status = GateBlocked
		}
		return res
	}

	switch {
	case rate >= threshold.critical:
		res.Status = GatePassed
	case rate >= threshold.warning:
		res.Status = GateWarning
		res.Recommendations = collectRecommendations(results)
	case threshold.remediationAllowed:
		res.Status = GateFailed
		res.Recommendations = collectRecommendations(results)
	default:
		res.Status = GateBlocked
		res.Recommendations = collectRecommendations(results)
	}
	return res
}

func hasCritical(results []Result) bool {
	for _, r := range results {
		if r.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

func achievementRate(results []Result) float64 {
	if len(results) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, r := range results {
		sum += 1 - r.GapPercentage/100
	}
	return sum / float64(len(results))
}

func collectRecommendations(results []Result) []string {
	var out []string
	for _, r := range results {
		out = append(out, r.Recommendations...)
	}
	return out
}
