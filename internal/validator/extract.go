// Package validator implements the C6 Goal Validator: regex-based
// requirement extraction from free-text goals, achievement extraction from
// completed tasks, gap/severity computation, and the phase-transition gate.
// The extraction grammar and classification heuristic are ported from
// original_source/backend/ai_quality_assurance/goal_validator.py
// (AIGoalValidator) — a from-scratch regex engine in the teacher's repo would
// have no grounding, so this package leans entirely on original_source.
package validator

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Requirement is one measurable target parsed out of a workspace's free-text
// goal (spec §4.5.1). It is a transient extraction result, not a persisted
// domain entity — persisted per-goal targets live in domain.Goal/
// domain.AssetRequirement, populated from these by the caller.
type Requirement struct {
	Type         string
	TargetValue  float64
	Unit         string
	Domain       string
	SourceSpan   string
	IsPercentage bool
	IsMinimum    bool
}

type extractionPattern struct {
	name  string
	regex *regexp.Regexp
}

var wordClass = `[a-zA-Z]`

func np(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + expr)
}

// numericalPatterns is the ordered quantity-extraction grammar, ported from
// AIGoalValidator.numerical_patterns. Each pattern's first capture group is
// the numeric value; the second (when present) is the unit/context phrase
// used for classification and deduplication.
var numericalPatterns = []extractionPattern{
	{"at_least_count", np(`at least\s+(\d+)\s+(` + wordClass + `+(?:\s+` + wordClass + `+){0,2})`)},
	{"minimum_count", np(`minimum\s+(\d+)\s+(` + wordClass + `+(?:\s+` + wordClass + `+){0,2})`)},
	{"maximum_count", np(`maximum\s+(\d+)\s+(` + wordClass + `+(?:\s+` + wordClass + `+){0,2})`)},
	{"up_to_count", np(`up to\s+(\d+)\s+(` + wordClass + `+(?:\s+` + wordClass + `+){0,2})`)},
	{"count_of", np(`(\d+)\s+(` + wordClass + `+)\s+of\s+(` + wordClass + `+)`)},
	{"count_per", np(`(\d+)\s+(` + wordClass + `+)\s+per\s+(` + wordClass + `+)`)},
	{"generic_count", np(`(\d+)\s+(` + wordClass + `+(?:\s+` + wordClass + `+){0,3})`)},

	{"at_least_pct", np(`at least\s+(\d+(?:\.\d+)?)\s*%`)},
	{"minimum_pct", np(`minimum\s+(\d+(?:\.\d+)?)\s*%`)},
	{"target_pct", np(`target\s+(\d+(?:\.\d+)?)\s*%`)},
	{"gte_pct", np(`(?:≥|>=)\s*(\d+(?:\.\d+)?)\s*%`)},
	{"gt_pct", np(`>\s*(\d+(?:\.\d+)?)\s*%`)},
	{"plain_pct", np(`(\d+(?:\.\d+)?)\s*%(?:\s+(` + wordClass + `+(?:[- ]` + wordClass + `+){0,2}))?`)},

	{"currency_amount", np(`(\d+(?:[.,]\d{3})*(?:[.,]\d{1,2})?)\s*(EUR|USD|GBP|CHF|JPY|\$|€|£|¥)`)},
	{"currency_suffix", np(`(\d+(?:\.\d+)?)\s*([KkMmBb])\s*(EUR|USD|GBP|CHF|\$|€|£)`)},
	{"budget_context", np(`budget.*?(\d+(?:[.,]\d{3})*)\s*(EUR|USD|\$|€)`)},
	{"cost_context", np(`cost.*?(\d+(?:[.,]\d{3})*)\s*(EUR|USD|\$|€)`)},

	{"within_duration", np(`within\s+(\d+)\s*(minutes?|hours?|days?|weeks?|months?|years?)`)},
	{"in_duration", np(`in\s+(\d+)\s*(minutes?|hours?|days?|weeks?|months?|years?)`)},
	{"every_duration", np(`every\s+(\d+)\s*(minutes?|hours?|days?|weeks?|months?|years?)`)},
	{"for_duration", np(`for\s+(\d+)\s*(minutes?|hours?|days?|weeks?|months?|years?)`)},
	{"plain_duration", np(`(\d+)\s*(minutes?|hours?|days?|weeks?|months?|years?)`)},

	{"ratio", np(`(\d+(?:\.\d+)?)\s*:\s*(\d+(?:\.\d+)?)`)},
	{"multiplier", np(`(\d+(?:\.\d+)?)\s*(times|x|×)`)},
	{"score", np(`(\d+(?:\.\d+)?)\s*(points?|scores?|rating)`)},
	{"physical_unit", np(`(\d+(?:\.\d+)?)\s*(kg|lb|g|meters?|km|miles?)`)},
}

type conceptDef struct {
	keywords    []string
	metricTypes []string
}

// conceptOntology is the fixed concept vocabulary used for two-phase
// classification (spec §4.5.1 paragraph 2), ported from
// universal_concept_patterns.
var conceptOntology = map[string]conceptDef{
	"creation": {
		keywords:    []string{"create", "generate", "produce", "develop", "build", "make", "craft"},
		metricTypes: []string{"deliverables", "content_pieces", "products", "items"},
	},
	"collection": {
		keywords:    []string{"collect", "gather", "find", "identify", "acquire", "source"},
		metricTypes: []string{"contacts", "leads", "data_points", "resources"},
	},
	"performance": {
		keywords:    []string{"performance", "quality", "efficiency", "accuracy", "success", "score", "rating", "rate"},
		metricTypes: []string{"conversion_rate", "quality_score", "performance_metrics"},
	},
	"communication": {
		keywords:    []string{"email", "message", "communication", "sequence", "campaign", "outreach", "newsletter"},
		metricTypes: []string{"email_sequences", "campaigns", "communications"},
	},
	"financial": {
		keywords:    []string{"budget", "cost", "price", "revenue", "profit", "investment", "roi", "return", "value"},
		metricTypes: []string{"revenue", "costs", "budget", "roi"},
	},
	"temporal": {
		keywords:    []string{"time", "deadline", "duration", "period", "phase", "timeline", "schedule"},
		metricTypes: []string{"timeline_days", "deadlines", "milestones"},
	},
	"health": {
		keywords:    []string{"exercise", "workout", "training", "fitness", "health", "weight", "nutrition", "calories"},
		metricTypes: []string{"workouts", "exercises", "health_metrics"},
	},
	"technology": {
		keywords:    []string{"app", "software", "api", "feature", "bug", "deployment", "application", "system", "platform", "integration", "code", "development"},
		metricTypes: []string{"features", "deployments", "integrations", "apis"},
	},
	"education": {
		keywords:    []string{"course", "lesson", "tutorial", "training", "learning", "knowledge", "competency", "certification", "skill"},
		metricTypes: []string{"courses", "lessons", "certifications", "skills"},
	},
}

var minimumSignals = []string{"at least", "minimum", "≥", ">="}

type dedupKey struct {
	value float64
	typ   string
	extra string
}

// Extract parses a free-text workspace goal into an ordered, deduplicated
// list of Requirements. Deterministic: no LLM, same input always produces
// the same output (spec §4.5.1 paragraph 2).
func Extract(goalText string) []Requirement {
	goalLower := strings.ToLower(goalText)
	domainTag := detectDomain(goalLower)
	isMinimum := containsAny(goalLower, minimumSignals)

	seen := make(map[dedupKey]bool)
	var out []Requirement

	for _, p := range numericalPatterns {
		for _, m := range p.regex.FindAllStringSubmatch(goalLower, -1) {
			fullMatch := m[0]
			valueStr := m[1]
			unitContext := ""
			switch {
			case len(m) > 3:
				unitContext = m[2] + " " + m[3]
			case len(m) > 2:
				unitContext = m[2]
			}

			value, err := parseValue(valueStr)
			if err != nil {
				continue
			}

			reqType := classifyRequirementType(unitContext, goalLower)
			isPct := strings.Contains(fullMatch, "%")

			key := buildDedupKey(value, reqType, fullMatch, unitContext, isPct)
			if seen[key] {
				continue
			}
			if isLowQualityExtraction(unitContext, fullMatch, reqType) {
				continue
			}
			seen[key] = true

			out = append(out, Requirement{
				Type:         reqType,
				TargetValue:  value,
				Unit:         unitContext,
				Domain:       domainTag,
				SourceSpan:   fullMatch,
				IsPercentage: isPct,
				IsMinimum:    isMinimum,
			})
		}
	}

	out = append(out, detectImplicitRequirements(goalLower)...)
	return out
}

func parseValue(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	return strconv.ParseFloat(cleaned, 64)
}

func buildDedupKey(value float64, reqType, fullMatch, unitContext string, isPercentage bool) dedupKey {
	switch {
	case isPercentage:
		return dedupKey{value, reqType, strings.TrimSpace(strings.ToLower(fullMatch))}
	case reqType == "email_sequences":
		return dedupKey{value, reqType, ""}
	default:
		words := significantWords(unitContext)
		sort.Strings(words)
		return dedupKey{value, reqType, strings.Join(words, " ")}
	}
}

func significantWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// classifyRequirementType implements the two-phase classification from spec
// §4.5.1 paragraph 3 / _classify_requirement_type: direct lexical signals
// first, then concept-score voting across conceptOntology.
func classifyRequirementType(unitContext, fullGoal string) string {
	unitLower := strings.ToLower(unitContext)
	combined := unitLower + " " + fullGoal

	switch {
	case containsAny(unitLower, []string{"eur", "usd", "gbp", "$", "€", "£", "¥"}):
		return "financial"
	case containsAny(unitLower, []string{"contact", "contacts"}):
		return "contacts"
	case containsAny(unitLower, []string{"email", "sequence", "message"}):
		return "email_sequences"
	case containsAny(unitLower, []string{"week", "day", "month", "year", "hour"}):
		return "temporal"
	case strings.Contains(combined, "%") || containsAny(combined, []string{"percentage", "rate", "ratio"}):
		return "percentage"
	}

	type scored struct {
		concept string
		score   int
	}
	var scores []scored
	for name, def := range conceptOntology {
		score := 0
		for _, kw := range def.keywords {
			if strings.Contains(combined, kw) {
				score += 2
			}
			if strings.Contains(unitLower, kw) {
				score += 3
			}
		}
		if score > 0 {
			scores = append(scores, scored{name, score})
		}
	}
	if len(scores) > 0 {
		sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
		best := conceptOntology[scores[0].concept]
		for _, mt := range best.metricTypes {
			for _, kw := range strings.Split(mt, "_") {
				if strings.Contains(unitLower, kw) {
					return mt
				}
			}
		}
		if len(best.metricTypes) > 0 {
			return best.metricTypes[0]
		}
		return scores[0].concept
	}

	switch {
	case len(strings.Fields(unitLower)) > 1:
		return "deliverables"
	case strings.HasSuffix(unitLower, "s"):
		return "items"
	default:
		return "general"
	}
}

func detectDomain(goalLower string) string {
	type scored struct {
		concept string
		score   int
	}
	var scores []scored
	for name, def := range conceptOntology {
		score := 0
		for _, kw := range def.keywords {
			if strings.Contains(goalLower, kw) {
				score += 2
			}
		}
		if score > 0 {
			scores = append(scores, scored{name, score})
		}
	}
	if len(scores) == 0 {
		return "general"
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	return scores[0].concept
}

var vagueUnits = map[string]bool{
	"in": true, "for": true, "of": true, "with": true, "on": true, "a": true, "and": true, "the": true,
}

// isLowQualityExtraction filters matches whose unit span is too short,
// purely prepositional, or a temporal word misparsed as a percentage — spec
// §4.5.1 paragraph 1's "quality filter".
func isLowQualityExtraction(unitContext, fullContext, reqType string) bool {
	unitLower := strings.ToLower(strings.TrimSpace(unitContext))
	if len(strings.TrimSpace(unitContext)) < 3 {
		return true
	}
	if reqType == "percentage" && len(strings.TrimSpace(fullContext)) < 5 {
		return true
	}
	if reqType == "percentage" && strings.Contains(unitLower, "week") {
		return true
	}
	if vagueUnits[unitLower] {
		return true
	}
	return false
}

// detectImplicitRequirements adds timeline/quality-threshold requirements
// when canonical phrases are present, even without an explicit numeric
// pattern match — spec §4.5.1 paragraph 1's "implicit requirement pass".
func detectImplicitRequirements(goalLower string) []Requirement {
	var out []Requirement
	if containsAny(goalLower, []string{"within 6 weeks", "in 6 weeks"}) {
		out = append(out, Requirement{
			Type: "timeline", TargetValue: 6, Unit: "weeks", Domain: "general",
			SourceSpan: "timeline constraint", IsMinimum: false, IsPercentage: false,
		})
	}
	if containsAny(goalLower, []string{"≥ 30%", ">=30%", "at least 30%"}) {
		out = append(out, Requirement{
			Type: "quality_threshold", TargetValue: 30, Unit: "percentage", Domain: "quality",
			SourceSpan: "minimum quality standard", IsMinimum: true, IsPercentage: true,
		})
	}
	return out
}
