package validator

import (
	"strings"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
)

// Achievements aggregates measurable outcomes across a workspace's completed
// tasks, ported from AIGoalValidator._extract_task_achievements. Count-type
// fields sum across tasks; Percentages/QualityScores are kept as a slice so
// callers can take a max.
type Achievements struct {
	Contacts        float64
	EmailSequences  float64
	ContentPieces   float64
	Percentages     []float64
	QualityScores   []float64
	StructuredCount int // tasks whose structured payload contributed
}

var contentFields = []string{"content_calendar", "posts", "articles", "templates"}

// ExtractAchievements aggregates achievements across completed tasks. Each
// task's own contribution is computed independently — taking, for each
// count-type field, the larger of the structured payload's count (known keys:
// contacts, email_sequences, content_calendar/posts/articles/templates,
// quality_score) and a regex scan of the free-text output — and the
// per-task contributions are then summed across
// tasks, mirroring _extract_single_task_achievements's per-task computation
// followed by accumulation in the original (spec §4.5.2).
func ExtractAchievements(tasks []domain.Task) Achievements {
	var total Achievements
	for _, t := range tasks {
		task := extractTaskAchievements(t)
		total.Contacts += task.Contacts
		total.EmailSequences += task.EmailSequences
		total.ContentPieces += task.ContentPieces
		total.Percentages = append(total.Percentages, task.Percentages...)
		total.QualityScores = append(total.QualityScores, task.QualityScores...)
		total.StructuredCount += task.StructuredCount
	}
	return total
}

// extractTaskAchievements computes one task's own achievement contribution:
// structured and text-scan results are extracted independently, then merged
// per count-type field by taking the max of the two (never double-counting
// the same task's output twice).
func extractTaskAchievements(t domain.Task) Achievements {
	var structured, text Achievements
	hadStructured := false
	if t.Result != nil && t.Result.StructuredPayload != nil {
		hadStructured = extractFromStructured(t.Result.StructuredPayload, &structured)
	}
	if t.Result != nil && t.Result.Output != "" {
		extractFromText(t.Result.Output, &text)
	}

	var task Achievements
	task.Contacts = maxFloat(structured.Contacts, text.Contacts)
	task.EmailSequences = maxFloat(structured.EmailSequences, text.EmailSequences)
	task.ContentPieces = maxFloat(structured.ContentPieces, text.ContentPieces)
	task.Percentages = append(task.Percentages, structured.Percentages...)
	task.Percentages = append(task.Percentages, text.Percentages...)
	task.QualityScores = append(task.QualityScores, structured.QualityScores...)
	task.QualityScores = append(task.QualityScores, text.QualityScores...)
	if hadStructured {
		task.StructuredCount = 1
	}
	return task
}

func extractFromStructured(payload map[string]any, a *Achievements) bool {
	contributed := false
	if v, ok := countOf(payload["contacts"]); ok {
		a.Contacts += v
		contributed = true
	}
	if v, ok := countOf(payload["email_sequences"]); ok {
		a.EmailSequences += v
		contributed = true
	}
	for _, field := range contentFields {
		if v, ok := countOf(payload[field]); ok {
			a.ContentPieces += v
			contributed = true
		}
	}
	if v, ok := payload["quality_score"].(float64); ok {
		a.QualityScores = append(a.QualityScores, v)
		contributed = true
	}
	return contributed
}

// countOf extracts a count from a payload value that may be a JSON array
// (count = length) or a map carrying an explicit "length"/"total_sequences"/
// "items" count key — mirroring the isinstance(list)/isinstance(dict)
// branches in _extract_single_task_achievements.
func countOf(v any) (float64, bool) {
	switch val := v.(type) {
	case []any:
		return float64(len(val)), true
	case map[string]any:
		for _, key := range []string{"length", "total_sequences", "items"} {
			if inner, ok := val[key]; ok {
				if items, ok := inner.([]any); ok {
					return float64(len(items)), true
				}
				if n, ok := inner.(float64); ok {
					return n, true
				}
			}
		}
	}
	return 0, false
}

// extractFromText regex-scans an unstructured summary for the same
// contact/email/percentage signals the numeric pattern table can spot, used
// only when no structured payload is present (or as a supplement).
func extractFromText(text string, a *Achievements) {
	lower := strings.ToLower(text)
	for _, p := range numericalPatterns {
		for _, m := range p.regex.FindAllStringSubmatch(lower, -1) {
			value, err := parseValue(m[1])
			if err != nil {
				continue
			}
			context := ""
			if len(m) > 2 {
				context = m[2]
			}
			switch {
			case strings.Contains(context, "contact"):
				a.Contacts = maxFloat(a.Contacts, value)
			case strings.Contains(context, "email") || strings.Contains(context, "sequenc"):
				a.EmailSequences = maxFloat(a.EmailSequences, value)
			case strings.Contains(m[0], "%"):
				a.Percentages = append(a.Percentages, value)
			}
		}
	}
}

func maxFloat(a, b float64) float64 {
	if b > a {
		return b
	}
	return a
}

// ValueFor maps a Requirement's type onto the matching achievement value
// (spec §4.5.2's "map requirement to achievement" step).
func (a Achievements) ValueFor(reqType string) float64 {
	switch reqType {
	case "contacts":
		return a.Contacts
	case "email_sequences":
		return a.EmailSequences
	case "content_pieces", "deliverables", "items":
		return a.ContentPieces
	case "percentage", "quality_threshold":
		return maxOf(a.Percentages)
	default:
		return 0
	}
}

func maxOf(vals []float64) float64 {
	m := 0.0
	for _, v := range vals {
		if v > m {
			m = v
		}
	}
	return m
}
