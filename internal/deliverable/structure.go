package deliverable

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
)

// fieldPattern pulls a "key: value"-shaped line out of unstructured text for
// the regex-extraction recovery step.
var fieldPattern = regexp.MustCompile(`(?im)^\s*([a-z_]+)\s*[:=]\s*(.+)$`)

// StructureArtifact turns a completed task's result into an Artifact scoped
// to req, following the progressive recovery chain from spec §4.7 step 4:
// (a) the AgentRuntime's structured payload; (b) JSON-parse the free-text
// output; (c) regex-extract known fields from it; (d) fall back to the
// output as a textual summary; (e) synthesise a minimal summary from the
// task itself. Every step degrades gracefully; StructureArtifact never
// returns an error for malformed task output, only for a nil task result.
func StructureArtifact(task domain.Task, req domain.AssetRequirement) (domain.Artifact, error) {
	if task.Result == nil {
		return domain.Artifact{}, fmt.Errorf("deliverable: task %s has no result", task.ID)
	}

	content, recovery := recoverContent(*task.Result)
	quality := qualityScore(content, req, recovery)

	return domain.Artifact{
		ID:            uuid.NewString(),
		WorkspaceID:   task.WorkspaceID,
		RequirementID: req.ID,
		TaskID:        task.ID,
		Content:       content,
		QualityScore:  quality,
		Status:        domain.ArtifactDraft,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// recoveryStage records which rung of the progressive-recovery ladder
// produced the artifact content, used only to discount the quality score for
// degraded recoveries.
type recoveryStage int

const (
	stageStructured recoveryStage = iota
	stageJSONParsed
	stageRegexExtracted
	stageTextualSummary
	stageSynthesized
)

func recoverContent(result domain.TaskResult) (map[string]any, recoveryStage) {
	if len(result.StructuredPayload) > 0 {
		return result.StructuredPayload, stageStructured
	}

	if parsed, ok := tryParseJSON(result.Output); ok {
		return parsed, stageJSONParsed
	}

	if extracted := extractFields(result.Output); len(extracted) > 0 {
		return extracted, stageRegexExtracted
	}

	if strings.TrimSpace(result.Output) != "" {
		return map[string]any{"summary": result.Output}, stageTextualSummary
	}

	detail := result.StatusDetail
	if detail == "" {
		detail = "no output recorded"
	}
	return map[string]any{"summary": "unable to recover structured content: " + detail}, stageSynthesized
}

func tryParseJSON(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed[0] != '{' {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(trimmed), &m); err != nil {
		return nil, false
	}
	return m, true
}

func extractFields(text string) map[string]any {
	matches := fieldPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make(map[string]any, len(matches))
	for _, m := range matches {
		key := strings.ToLower(m[1])
		value := strings.TrimSpace(m[2])
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			out[key] = f
		} else {
			out[key] = value
		}
	}
	return out
}

// qualityScore rates the artifact [0,100]: a base score for how far down the
// recovery ladder the content came from, adjusted by schema validity when the
// requirement names a known schema.
func qualityScore(content map[string]any, req domain.AssetRequirement, stage recoveryStage) float64 {
	base := map[recoveryStage]float64{
		stageStructured:      90,
		stageJSONParsed:       80,
		stageRegexExtracted:   60,
		stageTextualSummary:   40,
		stageSynthesized:      15,
	}[stage]

	if req.AcceptanceCriteria.SchemaName == "" {
		return base
	}
	valid, _ := ValidatePayload(req.AcceptanceCriteria.SchemaName, content)
	if !valid {
		base -= 25
		if base < 0 {
			base = 0
		}
	}
	return base
}
