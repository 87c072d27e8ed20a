package planner

// taskSpec is an LLM- or template-generated task blueprint, not yet bound to
// IDs or persistence.
type taskSpec struct {
	Name                string
	Description         string
	Priority            string
	TaskType            string
	ExpectedOutput      string
	SuccessCriteria     []string
	QualityCheckpoints  []string
	RequiredSkills      []string
	ToolsNeeded         []string
	ContributionToAsset string
	Dependencies        []string
}

// fallbackTemplate returns the deterministic two-task plan (research/draft,
// then produce) used when the AgentRuntime is unavailable or returns no
// usable structured payload (spec §4.6 step 2 "deterministic fallback per
// asset_type").
func fallbackTemplate(assetType, assetName string) []taskSpec {
	draft := taskSpec{
		Name:                "Research and draft " + assetName,
		Description:         "Gather the source material and produce a first draft of " + assetName + ".",
		Priority:            "medium",
		TaskType:            "research",
		ExpectedOutput:      "a structured draft of " + assetName,
		SuccessCriteria:     []string{"draft covers every acceptance criterion field"},
		RequiredSkills:      skillsFor(assetType),
		ContributionToAsset: "provides the raw content the production task refines",
	}
	produce := taskSpec{
		Name:                "Produce final " + assetName,
		Description:         "Refine the draft into the final " + assetType + " deliverable for " + assetName + ".",
		Priority:            "high",
		TaskType:            productionTypeFor(assetType),
		ExpectedOutput:      "a finished " + assetType + " artifact ready for validation",
		SuccessCriteria:     []string{"meets the requirement's acceptance criteria", "passes quality review"},
		QualityCheckpoints:  []string{"format matches asset_format", "no placeholder content remains"},
		RequiredSkills:      skillsFor(assetType),
		ContributionToAsset: "the requirement's primary artifact",
		Dependencies:        []string{draft.Name},
	}
	return []taskSpec{draft, produce}
}

func productionTypeFor(assetType string) string {
	switch assetType {
	case "code":
		return "integration"
	case "design":
		return "creation"
	default:
		return "creation"
	}
}

func skillsFor(assetType string) []string {
	switch assetType {
	case "document":
		return []string{"writing", "research"}
	case "design":
		return []string{"design", "visual_communication"}
	case "code":
		return []string{"engineering", "testing"}
	default:
		return []string{"general"}
	}
}
