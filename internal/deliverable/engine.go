package deliverable

import (
	"context"
	"fmt"
	"time"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/agentruntime"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
)

// Engine implements the C8 contract: requirement generation, task-output
// structuring, schema validation, and deliverable aggregation.
type Engine struct {
	store             store.Store
	runtime           agentruntime.AgentRuntime
	tel               telemetry.Telemetry
	cache             *payloadCache
	approvalThreshold float64
}

// New constructs an Engine. runtime may be nil to force the deterministic
// requirement-generation fallback. cacheMaxEntries/cacheTTL size the
// aggregation cache (spec §4.7 step 5, default 100 entries / 30 min).
func New(st store.Store, runtime agentruntime.AgentRuntime, tel telemetry.Telemetry, approvalThreshold float64, cacheMaxEntries int, cacheTTL time.Duration) *Engine {
	return &Engine{
		store: st, runtime: runtime, tel: tel,
		cache:             newPayloadCache(cacheMaxEntries, cacheTTL),
		approvalThreshold: approvalThreshold,
	}
}

// ProcessCompletedTask is the Executor's post-completion hook (spec §4.10
// step 6 "invoke C8's post-completion hook"): structures the task's result
// into an Artifact, auto-approves it when its quality score clears the
// configured threshold, and marks the requirement fulfilled on first
// approval.
func (e *Engine) ProcessCompletedTask(ctx context.Context, task domain.Task) (domain.Artifact, error) {
	if task.AssetRequirementID == "" {
		return domain.Artifact{}, nil // not tied to a requirement, nothing to structure
	}
	requirements, err := e.store.GetAssetRequirements(ctx, task.GoalID)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("deliverable: get requirements: %w", err)
	}
	req, ok := findRequirement(requirements, task.AssetRequirementID)
	if !ok {
		return domain.Artifact{}, nil
	}

	artifact, err := StructureArtifact(task, req)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("deliverable: structure: %w", err)
	}
	if artifact.QualityScore >= e.approvalThreshold {
		artifact.Status = domain.ArtifactApproved
	}
	if err := e.store.InsertArtifact(ctx, artifact); err != nil {
		return domain.Artifact{}, fmt.Errorf("deliverable: insert artifact: %w", err)
	}

	if artifact.Status == domain.ArtifactApproved {
		req.Status = domain.RequirementFulfilled
		if err := e.store.UpsertAssetRequirement(ctx, req); err != nil {
			return artifact, fmt.Errorf("deliverable: fulfil requirement: %w", err)
		}
	}
	return artifact, nil
}

func findRequirement(requirements []domain.AssetRequirement, id string) (domain.AssetRequirement, bool) {
	for _, r := range requirements {
		if r.ID == id {
			return r, true
		}
	}
	return domain.AssetRequirement{}, false
}
