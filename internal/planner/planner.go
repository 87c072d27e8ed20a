// Package planner implements the C7 Task Planner: turns a goal and its asset
// requirements into a prioritised, dependency-ordered batch of tasks. LLM
// calls go through the AgentRuntime port with a deterministic per-asset-type
// template as the fallback when the runtime is unavailable, mirroring the
// teacher's planner package's "structured decision, deterministic fallback"
// shape (runtime/agent/planner/planner.go's PlanResult carries either tool
// calls or a final response — here Plan* calls either return LLM-sequenced
// tasks or the template fallback).
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/agentruntime"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/cooldown"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/idempotency"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
)

// ErrCorrectiveCooldown is returned by PlanCorrective when the (workspace,
// metric_type) pair is still within its cooldown window.
var ErrCorrectiveCooldown = errors.New("planner: corrective task cooldown active")

// RequirementGenerator is the seam into the C8 Deliverable Engine's
// requirement-generation step, kept as a narrow port so the planner does not
// depend on the deliverable package's concrete Engine type.
type RequirementGenerator interface {
	GenerateRequirements(ctx context.Context, goal domain.Goal) ([]domain.AssetRequirement, error)
}

// Planner implements the C7 contract.
type Planner struct {
	store       store.Store
	runtime     agentruntime.AgentRuntime
	tel         telemetry.Telemetry
	cooldowns   cooldown.Cooldowns
	reqGen      RequirementGenerator
	cooldownTTL time.Duration
	maxPerCycle int
}

// New constructs a Planner. runtime may be nil to force deterministic
// templates; reqGen may be nil if the caller guarantees requirements already
// exist; cooldowns may be nil to disable corrective-task throttling.
func New(st store.Store, runtime agentruntime.AgentRuntime, tel telemetry.Telemetry, cooldowns cooldown.Cooldowns, reqGen RequirementGenerator, cooldownTTL time.Duration, maxPerCycle int) *Planner {
	return &Planner{
		store: st, runtime: runtime, tel: tel, cooldowns: cooldowns, reqGen: reqGen,
		cooldownTTL: cooldownTTL, maxPerCycle: maxPerCycle,
	}
}

// PlanInitial ensures requirements exist for goal, generates tasks for every
// requirement lacking an approved artifact, prioritises and dependency-orders
// the batch, persists it, and enforces maxPerCycle (spec §4.6 steps 1-6).
func (p *Planner) PlanInitial(ctx context.Context, goal domain.Goal) ([]domain.Task, error) {
	requirements, err := p.ensureRequirements(ctx, goal)
	if err != nil {
		return nil, err
	}

	var generated []domain.Task
	for _, req := range requirements {
		done, err := p.requirementSatisfied(ctx, goal.WorkspaceID, goal.ID, req.ID)
		if err != nil {
			return nil, err
		}
		if done {
			continue
		}
		tasks, err := p.PlanFromRequirement(ctx, goal, req)
		if err != nil {
			return nil, err
		}
		generated = append(generated, tasks...)
	}

	ordered := sequence(generated, goal, requirements)
	if p.maxPerCycle > 0 && len(ordered) > p.maxPerCycle {
		if p.tel != nil {
			p.tel.Logger().Warn(ctx, "planner: batch truncated to per-cycle budget",
				"goal_id", goal.ID, "generated", len(ordered), "budget", p.maxPerCycle)
		}
		ordered = ordered[:p.maxPerCycle]
	}
	return ordered, nil
}

// PlanFromRequirement generates and persists tasks for a single requirement,
// via the LLM when available, else a deterministic per-asset-type template
// (spec §4.6 step 2).
func (p *Planner) PlanFromRequirement(ctx context.Context, goal domain.Goal, req domain.AssetRequirement) ([]domain.Task, error) {
	specs := p.generateTaskSpecs(ctx, goal, req)

	tasks := make([]domain.Task, 0, len(specs))
	for _, spec := range specs {
		now := time.Now().UTC()
		task := domain.Task{
			ID:                 uuid.NewString(),
			WorkspaceID:        goal.WorkspaceID,
			GoalID:             goal.ID,
			AssetRequirementID: req.ID,
			Name:               spec.Name,
			Description:        spec.Description,
			Status:             domain.TaskPending,
			Priority:           priorityFor(spec.Priority),
			AIGenerated:        true,
			CreatedAt:          now,
			UpdatedAt:          now,
			Dependencies:       spec.Dependencies,
			ContextData: map[string]any{
				"expected_output":       spec.ExpectedOutput,
				"task_type":             spec.TaskType,
				"success_criteria":      spec.SuccessCriteria,
				"quality_checkpoints":   spec.QualityCheckpoints,
				"required_skills":       spec.RequiredSkills,
				"tools_needed":          spec.ToolsNeeded,
				"contribution_to_asset": spec.ContributionToAsset,
				"goal_snapshot":         goalSnapshot(goal),
				"asset_snapshot":        assetSnapshot(req),
			},
		}
		key := idempotency.TaskKey(goal.ID, req.ID, spec.Name)
		created, err := p.store.CreateTask(ctx, task, key)
		if err != nil {
			return nil, fmt.Errorf("planner: create task: %w", err)
		}
		tasks = append(tasks, created)
	}
	return tasks, nil
}

// PlanCorrective creates and persists a single high-priority corrective task
// for the deficient requirement named in gapContext, gated by a
// per-(workspace,metric_type) cooldown to prevent corrective loops (spec
// §4.6 "Corrective-task path").
func (p *Planner) PlanCorrective(ctx context.Context, goalID string, gapContext map[string]any) (domain.Task, error) {
	goal, err := p.store.GetGoal(ctx, goalID)
	if err != nil {
		return domain.Task{}, fmt.Errorf("planner: corrective: %w", err)
	}

	metricType, _ := gapContext["requirement_type"].(string)
	cooldownKey := goal.WorkspaceID + ":" + metricType
	if p.cooldowns != nil {
		ok, err := p.cooldowns.TryAcquire(ctx, cooldownKey, p.cooldownTTL)
		if err != nil {
			return domain.Task{}, fmt.Errorf("planner: cooldown: %w", err)
		}
		if !ok {
			return domain.Task{}, ErrCorrectiveCooldown
		}
	}

	now := time.Now().UTC()
	deadline := now.Add(24 * time.Hour)
	task := domain.Task{
		ID:           uuid.NewString(),
		WorkspaceID:  goal.WorkspaceID,
		GoalID:       goalID,
		Name:         fmt.Sprintf("Correct gap in %s", metricType),
		Description:  fmt.Sprintf("Address shortfall against the %s target before the goal can progress further.", metricType),
		Status:       domain.TaskPending,
		Priority:     domain.PriorityHigh,
		IsCorrective: true,
		AIGenerated:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
		Deadline:     &deadline,
		ContextData:  map[string]any{"memory_context": gapContext},
	}
	key := idempotency.TaskKey(goalID, metricType, task.Name)
	created, err := p.store.CreateTask(ctx, task, key)
	if err != nil {
		return domain.Task{}, fmt.Errorf("planner: create corrective task: %w", err)
	}

	if p.tel != nil {
		p.tel.Broadcast(ctx, telemetry.EventAutoTaskGenerated, created.ID)
	}
	return created, nil
}

// EnsureRequirements is the public entry for the Goal Monitor's per-cycle
// "ensure requirements exist for every goal" step (spec §4.9 step 6) — the
// same logic PlanInitial already runs internally before generating tasks.
func (p *Planner) EnsureRequirements(ctx context.Context, goal domain.Goal) ([]domain.AssetRequirement, error) {
	return p.ensureRequirements(ctx, goal)
}

func (p *Planner) ensureRequirements(ctx context.Context, goal domain.Goal) ([]domain.AssetRequirement, error) {
	existing, err := p.store.GetAssetRequirements(ctx, goal.ID)
	if err != nil {
		return nil, fmt.Errorf("planner: get requirements: %w", err)
	}
	if len(existing) > 0 || p.reqGen == nil {
		return existing, nil
	}
	generated, err := p.reqGen.GenerateRequirements(ctx, goal)
	if err != nil {
		return nil, fmt.Errorf("planner: generate requirements: %w", err)
	}
	for _, req := range generated {
		if err := p.store.UpsertAssetRequirement(ctx, req); err != nil {
			return nil, fmt.Errorf("planner: persist requirement: %w", err)
		}
	}
	return generated, nil
}

// requirementSatisfied reports whether any completed task against req already
// has an approved artifact (spec §4.6 step 1 "skip requirements already
// satisfied by an approved artifact").
func (p *Planner) requirementSatisfied(ctx context.Context, workspaceID, goalID, requirementID string) (bool, error) {
	tasks, err := p.store.ListTasks(ctx, workspaceID, store.TaskFilter{GoalID: goalID})
	if err != nil {
		return false, fmt.Errorf("planner: list tasks: %w", err)
	}
	for _, t := range tasks {
		if t.AssetRequirementID != requirementID {
			continue
		}
		artifacts, err := p.store.ListArtifacts(ctx, t.ID)
		if err != nil {
			return false, fmt.Errorf("planner: list artifacts: %w", err)
		}
		for _, a := range artifacts {
			if a.Status == domain.ArtifactApproved {
				return true, nil
			}
		}
	}
	return false, nil
}

func priorityFor(raw string) domain.TaskPriority {
	switch domain.TaskPriority(raw) {
	case domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh:
		return domain.TaskPriority(raw)
	default:
		return domain.PriorityMedium
	}
}

func goalSnapshot(goal domain.Goal) map[string]any {
	return map[string]any{
		"metric_type": goal.MetricType, "target_value": goal.TargetValue,
		"current_value": goal.CurrentValue, "unit": goal.Unit,
	}
}

func assetSnapshot(req domain.AssetRequirement) map[string]any {
	return map[string]any{
		"asset_name": req.AssetName, "asset_type": req.AssetType, "asset_format": req.AssetFormat,
	}
}
