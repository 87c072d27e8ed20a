// Package memstore is the default in-process Store (C1) implementation, for
// tests and single-process deployments with no durability requirement.
// Adapted from the teacher's runtime/agent/run/inmem and
// runtime/agent/session/inmem stores: records are held in maps guarded by a
// single sync.RWMutex and defensively copied on every read and write so that
// callers can never mutate stored state through an aliased slice or map.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store"
)

// Store implements store.Store entirely in memory. All operations are
// thread-safe via a single sync.RWMutex; this trades fine-grained contention
// for the simplicity a reference implementation needs. CAS operations
// (UpdateTaskStatus, UpdateWorkspaceStatus, UpdateGoalCurrentValue) compare
// the expected value while holding the write lock, so there is no
// read-then-write race window.
type Store struct {
	mu sync.RWMutex

	workspaces   map[string]domain.Workspace
	agents       map[string]domain.Agent
	goals        map[string]domain.Goal
	requirements map[string]domain.AssetRequirement // keyed by requirement ID
	tasks        map[string]domain.Task
	idempotency  map[string]string // idempotency key -> task ID
	artifacts    map[string][]domain.Artifact // keyed by task ID
	deliverables map[string][]domain.Deliverable // keyed by goal ID
	recoveries   map[string][]domain.RecoveryAttempt // keyed by task ID
	insights     map[string][]domain.Insight // keyed by workspace ID
	thinking     map[string]domain.ThinkingProcess // keyed by process ID
	events       []store.EventRecord
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		workspaces:   make(map[string]domain.Workspace),
		agents:       make(map[string]domain.Agent),
		goals:        make(map[string]domain.Goal),
		requirements: make(map[string]domain.AssetRequirement),
		tasks:        make(map[string]domain.Task),
		idempotency:  make(map[string]string),
		artifacts:    make(map[string][]domain.Artifact),
		deliverables: make(map[string][]domain.Deliverable),
		recoveries:   make(map[string][]domain.RecoveryAttempt),
		insights:     make(map[string][]domain.Insight),
		thinking:     make(map[string]domain.ThinkingProcess),
	}
}

// Workspaces

func (s *Store) GetWorkspace(_ context.Context, id string) (domain.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workspaces[id]
	if !ok {
		return domain.Workspace{}, store.ErrNotFound
	}
	return w, nil
}

func (s *Store) ListActiveWorkspaces(_ context.Context) ([]domain.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Workspace, 0, len(s.workspaces))
	for _, w := range s.workspaces {
		if w.Status == domain.WorkspaceActive || w.Status == domain.WorkspaceProcessingTasks {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Store) ListAllWorkspaces(_ context.Context) ([]domain.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Workspace, 0, len(s.workspaces))
	for _, w := range s.workspaces {
		out = append(out, w)
	}
	return out, nil
}

func (s *Store) ListWorkspacesWithPendingTasks(_ context.Context) ([]domain.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pending := make(map[string]struct{})
	for _, t := range s.tasks {
		if t.Status == domain.TaskPending || t.Status == domain.TaskQueued {
			pending[t.WorkspaceID] = struct{}{}
		}
	}
	out := make([]domain.Workspace, 0, len(pending))
	for id := range pending {
		if w, ok := s.workspaces[id]; ok {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Store) UpdateWorkspaceStatus(_ context.Context, id string, newStatus, expected domain.WorkspaceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workspaces[id]
	if !ok {
		return store.ErrNotFound
	}
	if w.Status != expected {
		return &store.ConflictError{Field: "workspace.status", Expected: expected, Actual: w.Status}
	}
	w.Status = newStatus
	w.UpdatedAt = time.Now().UTC()
	s.workspaces[id] = w
	return nil
}

func (s *Store) UpsertWorkspace(_ context.Context, w domain.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.CreatedAt.IsZero() {
		if existing, ok := s.workspaces[w.ID]; ok {
			w.CreatedAt = existing.CreatedAt
		} else {
			w.CreatedAt = time.Now().UTC()
		}
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = time.Now().UTC()
	}
	s.workspaces[w.ID] = w
	return nil
}

// Agents

func (s *Store) ListAgents(_ context.Context, workspaceID string) ([]domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Agent, 0)
	for _, a := range s.agents {
		if a.WorkspaceID == workspaceID {
			out = append(out, cloneAgent(a))
		}
	}
	return out, nil
}

func (s *Store) GetAgent(_ context.Context, id string) (domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return domain.Agent{}, store.ErrNotFound
	}
	return cloneAgent(a), nil
}

func (s *Store) UpdateAgentStatus(_ context.Context, id string, newStatus domain.AgentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Status = newStatus
	s.agents[id] = a
	return nil
}

func (s *Store) UpsertAgent(_ context.Context, a domain.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID] = cloneAgent(a)
	return nil
}

func cloneAgent(a domain.Agent) domain.Agent {
	if a.Skills != nil {
		a.Skills = append([]string(nil), a.Skills...)
	}
	return a
}

// Goals and requirements

func (s *Store) ListWorkspaceGoals(_ context.Context, workspaceID string, filter store.GoalFilter) ([]domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Goal, 0)
	for _, g := range s.goals {
		if g.WorkspaceID != workspaceID {
			continue
		}
		if filter.Status != nil && g.Status != *filter.Status {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *Store) ListAllGoals(_ context.Context) ([]domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Goal, 0, len(s.goals))
	for _, g := range s.goals {
		out = append(out, g)
	}
	return out, nil
}

func (s *Store) DeleteGoalsForWorkspace(_ context.Context, workspaceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, g := range s.goals {
		if g.WorkspaceID == workspaceID {
			delete(s.goals, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) GetGoal(_ context.Context, id string) (domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[id]
	if !ok {
		return domain.Goal{}, store.ErrNotFound
	}
	return g, nil
}

func (s *Store) UpdateGoal(_ context.Context, id string, mutate func(g *domain.Goal) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return store.ErrNotFound
	}
	if err := mutate(&g); err != nil {
		return err
	}
	s.goals[id] = g
	return nil
}

func (s *Store) UpdateGoalCurrentValue(_ context.Context, id string, newValue, expected float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return store.ErrNotFound
	}
	if g.CurrentValue != expected {
		return &store.ConflictError{Field: "goal.current_value", Expected: expected, Actual: g.CurrentValue}
	}
	g.CurrentValue = newValue
	s.goals[id] = g
	return nil
}

func (s *Store) UpsertGoal(_ context.Context, g domain.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[g.ID] = g
	return nil
}

func (s *Store) GetAssetRequirements(_ context.Context, goalID string) ([]domain.AssetRequirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AssetRequirement, 0)
	for _, r := range s.requirements {
		if r.GoalID == goalID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) UpsertAssetRequirement(_ context.Context, r domain.AssetRequirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requirements[r.ID] = r
	return nil
}

// Tasks

func (s *Store) ListTasks(_ context.Context, workspaceID string, filter store.TaskFilter) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, 0)
	for _, t := range s.tasks {
		if t.WorkspaceID != workspaceID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.GoalID != "" && t.GoalID != filter.GoalID {
			continue
		}
		if filter.AgentID != "" && t.AgentID != filter.AgentID {
			continue
		}
		out = append(out, cloneTask(t))
	}
	return out, nil
}

func (s *Store) GetTask(_ context.Context, id string) (domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, store.ErrNotFound
	}
	return cloneTask(t), nil
}

// CreateTask inserts t, deduping on idempotencyKey: a retried create with the
// same key returns the previously created row unchanged rather than a
// duplicate, per spec §4.1 "idempotent under retry via a caller-supplied
// idempotency key".
func (s *Store) CreateTask(_ context.Context, t domain.Task, idempotencyKey string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idempotencyKey != "" {
		if existingID, ok := s.idempotency[idempotencyKey]; ok {
			return cloneTask(s.tasks[existingID]), nil
		}
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.UpdatedAt = t.CreatedAt
	t.IdempotencyKey = idempotencyKey
	s.tasks[t.ID] = cloneTask(t)
	if idempotencyKey != "" {
		s.idempotency[idempotencyKey] = t.ID
	}
	return cloneTask(t), nil
}

func (s *Store) UpdateTaskStatus(_ context.Context, id string, newStatus domain.TaskStatus, result *domain.TaskResult, expected domain.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return store.ErrNotFound
	}
	if t.Status != expected {
		return &store.ConflictError{Field: "task.status", Expected: expected, Actual: t.Status}
	}
	t.Status = newStatus
	t.UpdatedAt = time.Now().UTC()
	if result != nil {
		r := *result
		t.Result = &r
	}
	s.tasks[id] = t
	return nil
}

func (s *Store) UpdateTask(_ context.Context, id string, mutate func(t *domain.Task) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return store.ErrNotFound
	}
	if err := mutate(&t); err != nil {
		return err
	}
	t.UpdatedAt = time.Now().UTC()
	s.tasks[id] = t
	return nil
}

func cloneTask(t domain.Task) domain.Task {
	if t.Dependencies != nil {
		t.Dependencies = append([]string(nil), t.Dependencies...)
	}
	if t.ContextData != nil {
		cp := make(map[string]any, len(t.ContextData))
		for k, v := range t.ContextData {
			cp[k] = v
		}
		t.ContextData = cp
	}
	if t.Result != nil {
		r := *t.Result
		t.Result = &r
	}
	return t
}

// Artifacts and deliverables

func (s *Store) InsertArtifact(_ context.Context, a domain.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.artifacts[a.TaskID] = append(s.artifacts[a.TaskID], a)
	return nil
}

func (s *Store) ListArtifacts(_ context.Context, taskID string) ([]domain.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.artifacts[taskID]
	out := make([]domain.Artifact, len(src))
	copy(out, src)
	return out, nil
}

func (s *Store) InsertDeliverable(_ context.Context, d domain.Deliverable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	s.deliverables[d.GoalID] = append(s.deliverables[d.GoalID], d)
	return nil
}

func (s *Store) LatestDeliverable(_ context.Context, goalID string) (domain.Deliverable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.deliverables[goalID]
	if len(rows) == 0 {
		return domain.Deliverable{}, store.ErrNotFound
	}
	latest := rows[0]
	for _, d := range rows[1:] {
		if d.CreatedAt.After(latest.CreatedAt) {
			latest = d
		}
	}
	return latest, nil
}

// Thinking processes

func (s *Store) SaveThinkingProcess(_ context.Context, p domain.ThinkingProcess) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thinking[p.ProcessID] = cloneThinkingProcess(p)
	return nil
}

func (s *Store) GetThinkingProcess(_ context.Context, processID string) (domain.ThinkingProcess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.thinking[processID]
	if !ok {
		return domain.ThinkingProcess{}, store.ErrNotFound
	}
	return cloneThinkingProcess(p), nil
}

func (s *Store) ListThinkingProcesses(_ context.Context, workspaceID string, limit int) ([]domain.ThinkingProcess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ThinkingProcess
	for _, p := range s.thinking {
		if p.WorkspaceID != workspaceID {
			continue
		}
		out = append(out, cloneThinkingProcess(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneThinkingProcess(p domain.ThinkingProcess) domain.ThinkingProcess {
	if p.Steps != nil {
		p.Steps = append([]domain.ThinkingStep(nil), p.Steps...)
	}
	if p.SummaryMetadata != nil {
		cp := make(map[string]any, len(p.SummaryMetadata))
		for k, v := range p.SummaryMetadata {
			cp[k] = v
		}
		p.SummaryMetadata = cp
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		p.CompletedAt = &t
	}
	return p
}

// Recovery and insights

func (s *Store) InsertRecoveryAttempt(_ context.Context, r domain.RecoveryAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.recoveries[r.TaskID] = append(s.recoveries[r.TaskID], r)
	return nil
}

func (s *Store) ListRecoveryAttempts(_ context.Context, taskID string) ([]domain.RecoveryAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.recoveries[taskID]
	out := make([]domain.RecoveryAttempt, len(src))
	copy(out, src)
	return out, nil
}

func (s *Store) InsertInsight(_ context.Context, i domain.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	s.insights[i.WorkspaceID] = append(s.insights[i.WorkspaceID], i)
	return nil
}

func (s *Store) GetInsights(_ context.Context, workspaceID string, filter store.InsightFilter) ([]domain.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Insight
	for _, i := range s.insights[workspaceID] {
		if !hasAnyTag(i.Tags, filter.Tags) {
			continue
		}
		out = append(out, i)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func hasAnyTag(tags, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// LogEvent

func (s *Store) LogEvent(_ context.Context, e store.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}
