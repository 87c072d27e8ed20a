// Package mongostore is the durable Store (C1) adapter, for deployments that
// need persisted state to survive process restarts, unlike the default
// memstore. Adapted from the teacher's features/run/mongo and
// features/session/mongo stores (a thin client wrapping one
// collection per entity, upsert-by-natural-key, CAS expressed as a filter
// clause matched by UpdateOne's document count), ported from the mongo-driver
// v1 API the teacher uses onto go.mongodb.org/mongo-driver/v2.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/store"
)

const defaultOpTimeout = 5 * time.Second

// collections names every Mongo collection this adapter owns. Exposed so a
// caller can point at an existing database's naming convention.
type collections struct {
	Workspaces   string
	Agents       string
	Goals        string
	Requirements string
	Tasks        string
	Artifacts    string
	Deliverables string
	Recoveries   string
	Insights     string
	Thinking     string
	Events       string
}

func defaultCollections() collections {
	return collections{
		Workspaces:   "workspaces",
		Agents:       "agents",
		Goals:        "goals",
		Requirements: "asset_requirements",
		Tasks:        "tasks",
		Artifacts:    "artifacts",
		Deliverables: "deliverables",
		Recoveries:   "recovery_attempts",
		Insights:     "insights",
		Thinking:     "thinking_processes",
		Events:       "events",
	}
}

// Options configures a Store.
type Options struct {
	Client   *mongo.Client
	Database string
	Timeout  time.Duration
}

// Store implements store.Store against MongoDB.
type Store struct {
	db      *mongo.Database
	timeout time.Duration
	colls   collections
}

// New constructs a Store and ensures the collections it needs carry the
// unique/lookup indexes the query patterns in spec §6 ("active goals not
// validated since T", "pending tasks in workspace W", ...) rely on.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongostore: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongostore: database is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	s := &Store{
		db:      opts.Client.Database(opts.Database),
		timeout: timeout,
		colls:   defaultCollections(),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	type indexSpec struct {
		coll string
		keys bson.D
		opts *options.IndexOptionsBuilder
	}
	specs := []indexSpec{
		{s.colls.Workspaces, bson.D{{Key: "status", Value: 1}}, nil},
		{s.colls.Goals, bson.D{{Key: "workspace_id", Value: 1}, {Key: "status", Value: 1}}, nil},
		{s.colls.Requirements, bson.D{{Key: "goal_id", Value: 1}}, nil},
		{s.colls.Tasks, bson.D{{Key: "workspace_id", Value: 1}, {Key: "status", Value: 1}}, nil},
		{s.colls.Tasks, bson.D{{Key: "idempotency_key", Value: 1}}, options.Index().SetUnique(true).SetSparse(true)},
		{s.colls.Artifacts, bson.D{{Key: "task_id", Value: 1}}, nil},
		{s.colls.Deliverables, bson.D{{Key: "goal_id", Value: 1}, {Key: "created_at", Value: -1}}, nil},
		{s.colls.Recoveries, bson.D{{Key: "task_id", Value: 1}, {Key: "attempt_number", Value: 1}}, nil},
		{s.colls.Insights, bson.D{{Key: "workspace_id", Value: 1}, {Key: "tags", Value: 1}}, nil},
		{s.colls.Thinking, bson.D{{Key: "workspace_id", Value: 1}, {Key: "started_at", Value: -1}}, nil},
	}
	for _, sp := range specs {
		model := mongo.IndexModel{Keys: sp.keys}
		if sp.opts != nil {
			model.Options = sp.opts
		}
		if _, err := s.db.Collection(sp.coll).Indexes().CreateOne(ctx, model); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.timeout)
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return errorsJoin(store.ErrUnavailable, err)
}

// errorsJoin wraps err so errors.Is(result, store.ErrUnavailable) holds while
// the original message and Unwrap chain is preserved for logging.
func errorsJoin(sentinel, err error) error {
	return &wrappedErr{sentinel: sentinel, err: err}
}

type wrappedErr struct {
	sentinel error
	err      error
}

func (w *wrappedErr) Error() string { return w.err.Error() }
func (w *wrappedErr) Unwrap() []error { return []error{w.sentinel, w.err} }

// Workspaces

type workspaceDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	GoalText  string    `bson:"goal_text"`
	Status    string    `bson:"status"`
	Budget    budgetDoc `bson:"budget"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type budgetDoc struct {
	MaxAmount float64 `bson:"max_amount"`
	Currency  string  `bson:"currency"`
}

func toWorkspaceDoc(w domain.Workspace) workspaceDoc {
	return workspaceDoc{
		ID: w.ID, Name: w.Name, GoalText: w.GoalText, Status: string(w.Status),
		Budget:    budgetDoc{MaxAmount: w.Budget.MaxAmount, Currency: w.Budget.Currency},
		CreatedAt: w.CreatedAt, UpdatedAt: w.UpdatedAt,
	}
}

func (d workspaceDoc) toDomain() domain.Workspace {
	return domain.Workspace{
		ID: d.ID, Name: d.Name, GoalText: d.GoalText, Status: domain.WorkspaceStatus(d.Status),
		Budget:    domain.Budget{MaxAmount: d.Budget.MaxAmount, Currency: d.Budget.Currency},
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

func (s *Store) GetWorkspace(ctx context.Context, id string) (domain.Workspace, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc workspaceDoc
	err := s.db.Collection(s.colls.Workspaces).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		return domain.Workspace{}, translateErr(err)
	}
	return doc.toDomain(), nil
}

func (s *Store) ListActiveWorkspaces(ctx context.Context) ([]domain.Workspace, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"status": bson.M{"$in": bson.A{string(domain.WorkspaceActive), string(domain.WorkspaceProcessingTasks)}}}
	cur, err := s.db.Collection(s.colls.Workspaces).Find(ctx, filter)
	if err != nil {
		return nil, translateErr(err)
	}
	var docs []workspaceDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translateErr(err)
	}
	out := make([]domain.Workspace, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (s *Store) ListAllWorkspaces(ctx context.Context) ([]domain.Workspace, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.db.Collection(s.colls.Workspaces).Find(ctx, bson.M{})
	if err != nil {
		return nil, translateErr(err)
	}
	var docs []workspaceDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translateErr(err)
	}
	out := make([]domain.Workspace, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (s *Store) ListWorkspacesWithPendingTasks(ctx context.Context) ([]domain.Workspace, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	taskFilter := bson.M{"status": bson.M{"$in": bson.A{string(domain.TaskPending), string(domain.TaskQueued)}}}
	cur, err := s.db.Collection(s.colls.Tasks).Find(ctx, taskFilter, options.Find().SetProjection(bson.M{"workspace_id": 1}))
	if err != nil {
		return nil, translateErr(err)
	}
	var rows []struct {
		WorkspaceID string `bson:"workspace_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, translateErr(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(rows))
	ids := make(bson.A, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.WorkspaceID]; ok {
			continue
		}
		seen[r.WorkspaceID] = struct{}{}
		ids = append(ids, r.WorkspaceID)
	}
	wcur, err := s.db.Collection(s.colls.Workspaces).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, translateErr(err)
	}
	var docs []workspaceDoc
	if err := wcur.All(ctx, &docs); err != nil {
		return nil, translateErr(err)
	}
	out := make([]domain.Workspace, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (s *Store) UpdateWorkspaceStatus(ctx context.Context, id string, newStatus, expected domain.WorkspaceStatus) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"_id": id, "status": string(expected)}
	update := bson.M{"$set": bson.M{"status": string(newStatus), "updated_at": time.Now().UTC()}}
	res, err := s.db.Collection(s.colls.Workspaces).UpdateOne(ctx, filter, update)
	if err != nil {
		return translateErr(err)
	}
	if res.MatchedCount == 0 {
		return s.casFailure(ctx, s.colls.Workspaces, id, "workspace.status", string(expected))
	}
	return nil
}

func (s *Store) UpsertWorkspace(ctx context.Context, w domain.Workspace) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	now := time.Now().UTC()
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = now
	}
	doc := toWorkspaceDoc(w)
	filter := bson.M{"_id": w.ID}
	update := bson.M{"$set": doc, "$setOnInsert": bson.M{"created_at": now}}
	_, err := s.db.Collection(s.colls.Workspaces).UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return translateErr(err)
}

// casFailure distinguishes a genuine conflict (row exists, status differs)
// from a missing row, so callers get ErrNotFound rather than a misleading
// ConflictError when the id was simply wrong.
func (s *Store) casFailure(ctx context.Context, coll, id, field, expected string) error {
	var doc bson.M
	err := s.db.Collection(coll).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	if err != nil {
		return translateErr(err)
	}
	return &store.ConflictError{Field: field, Expected: expected, Actual: doc["status"]}
}

// Agents

type agentDoc struct {
	ID          string   `bson:"_id"`
	WorkspaceID string   `bson:"workspace_id"`
	Role        string   `bson:"role"`
	Seniority   string   `bson:"seniority"`
	Status      string   `bson:"status"`
	Skills      []string `bson:"skills,omitempty"`
	Model       string   `bson:"model"`
}

func toAgentDoc(a domain.Agent) agentDoc {
	return agentDoc{
		ID: a.ID, WorkspaceID: a.WorkspaceID, Role: a.Role, Seniority: string(a.Seniority),
		Status: string(a.Status), Skills: a.Skills, Model: a.LLMConfig.Model,
	}
}

func (d agentDoc) toDomain() domain.Agent {
	return domain.Agent{
		ID: d.ID, WorkspaceID: d.WorkspaceID, Role: d.Role, Seniority: domain.Seniority(d.Seniority),
		Status: domain.AgentStatus(d.Status), Skills: d.Skills, LLMConfig: domain.LLMConfig{Model: d.Model},
	}
}

func (s *Store) ListAgents(ctx context.Context, workspaceID string) ([]domain.Agent, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.db.Collection(s.colls.Agents).Find(ctx, bson.M{"workspace_id": workspaceID})
	if err != nil {
		return nil, translateErr(err)
	}
	var docs []agentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translateErr(err)
	}
	out := make([]domain.Agent, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (domain.Agent, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc agentDoc
	err := s.db.Collection(s.colls.Agents).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		return domain.Agent{}, translateErr(err)
	}
	return doc.toDomain(), nil
}

func (s *Store) UpdateAgentStatus(ctx context.Context, id string, newStatus domain.AgentStatus) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.db.Collection(s.colls.Agents).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": string(newStatus)}})
	if err != nil {
		return translateErr(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpsertAgent(ctx context.Context, a domain.Agent) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.db.Collection(s.colls.Agents).UpdateOne(ctx, bson.M{"_id": a.ID}, bson.M{"$set": toAgentDoc(a)}, options.UpdateOne().SetUpsert(true))
	return translateErr(err)
}

// Goals and requirements

type goalDoc struct {
	ID                     string     `bson:"_id"`
	WorkspaceID            string     `bson:"workspace_id"`
	MetricType             string     `bson:"metric_type"`
	TargetValue            float64    `bson:"target_value"`
	CurrentValue           float64    `bson:"current_value"`
	Unit                   string     `bson:"unit"`
	IsMinimum              bool       `bson:"is_minimum"`
	IsPercentage           bool       `bson:"is_percentage"`
	Priority               int        `bson:"priority"`
	Status                 string     `bson:"status"`
	LastValidationAt       *time.Time `bson:"last_validation_at,omitempty"`
	AssetRequirementsCount int        `bson:"asset_requirements_count"`
}

func toGoalDoc(g domain.Goal) goalDoc {
	return goalDoc{
		ID: g.ID, WorkspaceID: g.WorkspaceID, MetricType: g.MetricType, TargetValue: g.TargetValue,
		CurrentValue: g.CurrentValue, Unit: g.Unit, IsMinimum: g.IsMinimum, IsPercentage: g.IsPercentage,
		Priority: g.Priority, Status: string(g.Status), LastValidationAt: g.LastValidationAt,
		AssetRequirementsCount: g.AssetRequirementsCount,
	}
}

func (d goalDoc) toDomain() domain.Goal {
	return domain.Goal{
		ID: d.ID, WorkspaceID: d.WorkspaceID, MetricType: d.MetricType, TargetValue: d.TargetValue,
		CurrentValue: d.CurrentValue, Unit: d.Unit, IsMinimum: d.IsMinimum, IsPercentage: d.IsPercentage,
		Priority: d.Priority, Status: domain.GoalStatus(d.Status), LastValidationAt: d.LastValidationAt,
		AssetRequirementsCount: d.AssetRequirementsCount,
	}
}

func (s *Store) ListWorkspaceGoals(ctx context.Context, workspaceID string, filter store.GoalFilter) ([]domain.Goal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	q := bson.M{"workspace_id": workspaceID}
	if filter.Status != nil {
		q["status"] = string(*filter.Status)
	}
	cur, err := s.db.Collection(s.colls.Goals).Find(ctx, q)
	if err != nil {
		return nil, translateErr(err)
	}
	var docs []goalDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translateErr(err)
	}
	out := make([]domain.Goal, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (s *Store) ListAllGoals(ctx context.Context) ([]domain.Goal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.db.Collection(s.colls.Goals).Find(ctx, bson.M{})
	if err != nil {
		return nil, translateErr(err)
	}
	var docs []goalDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translateErr(err)
	}
	out := make([]domain.Goal, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (s *Store) DeleteGoalsForWorkspace(ctx context.Context, workspaceID string) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.db.Collection(s.colls.Goals).DeleteMany(ctx, bson.M{"workspace_id": workspaceID})
	if err != nil {
		return 0, translateErr(err)
	}
	return int(res.DeletedCount), nil
}

func (s *Store) GetGoal(ctx context.Context, id string) (domain.Goal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc goalDoc
	err := s.db.Collection(s.colls.Goals).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		return domain.Goal{}, translateErr(err)
	}
	return doc.toDomain(), nil
}

// UpdateGoal performs a read-modify-write; callers needing CAS on
// CurrentValue specifically should use UpdateGoalCurrentValue instead. Races
// on other fields are tolerated, matching spec §4.1's "multi-row updates need
// not be transactional", since no other caller is expected to concurrently
// mutate the same goal's non-value fields.
func (s *Store) UpdateGoal(ctx context.Context, id string, mutate func(g *domain.Goal) error) error {
	g, err := s.GetGoal(ctx, id)
	if err != nil {
		return err
	}
	if err := mutate(&g); err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err = s.db.Collection(s.colls.Goals).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": toGoalDoc(g)})
	return translateErr(err)
}

func (s *Store) UpdateGoalCurrentValue(ctx context.Context, id string, newValue, expected float64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"_id": id, "current_value": expected}
	res, err := s.db.Collection(s.colls.Goals).UpdateOne(ctx, filter, bson.M{"$set": bson.M{"current_value": newValue}})
	if err != nil {
		return translateErr(err)
	}
	if res.MatchedCount == 0 {
		return s.casFailure(ctx, s.colls.Goals, id, "goal.current_value", "")
	}
	return nil
}

func (s *Store) UpsertGoal(ctx context.Context, g domain.Goal) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.db.Collection(s.colls.Goals).UpdateOne(ctx, bson.M{"_id": g.ID}, bson.M{"$set": toGoalDoc(g)}, options.UpdateOne().SetUpsert(true))
	return translateErr(err)
}

type requirementDoc struct {
	ID                 string         `bson:"_id"`
	GoalID             string         `bson:"goal_id"`
	AssetName          string         `bson:"asset_name"`
	AssetType          string         `bson:"asset_type"`
	AssetFormat        string         `bson:"asset_format"`
	AcceptanceSchema   string         `bson:"acceptance_schema"`
	AcceptanceFields   map[string]any `bson:"acceptance_fields,omitempty"`
	Priority           int            `bson:"priority"`
	BusinessValueScore float64        `bson:"business_value_score"`
	Status             string         `bson:"status"`
}

func toRequirementDoc(r domain.AssetRequirement) requirementDoc {
	return requirementDoc{
		ID: r.ID, GoalID: r.GoalID, AssetName: r.AssetName, AssetType: r.AssetType, AssetFormat: r.AssetFormat,
		AcceptanceSchema: r.AcceptanceCriteria.SchemaName, AcceptanceFields: r.AcceptanceCriteria.Fields,
		Priority: r.Priority, BusinessValueScore: r.BusinessValueScore, Status: string(r.Status),
	}
}

func (d requirementDoc) toDomain() domain.AssetRequirement {
	return domain.AssetRequirement{
		ID: d.ID, GoalID: d.GoalID, AssetName: d.AssetName, AssetType: d.AssetType, AssetFormat: d.AssetFormat,
		AcceptanceCriteria: domain.AcceptanceCriteria{SchemaName: d.AcceptanceSchema, Fields: d.AcceptanceFields},
		Priority:           d.Priority, BusinessValueScore: d.BusinessValueScore, Status: domain.RequirementStatus(d.Status),
	}
}

func (s *Store) GetAssetRequirements(ctx context.Context, goalID string) ([]domain.AssetRequirement, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.db.Collection(s.colls.Requirements).Find(ctx, bson.M{"goal_id": goalID})
	if err != nil {
		return nil, translateErr(err)
	}
	var docs []requirementDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translateErr(err)
	}
	out := make([]domain.AssetRequirement, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (s *Store) UpsertAssetRequirement(ctx context.Context, r domain.AssetRequirement) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.db.Collection(s.colls.Requirements).UpdateOne(ctx, bson.M{"_id": r.ID}, bson.M{"$set": toRequirementDoc(r)}, options.UpdateOne().SetUpsert(true))
	return translateErr(err)
}

// Tasks

type taskDoc struct {
	ID                   string         `bson:"_id"`
	WorkspaceID          string         `bson:"workspace_id"`
	GoalID               string         `bson:"goal_id,omitempty"`
	AssetRequirementID   string         `bson:"asset_requirement_id,omitempty"`
	AgentID              string         `bson:"agent_id,omitempty"`
	AssignedRole         string         `bson:"assigned_role,omitempty"`
	Name                 string         `bson:"name"`
	Description          string         `bson:"description"`
	Status               string         `bson:"status"`
	Priority             string         `bson:"priority"`
	IsCorrective         bool           `bson:"is_corrective"`
	NumericalTarget      *float64       `bson:"numerical_target,omitempty"`
	ContributionExpected *float64       `bson:"contribution_expected,omitempty"`
	RecoveryCount        int            `bson:"recovery_count"`
	CreatedAt            time.Time      `bson:"created_at"`
	UpdatedAt            time.Time      `bson:"updated_at"`
	Deadline             *time.Time     `bson:"deadline,omitempty"`
	Dependencies         []string       `bson:"dependencies,omitempty"`
	ContextData          map[string]any `bson:"context_data,omitempty"`
	Result               *taskResultDoc `bson:"result,omitempty"`
	AIGenerated          bool           `bson:"ai_generated"`
	IdempotencyKey       string         `bson:"idempotency_key,omitempty"`
}

type taskResultDoc struct {
	Output          string         `bson:"output"`
	StatusDetail    string         `bson:"status_detail"`
	ExecutionTimeMS int64          `bson:"execution_time_ms"`
	ModelUsed       string         `bson:"model_used"`
	InputTokens     int            `bson:"input_tokens"`
	OutputTokens    int            `bson:"output_tokens"`
	TokensEstimated bool           `bson:"tokens_estimated"`
	CostEstimated   float64        `bson:"cost_estimated"`
	AgentMetadata   map[string]any `bson:"agent_metadata,omitempty"`
	LastError       string         `bson:"last_error,omitempty"`
	StructuredPayload map[string]any `bson:"structured_payload,omitempty"`
}

func toTaskResultDoc(r *domain.TaskResult) *taskResultDoc {
	if r == nil {
		return nil
	}
	return &taskResultDoc{
		Output: r.Output, StatusDetail: r.StatusDetail, ExecutionTimeMS: r.ExecutionTime.Milliseconds(),
		ModelUsed: r.ModelUsed, InputTokens: r.InputTokens, OutputTokens: r.OutputTokens,
		TokensEstimated: r.TokensEstimated, CostEstimated: r.CostEstimated,
		AgentMetadata: r.AgentMetadata, LastError: r.LastError, StructuredPayload: r.StructuredPayload,
	}
}

func (d *taskResultDoc) toDomain() *domain.TaskResult {
	if d == nil {
		return nil
	}
	return &domain.TaskResult{
		Output: d.Output, StatusDetail: d.StatusDetail, ExecutionTime: time.Duration(d.ExecutionTimeMS) * time.Millisecond,
		ModelUsed: d.ModelUsed, InputTokens: d.InputTokens, OutputTokens: d.OutputTokens,
		TokensEstimated: d.TokensEstimated, CostEstimated: d.CostEstimated,
		AgentMetadata: d.AgentMetadata, LastError: d.LastError, StructuredPayload: d.StructuredPayload,
	}
}

func toTaskDoc(t domain.Task) taskDoc {
	return taskDoc{
		ID: t.ID, WorkspaceID: t.WorkspaceID, GoalID: t.GoalID, AssetRequirementID: t.AssetRequirementID,
		AgentID: t.AgentID, AssignedRole: t.AssignedRole, Name: t.Name, Description: t.Description,
		Status: string(t.Status), Priority: string(t.Priority), IsCorrective: t.IsCorrective,
		NumericalTarget: t.NumericalTarget, ContributionExpected: t.ContributionExpected,
		RecoveryCount: t.RecoveryCount, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt, Deadline: t.Deadline,
		Dependencies: t.Dependencies, ContextData: t.ContextData, Result: toTaskResultDoc(t.Result),
		AIGenerated: t.AIGenerated, IdempotencyKey: t.IdempotencyKey,
	}
}

func (d taskDoc) toDomain() domain.Task {
	return domain.Task{
		ID: d.ID, WorkspaceID: d.WorkspaceID, GoalID: d.GoalID, AssetRequirementID: d.AssetRequirementID,
		AgentID: d.AgentID, AssignedRole: d.AssignedRole, Name: d.Name, Description: d.Description,
		Status: domain.TaskStatus(d.Status), Priority: domain.TaskPriority(d.Priority), IsCorrective: d.IsCorrective,
		NumericalTarget: d.NumericalTarget, ContributionExpected: d.ContributionExpected,
		RecoveryCount: d.RecoveryCount, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt, Deadline: d.Deadline,
		Dependencies: d.Dependencies, ContextData: d.ContextData, Result: d.Result.toDomain(),
		AIGenerated: d.AIGenerated, IdempotencyKey: d.IdempotencyKey,
	}
}

func (s *Store) ListTasks(ctx context.Context, workspaceID string, filter store.TaskFilter) ([]domain.Task, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	q := bson.M{"workspace_id": workspaceID}
	if filter.Status != nil {
		q["status"] = string(*filter.Status)
	}
	if filter.GoalID != "" {
		q["goal_id"] = filter.GoalID
	}
	if filter.AgentID != "" {
		q["agent_id"] = filter.AgentID
	}
	cur, err := s.db.Collection(s.colls.Tasks).Find(ctx, q)
	if err != nil {
		return nil, translateErr(err)
	}
	var docs []taskDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translateErr(err)
	}
	out := make([]domain.Task, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (domain.Task, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc taskDoc
	err := s.db.Collection(s.colls.Tasks).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		return domain.Task{}, translateErr(err)
	}
	return doc.toDomain(), nil
}

func (s *Store) CreateTask(ctx context.Context, t domain.Task, idempotencyKey string) (domain.Task, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if idempotencyKey != "" {
		var existing taskDoc
		err := s.db.Collection(s.colls.Tasks).FindOne(ctx, bson.M{"idempotency_key": idempotencyKey}).Decode(&existing)
		if err == nil {
			return existing.toDomain(), nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Task{}, translateErr(err)
		}
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = t.CreatedAt
	t.IdempotencyKey = idempotencyKey
	if _, err := s.db.Collection(s.colls.Tasks).InsertOne(ctx, toTaskDoc(t)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			var existing taskDoc
			if ferr := s.db.Collection(s.colls.Tasks).FindOne(ctx, bson.M{"idempotency_key": idempotencyKey}).Decode(&existing); ferr == nil {
				return existing.toDomain(), nil
			}
		}
		return domain.Task{}, translateErr(err)
	}
	return t, nil
}

func (s *Store) UpdateTaskStatus(ctx context.Context, id string, newStatus domain.TaskStatus, result *domain.TaskResult, expected domain.TaskStatus) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	set := bson.M{"status": string(newStatus), "updated_at": time.Now().UTC()}
	if result != nil {
		set["result"] = toTaskResultDoc(result)
	}
	filter := bson.M{"_id": id, "status": string(expected)}
	res, err := s.db.Collection(s.colls.Tasks).UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return translateErr(err)
	}
	if res.MatchedCount == 0 {
		return s.casFailure(ctx, s.colls.Tasks, id, "task.status", string(expected))
	}
	return nil
}

func (s *Store) UpdateTask(ctx context.Context, id string, mutate func(t *domain.Task) error) error {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if err := mutate(&t); err != nil {
		return err
	}
	t.UpdatedAt = time.Now().UTC()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err = s.db.Collection(s.colls.Tasks).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": toTaskDoc(t)})
	return translateErr(err)
}

// Artifacts and deliverables

type artifactDoc struct {
	ID            string         `bson:"_id"`
	WorkspaceID   string         `bson:"workspace_id"`
	RequirementID string         `bson:"requirement_id"`
	TaskID        string         `bson:"task_id"`
	Content       map[string]any `bson:"content,omitempty"`
	QualityScore  float64        `bson:"quality_score"`
	Status        string         `bson:"status"`
	CreatedAt     time.Time      `bson:"created_at"`
}

func toArtifactDoc(a domain.Artifact) artifactDoc {
	return artifactDoc{
		ID: a.ID, WorkspaceID: a.WorkspaceID, RequirementID: a.RequirementID, TaskID: a.TaskID,
		Content: a.Content, QualityScore: a.QualityScore, Status: string(a.Status), CreatedAt: a.CreatedAt,
	}
}

func (d artifactDoc) toDomain() domain.Artifact {
	return domain.Artifact{
		ID: d.ID, WorkspaceID: d.WorkspaceID, RequirementID: d.RequirementID, TaskID: d.TaskID,
		Content: d.Content, QualityScore: d.QualityScore, Status: domain.ArtifactStatus(d.Status), CreatedAt: d.CreatedAt,
	}
}

func (s *Store) InsertArtifact(ctx context.Context, a domain.Artifact) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Collection(s.colls.Artifacts).InsertOne(ctx, toArtifactDoc(a))
	return translateErr(err)
}

func (s *Store) ListArtifacts(ctx context.Context, taskID string) ([]domain.Artifact, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.db.Collection(s.colls.Artifacts).Find(ctx, bson.M{"task_id": taskID})
	if err != nil {
		return nil, translateErr(err)
	}
	var docs []artifactDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translateErr(err)
	}
	out := make([]domain.Artifact, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

type deliverableDoc struct {
	ID           string          `bson:"_id"`
	WorkspaceID  string          `bson:"workspace_id"`
	GoalID       string          `bson:"goal_id"`
	Title        string          `bson:"title"`
	Summary      string          `bson:"summary"`
	Sections     []sectionDoc    `bson:"sections,omitempty"`
	QualityScore float64         `bson:"quality_score"`
	CreatedAt    time.Time       `bson:"created_at"`
}

type sectionDoc struct {
	Title       string   `bson:"title"`
	Content     string   `bson:"content"`
	ArtifactIDs []string `bson:"artifact_ids,omitempty"`
}

func toDeliverableDoc(d domain.Deliverable) deliverableDoc {
	sections := make([]sectionDoc, len(d.Sections))
	for i, sec := range d.Sections {
		sections[i] = sectionDoc{Title: sec.Title, Content: sec.Content, ArtifactIDs: sec.ArtifactIDs}
	}
	return deliverableDoc{
		ID: d.ID, WorkspaceID: d.WorkspaceID, GoalID: d.GoalID, Title: d.Title, Summary: d.Summary,
		Sections: sections, QualityScore: d.QualityScore, CreatedAt: d.CreatedAt,
	}
}

func (d deliverableDoc) toDomain() domain.Deliverable {
	sections := make([]domain.DeliverableSection, len(d.Sections))
	for i, sec := range d.Sections {
		sections[i] = domain.DeliverableSection{Title: sec.Title, Content: sec.Content, ArtifactIDs: sec.ArtifactIDs}
	}
	return domain.Deliverable{
		ID: d.ID, WorkspaceID: d.WorkspaceID, GoalID: d.GoalID, Title: d.Title, Summary: d.Summary,
		Sections: sections, QualityScore: d.QualityScore, CreatedAt: d.CreatedAt,
	}
}

func (s *Store) InsertDeliverable(ctx context.Context, d domain.Deliverable) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Collection(s.colls.Deliverables).InsertOne(ctx, toDeliverableDoc(d))
	return translateErr(err)
}

func (s *Store) LatestDeliverable(ctx context.Context, goalID string) (domain.Deliverable, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var doc deliverableDoc
	err := s.db.Collection(s.colls.Deliverables).FindOne(ctx, bson.M{"goal_id": goalID}, opts).Decode(&doc)
	if err != nil {
		return domain.Deliverable{}, translateErr(err)
	}
	return doc.toDomain(), nil
}

// Thinking processes

type thinkingStepDoc struct {
	ID         string         `bson:"id"`
	Type       string         `bson:"type"`
	Content    string         `bson:"content"`
	Confidence float64        `bson:"confidence"`
	Timestamp  time.Time      `bson:"timestamp"`
	Metadata   map[string]any `bson:"metadata,omitempty"`
}

type thinkingProcessDoc struct {
	ID                string            `bson:"_id"`
	WorkspaceID       string            `bson:"workspace_id"`
	Context           string            `bson:"context"`
	Type              string            `bson:"type"`
	Steps             []thinkingStepDoc `bson:"steps,omitempty"`
	FinalConclusion   string            `bson:"final_conclusion,omitempty"`
	OverallConfidence float64           `bson:"overall_confidence"`
	StartedAt         time.Time         `bson:"started_at"`
	CompletedAt       *time.Time        `bson:"completed_at,omitempty"`
	Title             string            `bson:"title,omitempty"`
	SummaryMetadata   map[string]any    `bson:"summary_metadata,omitempty"`
}

func toThinkingProcessDoc(p domain.ThinkingProcess) thinkingProcessDoc {
	steps := make([]thinkingStepDoc, len(p.Steps))
	for i, st := range p.Steps {
		steps[i] = thinkingStepDoc{
			ID: st.ID, Type: string(st.Type), Content: st.Content, Confidence: st.Confidence,
			Timestamp: st.Timestamp, Metadata: st.Metadata,
		}
	}
	return thinkingProcessDoc{
		ID: p.ProcessID, WorkspaceID: p.WorkspaceID, Context: p.Context, Type: p.Type, Steps: steps,
		FinalConclusion: p.FinalConclusion, OverallConfidence: p.OverallConfidence, StartedAt: p.StartedAt,
		CompletedAt: p.CompletedAt, Title: p.Title, SummaryMetadata: p.SummaryMetadata,
	}
}

func (d thinkingProcessDoc) toDomain() domain.ThinkingProcess {
	steps := make([]domain.ThinkingStep, len(d.Steps))
	for i, st := range d.Steps {
		steps[i] = domain.ThinkingStep{
			ID: st.ID, Type: domain.ThinkingStepType(st.Type), Content: st.Content, Confidence: st.Confidence,
			Timestamp: st.Timestamp, Metadata: st.Metadata,
		}
	}
	return domain.ThinkingProcess{
		ProcessID: d.ID, WorkspaceID: d.WorkspaceID, Context: d.Context, Type: d.Type, Steps: steps,
		FinalConclusion: d.FinalConclusion, OverallConfidence: d.OverallConfidence, StartedAt: d.StartedAt,
		CompletedAt: d.CompletedAt, Title: d.Title, SummaryMetadata: d.SummaryMetadata,
	}
}

func (s *Store) SaveThinkingProcess(ctx context.Context, p domain.ThinkingProcess) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.db.Collection(s.colls.Thinking).UpdateOne(ctx, bson.M{"_id": p.ProcessID}, bson.M{"$set": toThinkingProcessDoc(p)}, options.UpdateOne().SetUpsert(true))
	return translateErr(err)
}

func (s *Store) GetThinkingProcess(ctx context.Context, processID string) (domain.ThinkingProcess, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc thinkingProcessDoc
	err := s.db.Collection(s.colls.Thinking).FindOne(ctx, bson.M{"_id": processID}).Decode(&doc)
	if err != nil {
		return domain.ThinkingProcess{}, translateErr(err)
	}
	return doc.toDomain(), nil
}

func (s *Store) ListThinkingProcesses(ctx context.Context, workspaceID string, limit int) ([]domain.ThinkingProcess, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.db.Collection(s.colls.Thinking).Find(ctx, bson.M{"workspace_id": workspaceID}, opts)
	if err != nil {
		return nil, translateErr(err)
	}
	var docs []thinkingProcessDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translateErr(err)
	}
	out := make([]domain.ThinkingProcess, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

// Recovery and insights

type recoveryDoc struct {
	TaskID        string    `bson:"task_id"`
	WorkspaceID   string    `bson:"workspace_id"`
	AttemptNumber int       `bson:"attempt_number"`
	Strategy      string    `bson:"strategy"`
	Confidence    float64   `bson:"confidence"`
	DelaySeconds  float64   `bson:"delay_seconds"`
	Reasoning     string    `bson:"reasoning"`
	Success       *bool     `bson:"success,omitempty"`
	CreatedAt     time.Time `bson:"created_at"`
}

func toRecoveryDoc(r domain.RecoveryAttempt) recoveryDoc {
	return recoveryDoc{
		TaskID: r.TaskID, WorkspaceID: r.WorkspaceID, AttemptNumber: r.AttemptNumber, Strategy: r.Strategy,
		Confidence: r.Confidence, DelaySeconds: r.DelaySeconds, Reasoning: r.Reasoning, Success: r.Success,
		CreatedAt: r.CreatedAt,
	}
}

func (d recoveryDoc) toDomain() domain.RecoveryAttempt {
	return domain.RecoveryAttempt{
		TaskID: d.TaskID, WorkspaceID: d.WorkspaceID, AttemptNumber: d.AttemptNumber, Strategy: d.Strategy,
		Confidence: d.Confidence, DelaySeconds: d.DelaySeconds, Reasoning: d.Reasoning, Success: d.Success,
		CreatedAt: d.CreatedAt,
	}
}

func (s *Store) InsertRecoveryAttempt(ctx context.Context, r domain.RecoveryAttempt) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Collection(s.colls.Recoveries).InsertOne(ctx, toRecoveryDoc(r))
	return translateErr(err)
}

func (s *Store) ListRecoveryAttempts(ctx context.Context, taskID string) ([]domain.RecoveryAttempt, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := s.db.Collection(s.colls.Recoveries).Find(ctx, bson.M{"task_id": taskID}, opts)
	if err != nil {
		return nil, translateErr(err)
	}
	var docs []recoveryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translateErr(err)
	}
	out := make([]domain.RecoveryAttempt, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

type insightDoc struct {
	ID          string    `bson:"_id"`
	WorkspaceID string    `bson:"workspace_id"`
	Type        string    `bson:"type"`
	Content     string    `bson:"content"`
	Tags        []string  `bson:"tags,omitempty"`
	Confidence  float64   `bson:"confidence"`
	CreatedAt   time.Time `bson:"created_at"`
}

func toInsightDoc(i domain.Insight) insightDoc {
	return insightDoc{
		ID: i.ID, WorkspaceID: i.WorkspaceID, Type: string(i.Type), Content: i.Content,
		Tags: i.Tags, Confidence: i.Confidence, CreatedAt: i.CreatedAt,
	}
}

func (d insightDoc) toDomain() domain.Insight {
	return domain.Insight{
		ID: d.ID, WorkspaceID: d.WorkspaceID, Type: domain.InsightType(d.Type), Content: d.Content,
		Tags: d.Tags, Confidence: d.Confidence, CreatedAt: d.CreatedAt,
	}
}

func (s *Store) InsertInsight(ctx context.Context, i domain.Insight) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Collection(s.colls.Insights).InsertOne(ctx, toInsightDoc(i))
	return translateErr(err)
}

func (s *Store) GetInsights(ctx context.Context, workspaceID string, filter store.InsightFilter) ([]domain.Insight, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	q := bson.M{"workspace_id": workspaceID}
	if len(filter.Tags) > 0 {
		q["tags"] = bson.M{"$in": filter.Tags}
	}
	opts := options.Find()
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	cur, err := s.db.Collection(s.colls.Insights).Find(ctx, q, opts)
	if err != nil {
		return nil, translateErr(err)
	}
	var docs []insightDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translateErr(err)
	}
	out := make([]domain.Insight, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

// LogEvent

type eventDoc struct {
	WorkspaceID string         `bson:"workspace_id"`
	EventType   string         `bson:"event_type"`
	Payload     map[string]any `bson:"payload,omitempty"`
	OccurredAt  string         `bson:"occurred_at"`
}

func (s *Store) LogEvent(ctx context.Context, e store.EventRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	doc := eventDoc{WorkspaceID: e.WorkspaceID, EventType: e.EventType, Payload: e.Payload, OccurredAt: e.OccurredAt}
	_, err := s.db.Collection(s.colls.Events).InsertOne(ctx, doc)
	return translateErr(err)
}
