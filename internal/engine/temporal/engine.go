// Package temporal implements engine.Engine backed by Temporal, the durable
// execution option named in SPEC_FULL.md's domain-stack wiring table
// (go.temporal.io/sdk / go.temporal.io/api) for workspaces that need
// workflow state to survive process restarts. Adapted from the teacher's
// runtime/agent/engine/temporal package: trimmed of OTEL instrumentation,
// child-workflow, and hook/hook-activity machinery that has no equivalent
// in this domain's simpler WorkflowContext, keeping the worker-per-queue
// lifecycle and activity-options-by-name resolution.
package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/engine"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
)

// Options configures the Temporal engine adapter. Either Client or
// ClientOptions must be provided, along with a default task queue.
type Options struct {
	// Client is a pre-configured Temporal client. If nil, the adapter
	// creates one lazily from ClientOptions and closes it in Close.
	Client client.Client
	// ClientOptions describes how to construct the client when Client is
	// nil. Required in that case.
	ClientOptions *client.Options
	// TaskQueue is the default queue used when a workflow or activity
	// definition omits one. Required.
	TaskQueue string
	// WorkerOptions is forwarded to worker.New for every queue the engine
	// creates a worker for.
	WorkerOptions worker.Options
	// Logger emits worker lifecycle logs. Defaults to a no-op logger.
	Logger telemetry.Logger
}

// Engine implements engine.Engine using Temporal as the durable execution
// backend. One worker is created per unique task queue, started lazily on
// the first StartWorkflow call.
type Engine struct {
	client      client.Client
	closeClient bool

	defaultQueue string
	workerOpts   worker.Options
	logger       telemetry.Logger

	mu              sync.Mutex
	workers         map[string]*workerBundle
	started         bool
	workflows       map[string]engine.WorkflowDefinition
	activityOptions map[string]engine.ActivityOptions

	contexts sync.Map // runID -> engine.WorkflowContext, for activity lookups
}

// New constructs a Temporal engine adapter.
func New(opts Options) (*Engine, error) {
	if opts.TaskQueue == "" {
		return nil, fmt.Errorf("temporal engine: a default task queue is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}

	cli := opts.Client
	closeClient := false
	if cli == nil {
		if opts.ClientOptions == nil {
			return nil, fmt.Errorf("temporal engine: client options are required when Client is nil")
		}
		var err error
		cli, err = client.NewLazyClient(*opts.ClientOptions)
		if err != nil {
			return nil, fmt.Errorf("temporal engine: create client: %w", err)
		}
		closeClient = true
	}

	return &Engine{
		client:          cli,
		closeClient:     closeClient,
		defaultQueue:    opts.TaskQueue,
		workerOpts:      opts.WorkerOptions,
		logger:          logger,
		workers:         make(map[string]*workerBundle),
		workflows:       make(map[string]engine.WorkflowDefinition),
		activityOptions: make(map[string]engine.ActivityOptions),
	}, nil
}

// RegisterWorkflow registers def with the worker for its task queue (or the
// engine's default queue, if unset).
func (e *Engine) RegisterWorkflow(_ context.Context, def engine.WorkflowDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return fmt.Errorf("temporal engine: invalid workflow definition")
	}
	bundle, err := e.workerForQueue(def.TaskQueue)
	if err != nil {
		return err
	}

	bundle.registerWorkflow(def.Name, func(tctx workflow.Context, input any) (any, error) {
		wfCtx := newWorkflowContext(e, tctx)
		defer e.contexts.Delete(wfCtx.RunID())
		return def.Handler(wfCtx, input)
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.workflows[def.Name]; dup {
		return fmt.Errorf("temporal engine: workflow %q already registered", def.Name)
	}
	e.workflows[def.Name] = def
	return nil
}

// RegisterActivity registers def with the worker for its queue (or the
// engine's default queue, if unset).
func (e *Engine) RegisterActivity(_ context.Context, def engine.ActivityDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return fmt.Errorf("temporal engine: invalid activity definition")
	}
	bundle, err := e.workerForQueue(def.Options.Queue)
	if err != nil {
		return err
	}
	bundle.registerActivity(def.Name, def.Handler)

	e.mu.Lock()
	e.activityOptions[def.Name] = def.Options
	e.mu.Unlock()
	return nil
}

// StartWorkflow starts a Temporal workflow execution for the registered
// definition named req.Workflow, starting its worker on first use.
func (e *Engine) StartWorkflow(ctx context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	def, err := e.workflowDefinition(req.Workflow)
	if err != nil {
		return nil, err
	}
	e.ensureWorkersStarted()

	queue := req.TaskQueue
	if queue == "" {
		queue = def.TaskQueue
	}
	if queue == "" {
		queue = e.defaultQueue
	}

	startOpts := client.StartWorkflowOptions{ID: req.ID, TaskQueue: queue}
	if rp := convertRetryPolicy(req.RetryPolicy); rp != nil {
		startOpts.RetryPolicy = rp
	}

	run, err := e.client.ExecuteWorkflow(ctx, startOpts, def.Name, req.Input)
	if err != nil {
		return nil, fmt.Errorf("temporal engine: start workflow %q: %w", req.Workflow, err)
	}
	return &workflowHandle{run: run, client: e.client}, nil
}

// QueryRunStatus describes a workflow execution's lifecycle by querying
// Temporal's execution history directly.
func (e *Engine) QueryRunStatus(ctx context.Context, runID string) (engine.RunStatus, error) {
	if runID == "" {
		return "", fmt.Errorf("temporal engine: run id is required")
	}
	desc, err := e.client.DescribeWorkflowExecution(ctx, runID, "")
	if err != nil {
		return "", engine.ErrWorkflowNotFound
	}
	switch desc.GetWorkflowExecutionInfo().GetStatus().String() {
	case "Running":
		return engine.RunStatusRunning, nil
	case "Completed":
		return engine.RunStatusCompleted, nil
	case "Canceled", "Terminated":
		return engine.RunStatusCanceled, nil
	default:
		return engine.RunStatusFailed, nil
	}
}

// Close shuts down the Temporal client if the engine created it.
func (e *Engine) Close() error {
	if e.closeClient && e.client != nil {
		e.client.Close()
	}
	return nil
}

// Worker returns a controller for manually starting/stopping all workers
// the engine has created.
func (e *Engine) Worker() *WorkerController { return &WorkerController{engine: e} }

func (e *Engine) workerForQueue(queue string) (*workerBundle, error) {
	if queue == "" {
		queue = e.defaultQueue
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if bundle, ok := e.workers[queue]; ok {
		return bundle, nil
	}
	bundle := &workerBundle{queue: queue, worker: worker.New(e.client, queue, e.workerOpts), logger: e.logger}
	e.workers[queue] = bundle
	if e.started {
		bundle.start()
	}
	return bundle, nil
}

func (e *Engine) workflowDefinition(name string) (engine.WorkflowDefinition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	def, ok := e.workflows[name]
	if !ok {
		return engine.WorkflowDefinition{}, fmt.Errorf("temporal engine: workflow %q is not registered", name)
	}
	return def, nil
}

func (e *Engine) ensureWorkersStarted() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	bundles := make([]*workerBundle, 0, len(e.workers))
	for _, b := range e.workers {
		bundles = append(bundles, b)
	}
	e.mu.Unlock()
	for _, b := range bundles {
		b.start()
	}
}

func (e *Engine) activityDefaultsFor(name string) engine.ActivityOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activityOptions[name]
}

// WorkerController manages start/stop of every worker an Engine has
// created.
type WorkerController struct{ engine *Engine }

// Start launches all registered workers.
func (c *WorkerController) Start() { c.engine.ensureWorkersStarted() }

// Stop gracefully stops every worker.
func (c *WorkerController) Stop() {
	c.engine.mu.Lock()
	bundles := make([]*workerBundle, 0, len(c.engine.workers))
	for _, b := range c.engine.workers {
		bundles = append(bundles, b)
	}
	c.engine.mu.Unlock()
	for _, b := range bundles {
		b.stop()
	}
}

type workerBundle struct {
	queue     string
	worker    worker.Worker
	logger    telemetry.Logger
	startOnce sync.Once
}

func (b *workerBundle) start() {
	b.startOnce.Do(func() {
		go func() {
			if err := b.worker.Run(worker.InterruptCh()); err != nil {
				b.logger.Error(context.Background(), "temporal worker exited", "queue", b.queue, "error", err.Error())
			}
		}()
	})
}

func (b *workerBundle) stop() { b.worker.Stop() }

func (b *workerBundle) registerWorkflow(name string, fn any) {
	b.worker.RegisterWorkflowWithOptions(fn, workflow.RegisterOptions{Name: name})
}

func (b *workerBundle) registerActivity(name string, handler engine.ActivityFunc) {
	fn := func(ctx context.Context, input any) (any, error) { return handler(ctx, input) }
	b.worker.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func convertRetryPolicy(r engine.RetryPolicy) *temporalsdk.RetryPolicy {
	if r.MaxAttempts == 0 && r.InitialInterval == 0 && r.BackoffCoefficient == 0 {
		return nil
	}
	policy := &temporalsdk.RetryPolicy{}
	if r.MaxAttempts > 0 {
		//nolint:gosec // MaxAttempts is bounded well within int32 range by callers.
		policy.MaximumAttempts = int32(r.MaxAttempts)
	}
	if r.InitialInterval > 0 {
		policy.InitialInterval = r.InitialInterval
	}
	if r.BackoffCoefficient > 0 {
		policy.BackoffCoefficient = r.BackoffCoefficient
	}
	return policy
}

type workflowHandle struct {
	run    client.WorkflowRun
	client client.Client
}

func (h *workflowHandle) Wait(ctx context.Context, result any) error { return h.run.Get(ctx, result) }

func (h *workflowHandle) Signal(ctx context.Context, name string, payload any) error {
	return h.client.SignalWorkflow(ctx, h.run.GetID(), h.run.GetRunID(), name, payload)
}

func (h *workflowHandle) Cancel(ctx context.Context) error {
	return h.client.CancelWorkflow(ctx, h.run.GetID(), h.run.GetRunID())
}

// workflowContext adapts a Temporal workflow.Context to engine.WorkflowContext.
type workflowContext struct {
	eng        *Engine
	ctx        workflow.Context
	workflowID string
	runID      string
}

func newWorkflowContext(e *Engine, ctx workflow.Context) *workflowContext {
	info := workflow.GetInfo(ctx)
	wc := &workflowContext{eng: e, ctx: ctx, workflowID: info.WorkflowExecution.ID, runID: info.WorkflowExecution.RunID}
	e.contexts.Store(wc.runID, wc)
	return wc
}

func (w *workflowContext) Context() context.Context   { return context.Background() }
func (w *workflowContext) WorkflowID() string         { return w.workflowID }
func (w *workflowContext) RunID() string              { return w.runID }
func (w *workflowContext) Logger() telemetry.Logger   { return telemetry.NewNoopLogger() }
func (w *workflowContext) Metrics() telemetry.Metrics { return telemetry.NewNoopMetrics() }
func (w *workflowContext) Tracer() telemetry.Tracer   { return telemetry.NewNoopTracer() }
func (w *workflowContext) Now() time.Time             { return workflow.Now(w.ctx) }

func (w *workflowContext) ExecuteActivity(_ context.Context, req engine.ActivityRequest, result any) error {
	fut, err := w.ExecuteActivityAsync(context.Background(), req)
	if err != nil {
		return err
	}
	return fut.Get(context.Background(), result)
}

func (w *workflowContext) ExecuteActivityAsync(_ context.Context, req engine.ActivityRequest) (engine.Future, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("temporal engine: activity name is required")
	}
	actx := workflow.WithActivityOptions(w.ctx, w.activityOptionsFor(req.Name, req))
	fut := workflow.ExecuteActivity(actx, req.Name, req.Input)
	return &future{future: fut, ctx: actx}, nil
}

func (w *workflowContext) SignalChannel(name string) engine.SignalChannel {
	return &signalChannel{ctx: w.ctx, ch: workflow.GetSignalChannel(w.ctx, name)}
}

func (w *workflowContext) activityOptionsFor(name string, req engine.ActivityRequest) workflow.ActivityOptions {
	defaults := w.eng.activityDefaultsFor(name)

	queue := req.Queue
	if queue == "" {
		queue = defaults.Queue
	}
	if queue == "" {
		queue = w.eng.defaultQueue
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = defaults.Timeout
	}
	if timeout == 0 {
		timeout = time.Minute
	}

	retry := defaults.RetryPolicy
	if req.RetryPolicy.MaxAttempts != 0 || req.RetryPolicy.InitialInterval != 0 || req.RetryPolicy.BackoffCoefficient != 0 {
		retry = req.RetryPolicy
	}

	return workflow.ActivityOptions{
		ScheduleToStartTimeout: timeout,
		StartToCloseTimeout:    timeout,
		TaskQueue:              queue,
		RetryPolicy:            convertRetryPolicy(retry),
	}
}

type future struct {
	future workflow.Future
	ctx    workflow.Context
}

func (f *future) Get(_ context.Context, result any) error {
	if err := f.future.Get(f.ctx, result); err != nil {
		return normalizeError(err)
	}
	return nil
}

func (f *future) IsReady() bool { return f.future.IsReady() }

type signalChannel struct {
	ctx workflow.Context
	ch  workflow.ReceiveChannel
}

func (s *signalChannel) Receive(ctx context.Context, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.ch.Receive(s.ctx, dest)
	return nil
}

func (s *signalChannel) ReceiveAsync(dest any) bool {
	return s.ch.ReceiveAsync(dest)
}

func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	if temporalsdk.IsCanceledError(err) {
		return context.Canceled
	}
	return err
}
