// Package inmem provides an in-memory engine.Engine implementation for local
// development and tests. It is not durable or replay-safe: a process
// restart loses all in-flight workflow state. Adapted from the teacher's
// runtime/agent/engine/inmem package, trimmed of the goa-ai-specific typed
// planner/tool activity registration helpers.
package inmem

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/engine"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
)

type (
	eng struct {
		mu         sync.RWMutex
		workflows  map[string]engine.WorkflowDefinition
		activities map[string]activityEntry
		statuses   map[string]engine.RunStatus
	}

	activityEntry struct {
		handler engine.ActivityFunc
		opts    engine.ActivityOptions
	}

	handle struct {
		mu     sync.Mutex
		done   chan struct{}
		err    error
		result any
		wfCtx  *wfCtx
	}

	wfCtx struct {
		ctx   context.Context
		id    string
		runID string
		eng   *eng

		sigMu sync.Mutex
		sigs  map[string]*signalChan
	}

	future struct {
		mu     sync.Mutex
		ready  chan struct{}
		result any
		err    error
	}

	signalChan struct{ ch chan any }
)

// New returns a new in-memory Engine. Not safe for production durable
// workloads: workflows live only as long as the process.
func New() engine.Engine {
	return &eng{
		workflows:  make(map[string]engine.WorkflowDefinition),
		activities: make(map[string]activityEntry),
		statuses:   make(map[string]engine.RunStatus),
	}
}

func (e *eng) RegisterWorkflow(_ context.Context, def engine.WorkflowDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return errors.New("inmem engine: invalid workflow definition")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.workflows[def.Name]; dup {
		return fmt.Errorf("inmem engine: workflow %q already registered", def.Name)
	}
	e.workflows[def.Name] = def
	return nil
}

func (e *eng) RegisterActivity(_ context.Context, def engine.ActivityDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return errors.New("inmem engine: invalid activity definition")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.activities[def.Name]; dup {
		return fmt.Errorf("inmem engine: activity %q already registered", def.Name)
	}
	e.activities[def.Name] = activityEntry{handler: def.Handler, opts: def.Options}
	return nil
}

func (e *eng) StartWorkflow(ctx context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	if req.ID == "" {
		return nil, errors.New("inmem engine: workflow id is required")
	}
	e.mu.RLock()
	def, ok := e.workflows[req.Workflow]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("inmem engine: workflow %q not registered", req.Workflow)
	}

	wctx := &wfCtx{ctx: ctx, id: req.ID, runID: req.ID, eng: e, sigs: make(map[string]*signalChan)}
	h := &handle{done: make(chan struct{}), wfCtx: wctx}

	e.mu.Lock()
	e.statuses[req.ID] = engine.RunStatusRunning
	e.mu.Unlock()

	go func() {
		defer close(h.done)
		res, err := def.Handler(wctx, req.Input)
		h.mu.Lock()
		h.result, h.err = res, err
		h.mu.Unlock()

		e.mu.Lock()
		switch {
		case errors.Is(err, context.Canceled):
			e.statuses[req.ID] = engine.RunStatusCanceled
		case err != nil:
			e.statuses[req.ID] = engine.RunStatusFailed
		default:
			e.statuses[req.ID] = engine.RunStatusCompleted
		}
		e.mu.Unlock()
	}()

	return h, nil
}

func (e *eng) QueryRunStatus(_ context.Context, runID string) (engine.RunStatus, error) {
	if runID == "" {
		return "", errors.New("inmem engine: run id is required")
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	status, ok := e.statuses[runID]
	if !ok {
		return "", engine.ErrWorkflowNotFound
	}
	return status, nil
}

func (h *handle) Wait(ctx context.Context, result any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		assignResult(result, h.result)
		return h.err
	}
}

func (h *handle) Signal(ctx context.Context, name string, payload any) error {
	ch := h.wfCtx.SignalChannel(name).(*signalChan)
	select {
	case ch.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return errors.New("inmem engine: workflow already completed")
	}
}

// Cancel is best-effort: the in-memory engine does not propagate
// cancellation into the running workflow goroutine.
func (h *handle) Cancel(context.Context) error { return nil }

func (w *wfCtx) Context() context.Context   { return w.ctx }
func (w *wfCtx) WorkflowID() string         { return w.id }
func (w *wfCtx) RunID() string              { return w.runID }
func (w *wfCtx) Logger() telemetry.Logger   { return telemetry.NewNoopLogger() }
func (w *wfCtx) Metrics() telemetry.Metrics { return telemetry.NewNoopMetrics() }
func (w *wfCtx) Tracer() telemetry.Tracer   { return telemetry.NewNoopTracer() }
func (w *wfCtx) Now() time.Time             { return time.Now() }

func (w *wfCtx) ExecuteActivity(ctx context.Context, req engine.ActivityRequest, result any) error {
	fut, err := w.ExecuteActivityAsync(ctx, req)
	if err != nil {
		return err
	}
	return fut.Get(ctx, result)
}

func (w *wfCtx) ExecuteActivityAsync(ctx context.Context, req engine.ActivityRequest) (engine.Future, error) {
	w.eng.mu.RLock()
	def, ok := w.eng.activities[req.Name]
	w.eng.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("inmem engine: activity %q not registered", req.Name)
	}

	actCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		actCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	f := &future{ready: make(chan struct{})}
	go func() {
		defer close(f.ready)
		if cancel != nil {
			defer cancel()
		}
		res, err := def.handler(actCtx, req.Input)
		f.mu.Lock()
		f.result, f.err = res, err
		f.mu.Unlock()
	}()
	return f, nil
}

func (f *future) Get(ctx context.Context, result any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.ready:
		f.mu.Lock()
		defer f.mu.Unlock()
		assignResult(result, f.result)
		return f.err
	}
}

func (f *future) IsReady() bool {
	select {
	case <-f.ready:
		return true
	default:
		return false
	}
}

func (w *wfCtx) SignalChannel(name string) engine.SignalChannel {
	w.sigMu.Lock()
	defer w.sigMu.Unlock()
	ch, ok := w.sigs[name]
	if !ok {
		ch = &signalChan{ch: make(chan any, 1)}
		w.sigs[name] = ch
	}
	return ch
}

func (s *signalChan) Receive(ctx context.Context, dest any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case v := <-s.ch:
		assignResult(dest, v)
		return nil
	}
}

func (s *signalChan) ReceiveAsync(dest any) bool {
	select {
	case v := <-s.ch:
		assignResult(dest, v)
		return true
	default:
		return false
	}
}

func assignResult(dst, src any) {
	if dst == nil || src == nil {
		return
	}
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return
	}
	sv := reflect.ValueOf(src)
	if !sv.IsValid() {
		return
	}
	if sv.Type().AssignableTo(dv.Elem().Type()) {
		dv.Elem().Set(sv)
		return
	}
	if dv.Elem().Kind() == reflect.Interface && sv.Type().Implements(dv.Elem().Type()) {
		dv.Elem().Set(sv)
	}
}
