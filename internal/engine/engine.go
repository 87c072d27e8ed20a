// Package engine defines a pluggable durable-execution abstraction (Design
// Notes §9, SPEC_FULL.md §4 domain-stack wiring table): an optional
// alternative execution path for long-running workspace workflows, distinct
// from the Executor's plain goroutine pool. Adapters translate these
// generic types into backend-specific primitives; ship an in-memory adapter
// (package inmem) for local development and tests, and a Temporal-backed
// adapter (package temporal) for durable production execution. Grounded on
// the teacher's runtime/agent/engine package, trimmed of the generated-code
// typed-activity helpers that have no home outside goa-ai's DSL pipeline.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/telemetry"
)

// ErrWorkflowNotFound is returned by QueryRunStatus when runID is unknown to
// the engine.
var ErrWorkflowNotFound = errors.New("engine: workflow not found")

// RunStatus is the lifecycle state of a workflow execution.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

type (
	// Engine abstracts workflow registration and execution so adapters
	// (Temporal, in-memory, or a future custom backend) can be swapped
	// without touching the code that registers and starts workflows.
	Engine interface {
		// RegisterWorkflow registers a workflow definition with the engine.
		// Must be called during service initialization, before StartWorkflow.
		RegisterWorkflow(ctx context.Context, def WorkflowDefinition) error

		// RegisterActivity registers an activity definition with the engine.
		// Activities are short-lived tasks invoked from workflows.
		RegisterActivity(ctx context.Context, def ActivityDefinition) error

		// StartWorkflow initiates a new workflow execution and returns a
		// handle for interacting with it. req.ID must be unique for the
		// engine instance.
		StartWorkflow(ctx context.Context, req WorkflowStartRequest) (WorkflowHandle, error)

		// QueryRunStatus reports the current lifecycle state of a workflow
		// execution by run ID. Returns ErrWorkflowNotFound if runID is
		// unknown.
		QueryRunStatus(ctx context.Context, runID string) (RunStatus, error)
	}

	// WorkflowDefinition binds a workflow handler to a logical name and
	// default queue.
	WorkflowDefinition struct {
		// Name is the logical identifier registered with the engine (e.g.
		// "bootstrap_workspace").
		Name string
		// TaskQueue is the default queue used when starting new workflow
		// executions of this definition.
		TaskQueue string
		// Handler is invoked by the engine when the workflow executes.
		Handler WorkflowFunc
	}

	// WorkflowFunc is a workflow entry point. It must be deterministic
	// under replay-capable engines: it should produce the same execution
	// sequence given the same inputs and activity results.
	WorkflowFunc func(ctx WorkflowContext, input any) (any, error)

	// WorkflowContext exposes engine operations to a running workflow.
	//
	// Thread-safety: bound to a single workflow execution, must not be
	// shared across goroutines.
	WorkflowContext interface {
		// Context returns the Go context for the workflow.
		Context() context.Context
		// WorkflowID returns the caller-supplied identifier for this run.
		WorkflowID() string
		// RunID returns the engine-assigned run identifier.
		RunID() string

		// ExecuteActivity schedules req and blocks until it completes,
		// decoding the result into result.
		ExecuteActivity(ctx context.Context, req ActivityRequest, result any) error
		// ExecuteActivityAsync schedules req without blocking, returning a
		// Future resolved later via Get.
		ExecuteActivityAsync(ctx context.Context, req ActivityRequest) (Future, error)

		// SignalChannel returns a channel for the named signal. Workflow
		// code polls or blocks on it to react to external events.
		SignalChannel(name string) SignalChannel

		Logger() telemetry.Logger
		Metrics() telemetry.Metrics
		Tracer() telemetry.Tracer

		// Now returns the current time in a manner safe for the engine's
		// replay semantics (if any).
		Now() time.Time
	}

	// Future represents a pending activity result. Calling Get multiple
	// times is safe and returns the same result/error each time.
	Future interface {
		Get(ctx context.Context, result any) error
		IsReady() bool
	}

	// ActivityDefinition registers an activity handler with optional
	// retry/timeout defaults.
	ActivityDefinition struct {
		Name    string
		Handler ActivityFunc
		Options ActivityOptions
	}

	// ActivityFunc handles an activity invocation. Unlike workflows,
	// activities may perform side effects (I/O, Store access, AgentRuntime
	// calls).
	ActivityFunc func(ctx context.Context, input any) (any, error)

	// ActivityOptions configures retry and timeout behavior for an
	// activity.
	ActivityOptions struct {
		Queue       string
		RetryPolicy RetryPolicy
		Timeout     time.Duration
	}

	// WorkflowStartRequest describes how to launch a workflow execution.
	WorkflowStartRequest struct {
		// ID must be unique within the engine scope.
		ID string
		// Workflow names the registered WorkflowDefinition to execute.
		Workflow string
		// TaskQueue overrides the definition's default queue when set.
		TaskQueue string
		// Input is the payload passed to the workflow handler.
		Input any
		// RetryPolicy controls restart of the start attempt itself (not
		// in-workflow activity retries).
		RetryPolicy RetryPolicy
	}

	// ActivityRequest contains the info needed to schedule an activity
	// from a workflow.
	ActivityRequest struct {
		Name        string
		Input       any
		Queue       string
		RetryPolicy RetryPolicy
		Timeout     time.Duration
	}

	// WorkflowHandle lets callers interact with a running workflow.
	WorkflowHandle interface {
		// Wait blocks until the workflow completes, decoding its return
		// value into result.
		Wait(ctx context.Context, result any) error
		// Signal sends an asynchronous message to the workflow.
		Signal(ctx context.Context, name string, payload any) error
		// Cancel requests cancellation of the workflow.
		Cancel(ctx context.Context) error
	}

	// RetryPolicy defines retry semantics shared by workflows and
	// activities. Zero-valued fields mean the engine uses its defaults.
	RetryPolicy struct {
		MaxAttempts        int
		InitialInterval    time.Duration
		BackoffCoefficient float64
	}

	// SignalChannel exposes workflow signal delivery in an engine-agnostic
	// way.
	SignalChannel interface {
		Receive(ctx context.Context, dest any) error
		ReceiveAsync(dest any) bool
	}
)
