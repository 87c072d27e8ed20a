// Package toolregistry implements the tool registry supplement named in
// Design Notes §9: a name-keyed catalogue of tool metadata and invocation
// functions that the Executor threads into a task's ContextData for
// AgentRuntime.Execute to consult (spec §5.1). Grounded on the teacher's
// runtime/agent/tools package (ToolSpec, tools.Ident as Spec/Name here) and
// on original_source/backend/tools/registry.py's name->callable cache, minus
// its dynamic code-compilation path: this registry only ever holds
// pre-registered Go invoke functions, never executes caller-supplied code.
package toolregistry

import (
	"context"
	"fmt"
	"sync"
)

// ContextDataKey is the key under which a task's ContextData carries the
// Registry for that execution (spec §5.1: "The Executor exposes the
// registry to AgentRuntime.Execute via the task's context_data").
const ContextDataKey = "tool_registry"

// InvokeFunc executes a tool call with the given parameters and returns its
// result as a JSON-serializable value.
type InvokeFunc func(ctx context.Context, params map[string]any) (any, error)

// Spec describes one registered tool, mirroring the teacher's ToolSpec shape
// (Name, Description, schema) minus the codegen-only fields that have no
// home outside goa-ai's DSL pipeline.
type Spec struct {
	// Name is the globally unique tool identifier (e.g. "web.search").
	Name string
	// Description is human-readable context surfaced to planners.
	Description string
	// Schema is the JSON schema for the tool's parameters, used by planners
	// and AgentRuntime adapters to validate calls before Invoke runs.
	Schema map[string]any

	invoke InvokeFunc
}

// Registry is the abstract port the core depends on. AgentRuntime
// implementations receive a Registry (via a task's ContextData) and use it
// to resolve and invoke tools named in a planner's tool-call request.
type Registry interface {
	// Lookup returns the Spec registered under name, or false if none exists.
	Lookup(name string) (Spec, bool)
	// List returns every registered Spec, for advertising the tool catalogue
	// to a planner.
	List() []Spec
	// Invoke runs the named tool with params. It returns an error if the
	// tool is not registered.
	Invoke(ctx context.Context, name string, params map[string]any) (any, error)
}

// NoopRegistry is a Registry with no tools registered; Invoke always fails.
// Used where a caller requires a non-nil Registry but no tools are wired
// (e.g. a bare AgentRuntime smoke test).
type NoopRegistry struct{}

// Lookup always reports no tool found.
func (NoopRegistry) Lookup(string) (Spec, bool) { return Spec{}, false }

// List always returns no tools.
func (NoopRegistry) List() []Spec { return nil }

// Invoke always fails: NoopRegistry has nothing to invoke.
func (NoopRegistry) Invoke(_ context.Context, name string, _ map[string]any) (any, error) {
	return nil, fmt.Errorf("toolregistry: tool %q not registered", name)
}

// StaticRegistry is an in-memory Registry built once at construction time
// from a fixed set of Specs, used by tests and by deployments that wire a
// small, known tool set rather than a dynamic one.
type StaticRegistry struct {
	mu    sync.RWMutex
	tools map[string]Spec
}

// NewStaticRegistry constructs a StaticRegistry from the given specs. Each
// spec must carry a non-nil invoke function (set via Register or
// NewToolSpec); specs without one are skipped.
func NewStaticRegistry(specs ...Spec) *StaticRegistry {
	r := &StaticRegistry{tools: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		if s.invoke == nil {
			continue
		}
		r.tools[s.Name] = s
	}
	return r
}

// NewToolSpec builds a Spec with an attached invoke function, for use with
// Register or NewStaticRegistry.
func NewToolSpec(name, description string, schema map[string]any, fn InvokeFunc) Spec {
	return Spec{Name: name, Description: description, Schema: schema, invoke: fn}
}

// Register adds or replaces a tool at runtime.
func (r *StaticRegistry) Register(spec Spec) {
	if spec.invoke == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[spec.Name] = spec
}

// Unregister removes a tool by name, reporting whether it was present.
func (r *StaticRegistry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return false
	}
	delete(r.tools, name)
	return true
}

// Lookup returns the Spec registered under name.
func (r *StaticRegistry) Lookup(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.tools[name]
	return s, ok
}

// List returns every registered Spec in no particular order.
func (r *StaticRegistry) List() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.tools))
	for _, s := range r.tools {
		out = append(out, s)
	}
	return out
}

// Invoke resolves name and runs its invoke function with params.
func (r *StaticRegistry) Invoke(ctx context.Context, name string, params map[string]any) (any, error) {
	r.mu.RLock()
	s, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("toolregistry: tool %q not registered", name)
	}
	return s.invoke(ctx, params)
}
