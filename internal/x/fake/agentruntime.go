// Package fake provides an in-memory AgentRuntime test double shared across
// package tests. It has no Store, Telemetry or Clock double: tests use
// memstore and the telemetry no-op constructors for those, and read the wall
// clock directly.
package fake

import (
	"context"
	"time"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/agentruntime"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
)

// AgentRuntime is a scriptable agentruntime.AgentRuntime. ExecuteFunc is
// called for every Execute invocation; when nil, Execute returns a canned
// successful Result so tests that don't care about the runtime still compile
// and run.
type AgentRuntime struct {
	ExecuteFunc func(ctx context.Context, task domain.Task, cfg domain.LLMConfig, deadline time.Time) (agentruntime.Result, error)
	Calls       []domain.Task
}

func (a *AgentRuntime) Execute(ctx context.Context, task domain.Task, cfg domain.LLMConfig, deadline time.Time) (agentruntime.Result, error) {
	a.Calls = append(a.Calls, task)
	if a.ExecuteFunc != nil {
		return a.ExecuteFunc(ctx, task, cfg, deadline)
	}
	return agentruntime.Result{Output: "ok", Usage: agentruntime.Usage{Model: cfg.Model}}, nil
}
