// Package agentruntime defines the C2 AgentRuntime port: the single
// abstraction every LLM call in the orchestrator goes through (task
// execution, planner fallback-LLM calls, recovery analysis). No component
// imports a provider SDK directly; a concrete AgentRuntime is selected once
// at startup and wired into Services.
package agentruntime

import (
	"context"
	"time"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
)

// Usage is best-effort token accounting for a single Execute call. Missing
// counts must be flagged via Estimated rather than reported as zero, per spec
// §4.2 "Token usage is best-effort; missing values are flagged estimated."
type Usage struct {
	InputTokens  int
	OutputTokens int
	Model        string
	Estimated    bool
}

// Result is the successful outcome of Execute.
type Result struct {
	// Output is a free-text summary when the task has no ExpectedOutputSchema,
	// or StructuredPayload is set alongside it when it does.
	Output            string
	StructuredPayload map[string]any
	Usage             Usage
	AgentMetadata     map[string]any
}

// AgentRuntime is the C2 port: the sole entry point for invoking an LLM on
// behalf of a Task. Execute must respect ctx cancellation and deadline.
type AgentRuntime interface {
	Execute(ctx context.Context, task domain.Task, agentConfig domain.LLMConfig, deadline time.Time) (Result, error)
}
