package httpruntime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/agentruntime"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/agentruntime/httpruntime"
	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
)

func TestExecuteDecodesSuccessfulResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/execute", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "t1", req["task_id"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"output": "done", "input_tokens": 10, "output_tokens": 5, "model": "gpt-4o-mini",
		})
	}))
	defer srv.Close()

	rt := httpruntime.New(srv.URL, nil)
	result, err := rt.Execute(context.Background(), domain.Task{ID: "t1"}, domain.LLMConfig{Model: "gpt-4o-mini"}, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "done", result.Output)
	assert.Equal(t, 10, result.Usage.InputTokens)
}

func TestExecuteMapsRateLimitStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	rt := httpruntime.New(srv.URL, nil)
	_, err := rt.Execute(context.Background(), domain.Task{ID: "t2"}, domain.LLMConfig{}, time.Now().Add(time.Minute))
	require.Error(t, err)
	var rle *agentruntime.RateLimitError
	assert.ErrorAs(t, err, &rle)
}

func TestExecuteMapsResponseLevelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "schema mismatch"})
	}))
	defer srv.Close()

	rt := httpruntime.New(srv.URL, nil)
	_, err := rt.Execute(context.Background(), domain.Task{ID: "t3"}, domain.LLMConfig{}, time.Now().Add(time.Minute))
	require.Error(t, err)
	var ve *agentruntime.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestExecuteOmitsNonJSONSafeContextData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		ctxData, _ := req["context_data"].(map[string]any)
		assert.Equal(t, "keep", ctxData["keep_me"])
		_, hadDropped := ctxData["drop_me"]
		assert.False(t, hadDropped)
		_ = json.NewEncoder(w).Encode(map[string]any{"output": "ok"})
	}))
	defer srv.Close()

	rt := httpruntime.New(srv.URL, nil)
	task := domain.Task{ID: "t4", ContextData: map[string]any{
		"keep_me": "keep",
		"drop_me": make(chan int),
	}}
	_, err := rt.Execute(context.Background(), task, domain.LLMConfig{}, time.Now().Add(time.Minute))
	require.NoError(t, err)
}
