package toolregistry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/toolregistry"
)

func TestNoopRegistryHasNoTools(t *testing.T) {
	r := toolregistry.NoopRegistry{}
	assert.Empty(t, r.List())
	_, ok := r.Lookup("anything")
	assert.False(t, ok)

	_, err := r.Invoke(context.Background(), "anything", nil)
	assert.Error(t, err)
}

func TestStaticRegistryRegisterLookupInvoke(t *testing.T) {
	spec := toolregistry.NewToolSpec("web.search", "search the web",
		map[string]any{"type": "object", "properties": map[string]any{"query": map[string]any{"type": "string"}}},
		func(_ context.Context, params map[string]any) (any, error) {
			return map[string]any{"echo": params["query"]}, nil
		})

	r := toolregistry.NewStaticRegistry(spec)

	got, ok := r.Lookup("web.search")
	require.True(t, ok)
	assert.Equal(t, "search the web", got.Description)

	result, err := r.Invoke(context.Background(), "web.search", map[string]any{"query": "go generics"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"echo": "go generics"}, result)
}

func TestStaticRegistryInvokeUnknownToolFails(t *testing.T) {
	r := toolregistry.NewStaticRegistry()
	_, err := r.Invoke(context.Background(), "missing.tool", nil)
	assert.Error(t, err)
}

func TestStaticRegistrySkipsSpecWithoutInvoke(t *testing.T) {
	r := toolregistry.NewStaticRegistry(toolregistry.Spec{Name: "broken"})
	_, ok := r.Lookup("broken")
	assert.False(t, ok)
}

func TestStaticRegistryRegisterReplacesAndUnregisterRemoves(t *testing.T) {
	r := toolregistry.NewStaticRegistry()
	calls := 0
	r.Register(toolregistry.NewToolSpec("counter", "v1", nil, func(context.Context, map[string]any) (any, error) {
		calls++
		return calls, nil
	}))
	_, err := r.Invoke(context.Background(), "counter", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	r.Register(toolregistry.NewToolSpec("counter", "v2", nil, func(context.Context, map[string]any) (any, error) {
		return "v2 result", nil
	}))
	got, ok := r.Lookup("counter")
	require.True(t, ok)
	assert.Equal(t, "v2", got.Description)

	require.True(t, r.Unregister("counter"))
	assert.False(t, r.Unregister("counter"))
	_, ok = r.Lookup("counter")
	assert.False(t, ok)
}

func TestStaticRegistryListReturnsAllTools(t *testing.T) {
	r := toolregistry.NewStaticRegistry(
		toolregistry.NewToolSpec("a", "", nil, func(context.Context, map[string]any) (any, error) { return nil, nil }),
		toolregistry.NewToolSpec("b", "", nil, func(context.Context, map[string]any) (any, error) { return nil, nil }),
	)
	assert.Len(t, r.List(), 2)
}
