package memcooldown_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/cooldown/memcooldown"
)

func TestTryAcquireBlocksWithinWindow(t *testing.T) {
	s := memcooldown.New(0)
	ctx := context.Background()

	ok, err := s.TryAcquire(ctx, "ws1:contacts", 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryAcquire(ctx, "ws1:contacts", 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := s.Remaining(ctx, "ws1:contacts")
	require.NoError(t, err)
	assert.Greater(t, remaining, time.Duration(0))

	time.Sleep(60 * time.Millisecond)
	ok, err = s.TryAcquire(ctx, "ws1:contacts", 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLRUEviction(t *testing.T) {
	s := memcooldown.New(2)
	ctx := context.Background()

	_, _ = s.TryAcquire(ctx, "a", time.Minute)
	_, _ = s.TryAcquire(ctx, "b", time.Minute)
	_, _ = s.TryAcquire(ctx, "c", time.Minute) // evicts "a"

	remaining, _ := s.Remaining(ctx, "a")
	assert.Zero(t, remaining)

	remaining, _ = s.Remaining(ctx, "c")
	assert.Greater(t, remaining, time.Duration(0))
}
