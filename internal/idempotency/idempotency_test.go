package idempotency_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/idempotency"
)

func TestTaskKeyIsDeterministic(t *testing.T) {
	a := idempotency.TaskKey("g1", "r1", "collect contacts")
	b := idempotency.TaskKey("g1", "r1", "collect contacts")
	assert.Equal(t, a, b)
}

func TestTaskKeyDistinguishesFieldBoundaries(t *testing.T) {
	a := idempotency.TaskKey("g1", "r1x", "t")
	b := idempotency.TaskKey("g1r", "1x", "t")
	assert.NotEqual(t, a, b)
}
