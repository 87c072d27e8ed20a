package recovery

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

var errForcedTrip = errors.New("recovery: forced circuit trip")

// Breakers keys a sony/gobreaker circuit per (workspace, agent) pair so a
// string of failures against one agent doesn't trip recovery for the rest of
// the workspace. Grounded on jordigilh-kubernaut's notification circuit
// breaker wiring (test/integration/notification/suite_test.go), which
// configures gobreaker.Settings with a ConsecutiveFailures trip threshold and
// an OnStateChange hook; this adapts that shape to a per-key registry instead
// of a single shared breaker.
type Breakers struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakers constructs an empty registry.
func NewBreakers() *Breakers {
	return &Breakers{breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

func key(workspaceID, agentID string) string {
	return workspaceID + "/" + agentID
}

// For returns the circuit for (workspaceID, agentID), creating it on first
// use. Settings match the StrategyCircuitBreaker backoff window: three
// consecutive failures trips the circuit, which stays open for the same
// 1800s initial delay recovery.Delay assigns that strategy.
func (b *Breakers) For(workspaceID, agentID string) *gobreaker.CircuitBreaker {
	k := key(workspaceID, agentID)
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[k]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        k,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	b.breakers[k] = cb
	return cb
}

// RecordOpen forces the (workspace, agent) circuit open immediately, used
// when the Analyser decides circuit_breaker is the right strategy rather
// than waiting for three organic ConsecutiveFailures to accumulate.
func (b *Breakers) RecordOpen(workspaceID, agentID string) {
	cb := b.For(workspaceID, agentID)
	for i := 0; i < 3 && cb.State() != gobreaker.StateOpen; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, errForcedTrip })
	}
}

// State reports whether the given (workspace, agent) circuit currently
// allows requests, letting the Executor skip dispatch without invoking the
// breaker's Execute wrapper.
func (b *Breakers) State(workspaceID, agentID string) gobreaker.State {
	return b.For(workspaceID, agentID).State()
}
