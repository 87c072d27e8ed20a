package telemetry

import (
	"context"
	"sync"
)

// Subscriber reacts to broadcast events. Unlike a typical pub/sub bus,
// HandleEvent has no error return: spec §4.3/§5 require that "Telemetry
// broadcast errors must not propagate" and "failures in Telemetry never fail
// the append". Subscribers that need to surface a problem should log it
// through the Logger passed at construction time instead of returning it.
type Subscriber interface {
	HandleEvent(ctx context.Context, eventType string, payload any)
}

// Bus fans out broadcast events to registered subscribers, synchronously and
// in no particular order. Adapted from the teacher's runtime/agent/hooks.Bus,
// with the fail-fast-on-first-error behavior replaced by fail-soft: every
// subscriber is always invoked, and a subscriber panic is recovered and
// logged rather than propagated, since Broadcast must never fail the caller.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*subscription]Subscriber
	logger      Logger
}

type subscription struct {
	bus  *Bus
	once sync.Once
}

// NewBus constructs an empty Bus. logger may be nil, in which case recovered
// panics are silently dropped.
func NewBus(logger Logger) *Bus {
	return &Bus{subscribers: make(map[*subscription]Subscriber), logger: logger}
}

// Register adds a subscriber and returns a handle that Unregister can later
// use to remove it. Safe for concurrent use.
func (b *Bus) Register(sub Subscriber) *subscription {
	s := &subscription{bus: b}
	b.mu.Lock()
	b.subscribers[s] = sub
	b.mu.Unlock()
	return s
}

// Unregister removes a subscriber from the bus. Idempotent and safe to call
// multiple times or concurrently with Publish.
func (b *Bus) Unregister(s *subscription) {
	if s == nil {
		return
	}
	s.once.Do(func() {
		b.mu.Lock()
		delete(b.bus.subscribers, s)
		b.mu.Unlock()
	})
}

// Publish delivers eventType/payload to every currently registered
// subscriber. A panicking subscriber is recovered and logged; it never stops
// delivery to the remaining subscribers and never surfaces to the caller.
func (b *Bus) Publish(ctx context.Context, eventType string, payload any) {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s, eventType, payload)
	}
}

func (b *Bus) deliver(ctx context.Context, s Subscriber, eventType string, payload any) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Warn(ctx, "telemetry: subscriber panicked, dropping", "event_type", eventType, "recover", r)
		}
	}()
	s.HandleEvent(ctx, eventType, payload)
}
