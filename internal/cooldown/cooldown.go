// Package cooldown defines a small TTL-gated "have we done this recently"
// port used to rate-limit corrective-task generation (spec §4.6 "global
// per-(workspace,metric_type) cooldown"). The Goal Monitor's validation
// optimizer does not use it. Grounded on the same Store-adjacent port pattern as
// internal/store: an interface in its own package, with an in-memory default
// implementation and a Redis-backed alternative for multi-process
// deployments.
package cooldown

import (
	"context"
	"time"
)

// Cooldowns gates repeated actions keyed by an arbitrary string (typically
// "workspace_id:metric_type").
type Cooldowns interface {
	// TryAcquire reports whether key is currently off cooldown, and if so
	// immediately starts a new cooldown window of ttl. Acquisition and the
	// check must be atomic — concurrent callers racing on the same key must
	// see only one true result.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Remaining returns how much of key's cooldown window is left, or zero
	// if the key is not currently cooling down.
	Remaining(ctx context.Context, key string) (time.Duration, error)
}
