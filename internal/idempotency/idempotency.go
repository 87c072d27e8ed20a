// Package idempotency computes the deterministic idempotency key the Store
// uses to dedupe retried task creation (spec §4.1, §5): hash(goal_id,
// requirement_id, task_name).
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
)

// TaskKey returns a stable key for (goalID, requirementID, taskName). Equal
// inputs always produce equal output; this is purely a hash function, not a
// secret — collision resistance, not secrecy, is the requirement.
func TaskKey(goalID, requirementID, taskName string) string {
	h := sha256.New()
	h.Write([]byte(goalID))
	h.Write([]byte{0})
	h.Write([]byte(requirementID))
	h.Write([]byte{0})
	h.Write([]byte(taskName))
	return hex.EncodeToString(h.Sum(nil))
}
