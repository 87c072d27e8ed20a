// Package rediscooldown is a Redis-backed Cooldowns implementation for
// multi-process deployments where the in-memory default would let each
// process independently rate-limit the same corrective-task key. Grounded on
// itsneelabh-gomind/core's redis_client.go, which wraps *redis.Client with a
// key-prefixing helper and surfaces TTL() for expiry inspection.
package rediscooldown

import (
	"context"
	"fmt"

	"time"

	"github.com/redis/go-redis/v9"
)

// Store implements cooldown.Cooldowns against a shared Redis instance.
type Store struct {
	client *redis.Client
	prefix string
}

// New constructs a Store. prefix namespaces keys (e.g. "orchestrator:cooldown:").
func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) formatKey(key string) string {
	return s.prefix + key
}

// TryAcquire uses SETNX semantics (SetNX) so the check-and-start is atomic
// across processes sharing the same Redis instance.
func (s *Store) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.formatKey(key), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("rediscooldown: try acquire: %w", err)
	}
	return ok, nil
}

func (s *Store) Remaining(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, s.formatKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("rediscooldown: remaining: %w", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
