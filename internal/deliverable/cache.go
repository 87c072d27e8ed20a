package deliverable

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/potentialgenie/ai-team-orchestrator-sub002/internal/domain"
)

// cacheKey identifies a cached aggregation result: the latest contributing
// task's update timestamp plus a content hash over task ids, names,
// summaries, and the first 500 characters of each structured payload (spec
// §4.7 step 5).
type cacheKey struct {
	latestUpdate int64
	contentHash  string
}

type cacheEntry struct {
	key        cacheKey
	deliverable domain.Deliverable
	expiresAt  time.Time
}

// payloadCache is a bounded, TTL-expiring LRU keyed by cacheKey, the same
// shape as cooldown/memcooldown's eviction list, reused here for the
// Deliverable Engine's own cache rather than sharing code across packages
// with unrelated value types.
type payloadCache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	order      *list.List
	elements   map[cacheKey]*list.Element
}

func newPayloadCache(maxEntries int, ttl time.Duration) *payloadCache {
	return &payloadCache{
		maxEntries: maxEntries, ttl: ttl,
		order: list.New(), elements: make(map[cacheKey]*list.Element),
	}
}

func (c *payloadCache) get(key cacheKey) (domain.Deliverable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.elements[key]
	if !ok {
		return domain.Deliverable{}, false
	}
	entry := el.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.elements, key)
		return domain.Deliverable{}, false
	}
	c.order.MoveToFront(el)
	return entry.deliverable, true
}

func (c *payloadCache) put(key cacheKey, d domain.Deliverable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.elements[key]; ok {
		el.Value = &cacheEntry{key: key, deliverable: d, expiresAt: time.Now().Add(c.ttl)}
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&cacheEntry{key: key, deliverable: d, expiresAt: time.Now().Add(c.ttl)})
	c.elements[key] = el
	if c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.elements, oldest.Value.(*cacheEntry).key)
		}
	}
}

// contentHash hashes task ids, names, the first 500 bytes of each result
// summary (Output), and the first 500 bytes of each structured payload's
// JSON encoding.
func contentHash(tasks []domain.Task) string {
	h := sha256.New()
	for _, t := range tasks {
		h.Write([]byte(t.ID))
		h.Write([]byte{0})
		h.Write([]byte(t.Name))
		h.Write([]byte{0})
		if t.Result != nil {
			summary := t.Result.Output
			if len(summary) > 500 {
				summary = summary[:500]
			}
			h.Write([]byte(summary))
			h.Write([]byte{0})
			if len(t.Result.StructuredPayload) > 0 {
				if payload, err := json.Marshal(t.Result.StructuredPayload); err == nil {
					if len(payload) > 500 {
						payload = payload[:500]
					}
					h.Write(payload)
				}
			}
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func latestUpdateOf(tasks []domain.Task) int64 {
	var latest int64
	for _, t := range tasks {
		if ts := t.UpdatedAt.Unix(); ts > latest {
			latest = ts
		}
	}
	return latest
}
