// Package dedup keeps at-most-once semantics for pipeline triggers: an
// outcome id that has already started a run must not start another.
// Redis-backed when an address is configured (so restarts and replicas
// share the marker set), in-memory otherwise.
package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "voxloop:outcome:"
	DefaultTTL = 24 * time.Hour
)

// Marker answers "is this the first time this outcome id was seen?".
type Marker interface {
	FirstSeen(ctx context.Context, outcomeID string) bool
}

// NewRedis returns a Marker backed by SETNX with a TTL.
func NewRedis(client *redis.Client, ttl time.Duration) Marker {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &redisMarker{client: client, ttl: ttl}
}

type redisMarker struct {
	client *redis.Client
	ttl    time.Duration
}

// FirstSeen marks the id and reports whether this call did the marking.
// A redis failure counts as first-seen: better a duplicate run than a
// silently dropped one.
func (m *redisMarker) FirstSeen(ctx context.Context, outcomeID string) bool {
	ok, err := m.client.SetNX(ctx, keyPrefix+outcomeID, 1, m.ttl).Result()
	if err != nil {
		return true
	}
	return ok
}

// NewMemory returns a process-local Marker.
func NewMemory() Marker {
	return &memoryMarker{seen: make(map[string]struct{})}
}

type memoryMarker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func (m *memoryMarker) FirstSeen(_ context.Context, outcomeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[outcomeID]; ok {
		return false
	}
	m.seen[outcomeID] = struct{}{}
	return true
}
