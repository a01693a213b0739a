package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptStore counts failed logins per key inside a sliding window.
type AttemptStore interface {
	Failures(ctx context.Context, key string) (int64, error)
	RecordFailure(ctx context.Context, key string, window time.Duration) (int64, error)
	Reset(ctx context.Context, key string) error
}

// RedisAttemptStore keeps counters in Redis with INCR and EXPIRE.
type RedisAttemptStore struct {
	client *redis.Client
	prefix string
}

// NewRedisAttemptStore builds the store.
func NewRedisAttemptStore(client *redis.Client) *RedisAttemptStore {
	return &RedisAttemptStore{client: client, prefix: "auth:failed:"}
}

func (s *RedisAttemptStore) key(k string) string {
	return s.prefix + strings.ToLower(strings.TrimSpace(k))
}

// Failures returns the current counter value, zero when absent.
func (s *RedisAttemptStore) Failures(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Get(ctx, s.key(key)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// RecordFailure increments the counter. The window starts at the first failure.
func (s *RedisAttemptStore) RecordFailure(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := s.key(key)
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Reset clears the counter.
func (s *RedisAttemptStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// MemoryAttemptStore is the in-process AttemptStore used without Redis.
type MemoryAttemptStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]attemptEntry
}

type attemptEntry struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryAttemptStore builds the store. A nil now uses time.Now.
func NewMemoryAttemptStore(now func() time.Time) *MemoryAttemptStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryAttemptStore{now: now, entries: make(map[string]attemptEntry)}
}

func (s *MemoryAttemptStore) Failures(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(key).count, nil
}

func (s *MemoryAttemptStore) RecordFailure(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.live(key)
	if entry.count == 0 {
		entry.expiresAt = s.now().Add(window)
	}
	entry.count++
	s.entries[normalizeKey(key)] = entry
	return entry.count, nil
}

func (s *MemoryAttemptStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, normalizeKey(key))
	return nil
}

// live returns the entry for key, dropping it once expired. Callers hold mu.
func (s *MemoryAttemptStore) live(key string) attemptEntry {
	k := normalizeKey(key)
	entry, ok := s.entries[k]
	if ok && !s.now().Before(entry.expiresAt) {
		delete(s.entries, k)
		return attemptEntry{}
	}
	return entry
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}
