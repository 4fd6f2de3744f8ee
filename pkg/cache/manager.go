package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is used when a manager is created with a non-positive TTL.
const DefaultTTL = 24 * time.Hour

var (
	// ErrCacheMiss indicates the page is not cached or its entry expired
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored entry could not be decoded
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager caches successful page bodies in Redis for a fixed TTL.
type Manager struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewManager creates a page cache on redisClient.
func NewManager(redisClient *redis.Client, ttl time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		redis: redisClient,
		ttl:   ttl,
	}
}

// TTL returns the lifetime of new entries.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Lookup returns the cached body of key's page.
// An entry that fails to decode is removed and reported as ErrInvalidEntry.
func (m *Manager) Lookup(ctx context.Context, key CacheKey) ([]byte, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || len(entry.Data) == 0 {
		CacheErrors.WithLabelValues("decode").Inc()
		_ = m.Delete(ctx, key)
		if err == nil {
			err = errors.New("empty body")
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Redis expiry is authoritative, this catches clock skew on old entries.
	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("redis").Inc()
	return entry.Data, nil
}

// Put caches body under key for the manager's TTL.
func (m *Manager) Put(ctx context.Context, key CacheKey, body []byte) error {
	if len(body) == 0 {
		return errors.New("refusing to cache an empty page")
	}

	data, err := json.Marshal(NewEntry(body, m.ttl))
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := m.redis.Set(ctx, key.String(), data, m.ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.WithLabelValues("redis").Add(float64(len(data)))
	return nil
}

// Delete removes key's entry.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Pages counts the cached pages under KeyPrefix.
func (m *Manager) Pages(ctx context.Context) (int, error) {
	var n int
	iter := m.redis.Scan(ctx, 0, KeyPrefix+":*", 256).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("scan").Inc()
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return n, nil
}

// Ping checks connectivity to the Redis backend.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
