// Package cache provides the Redis-backed cache-aside layer for post listings.
// A Cache built without a reachable Redis is a pass-through.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"postfeed/internal/observability"
	redispkg "postfeed/pkg/redis"

	"github.com/redis/go-redis/v9"
)

const (
	listVersionKey = "posts:featured:version"
	listKeyPrefix  = "posts:featured:v%d:q:%s"
	postKeyPrefix  = "post:%d"
)

// Cache wraps an optional Redis client. Keys are prefixed with namespace when
// one is set.
type Cache struct {
	client    *redis.Client
	ttl       time.Duration
	namespace string
}

// New wraps client; a nil client disables caching.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Connect dials addr and pings it. An empty addr or a failed ping yields a
// disabled cache; the service keeps working without Redis.
func Connect(addr string, ttl time.Duration) *Cache {
	if addr == "" {
		observability.Logger.Info("Redis not configured; list cache disabled")
		return New(nil, ttl)
	}

	client := redispkg.NewClient(addr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		observability.Logger.Warn("Redis connection warning (continuing without cache)", slog.String("error", err.Error()))
		_ = client.Close()
		return New(nil, ttl)
	}
	observability.Logger.Info("Redis connected successfully")
	return New(client, ttl)
}

// Scoped returns a cache over the same client whose keys live under
// namespace. Entries written by other namespaces are never read.
func (c *Cache) Scoped(namespace string) *Cache {
	if c == nil {
		return New(nil, 0).Scoped(namespace)
	}
	return &Cache{client: c.client, ttl: c.ttl, namespace: namespace}
}

// Namespace returns the key prefix, empty when unscoped.
func (c *Cache) Namespace() string {
	if c == nil {
		return ""
	}
	return c.namespace
}

func (c *Cache) key(k string) string {
	if c.Namespace() == "" {
		return k
	}
	return c.namespace + ":" + k
}

// Enabled reports whether a Redis client is attached.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Client returns the underlying client, or nil when disabled.
func (c *Cache) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.client
}

// Close releases the Redis connection.
func (c *Cache) Close() {
	if !c.Enabled() {
		return
	}
	if err := c.client.Close(); err != nil {
		observability.Logger.Error("Error closing Redis", slog.String("error", err.Error()))
	}
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	s, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with the cache TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, b, c.ttl).Err()
}

// Aside tries Redis first, on miss it calls fetch (which must populate dest),
// then stores the result with the cache TTL. Redis failures fall through to
// fetch.
func (c *Cache) Aside(ctx context.Context, key string, dest any, fetch func() error) error {
	found, err := c.GetJSON(ctx, key, dest)
	switch {
	case err != nil:
		observability.CacheLookups.WithLabelValues("error").Inc()
		observability.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	case found:
		observability.CacheLookups.WithLabelValues("hit").Inc()
		return nil
	case c.Enabled():
		observability.CacheLookups.WithLabelValues("miss").Inc()
	}

	if err := fetch(); err != nil {
		return err
	}

	// Store into cache (best-effort)
	_ = c.SetJSON(ctx, key, dest)
	return nil
}
