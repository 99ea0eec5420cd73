package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"postfeed/internal/observability"

	"github.com/redis/go-redis/v9"
)

// PostKey is the cache key of a single post.
func (c *Cache) PostKey(id int) string {
	return c.key(fmt.Sprintf(postKeyPrefix, id))
}

// FeaturedListKey is the cache key of a featured listing for an already
// normalized query. The current list version is part of the key, so bumping
// it orphans every cached listing at once. ok is false when the cache is
// disabled or the version cannot be read; callers then skip the cache.
func (c *Cache) FeaturedListKey(ctx context.Context, normalizedQuery string) (key string, ok bool) {
	v, ok := c.listVersion(ctx)
	if !ok {
		return "", false
	}
	return c.key(fmt.Sprintf(listKeyPrefix, v, normalizedQuery)), true
}

// InvalidateFeaturedLists makes every cached listing unreachable.
func (c *Cache) InvalidateFeaturedLists(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	if err := c.client.Incr(ctx, c.key(listVersionKey)).Err(); err != nil {
		observability.Logger.WarnContext(ctx, "list cache invalidation failed", slog.String("error", err.Error()))
	}
}

func (c *Cache) listVersion(ctx context.Context) (int64, bool) {
	if !c.Enabled() {
		return 0, false
	}
	v, err := c.client.Get(ctx, c.key(listVersionKey)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		observability.Logger.WarnContext(ctx, "list cache version read failed", slog.String("error", err.Error()))
		return 0, false
	}
	return v, true
}
