package redispkg

import (
	"context"
	"crypto/tls"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"postfeed/internal/observability"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
)

// RedisClient is a small interface used by handlers. Keep it minimal for testability.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error
	Close() error
}

const defaultAddr = "redis:6379"

// ParseRedisURL splits a REDIS_URL-like string into its connection parts.
// Accepts either a plain `host:port` or a `redis://`/`rediss://` URL.
func ParseRedisURL(raw string) (addr, password string, db int, useTLS bool) {
	if raw == "" {
		return defaultAddr, "", 0, false
	}

	addr = raw
	if strings.HasPrefix(raw, "redis://") || strings.HasPrefix(raw, "rediss://") {
		useTLS = strings.HasPrefix(raw, "rediss://")
		if u, err := url.Parse(raw); err == nil {
			addr = u.Host
			if u.User != nil {
				if pw, ok := u.User.Password(); ok {
					password = pw
				}
			}
			if p := strings.Trim(u.Path, "/"); p != "" {
				if dbn, err := strconv.Atoi(p); err == nil {
					db = dbn
				}
			}
		}
	}
	return addr, password, db, useTLS
}

// NewClient builds a redis client from a REDIS_URL-like string. It disables
// maintnotifications by default to avoid handshake attempts on servers that
// don't implement the subcommand.
func NewClient(raw string) *redis.Client {
	addr, password, db, useTLS := ParseRedisURL(raw)

	opts := &redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}
	if useTLS {
		host := addr
		if i := strings.LastIndex(addr, ":"); i > 0 {
			host = addr[:i]
		}
		opts.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}
	// Disable maintenance notifications handshake by default.
	opts.MaintNotificationsConfig = &maintnotifications.Config{Mode: maintnotifications.ModeDisabled}

	client := redis.NewClient(opts)
	client.AddHook(metricsHook{})
	return client
}

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// Client is a thin adapter around *redis.Client that implements RedisClient.
type Client struct {
	Raw *redis.Client
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.Raw.Get(ctx, key).Result()
}

func (c *Client) Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error {
	return c.Raw.Set(ctx, key, val, ttl).Err()
}

func (c *Client) Close() error {
	return c.Raw.Close()
}

// NewAdapter creates the adapter wrapper for a *redis.Client.
func NewAdapter(rawClient *redis.Client) *Client {
	return &Client{Raw: rawClient}
}

var _ RedisClient = (*Client)(nil)
