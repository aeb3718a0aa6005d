// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/honeydae/giftcards/internal/config"
)

const redisTimeout = 5 * time.Second

// Redis is the shared store behind the access token blacklist and the
// cross-replica rate limiter. Every key goes through Key so deployments
// sharing one server stay apart.
type Redis struct {
	Client *redis.Client
	prefix string
}

// NewRedis returns (nil, nil) when no URL is configured; callers treat a nil
// *Redis as "run without Redis".
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.ConnMaxIdleTime = 5 * time.Minute
	if opts.ClientName == "" {
		opts.ClientName = cfg.KeyPrefix
	}

	rdb := NewRedisFromClient(redis.NewClient(opts), cfg.KeyPrefix)
	if err := rdb.Ping(ctx); err != nil {
		_ = rdb.Close() //nolint:errcheck // already failing
		return nil, err
	}

	return rdb, nil
}

// NewRedisFromClient wraps an existing client. prefix may be empty.
func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	return &Redis{Client: client, prefix: strings.Trim(prefix, ":")}
}

// Key joins parts with ":" under the configured prefix, e.g.
// Key("revoked", jti) is "honeydae:revoked:<jti>".
func (r *Redis) Key(parts ...string) string {
	if r.prefix != "" {
		parts = append([]string{r.prefix}, parts...)
	}
	return strings.Join(parts, ":")
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (r *Redis) PoolStats() *redis.PoolStats {
	return r.Client.PoolStats()
}
