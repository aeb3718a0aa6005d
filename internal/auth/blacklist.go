// AngelaMos | 2026
// blacklist.go

package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/honeydae/giftcards/internal/core"
)

// Blacklist records access tokens revoked before their expiry, keyed by jti.
// Entries only need to outlive the token itself.
type Blacklist interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type redisBlacklist struct {
	rdb *core.Redis
}

// NewRedisBlacklist stores revoked jtis as expiring "revoked:<jti>" keys.
func NewRedisBlacklist(rdb *core.Redis) Blacklist {
	return &redisBlacklist{rdb: rdb}
}

func (b *redisBlacklist) Revoke(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := b.rdb.Client.Set(ctx, b.rdb.Key("revoked", jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	return nil
}

func (b *redisBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := b.rdb.Client.Exists(ctx, b.rdb.Key("revoked", jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}

	return exists > 0, nil
}

type memoryBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryBlacklist is the single-process Blacklist used when Redis is not
// configured.
func NewMemoryBlacklist() Blacklist {
	return &memoryBlacklist{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (b *memoryBlacklist) Revoke(
	_ context.Context,
	jti string,
	expiresAt time.Time,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if !expiresAt.After(now) {
		return nil
	}

	for id, exp := range b.entries {
		if !exp.After(now) {
			delete(b.entries, id)
		}
	}

	b.entries[jti] = expiresAt
	return nil
}

func (b *memoryBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	exp, ok := b.entries[jti]
	return ok && exp.After(b.now()), nil
}
