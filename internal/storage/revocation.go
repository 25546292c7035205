package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRevocationPrefix = "accounts:revoked"

var ErrAlreadyRevoked = errors.New("storage: token already revoked")

// RevocationRegistry records revoked refresh token ids. Revoke is an atomic
// check-and-insert: of two concurrent calls for one id exactly one succeeds,
// the other gets ErrAlreadyRevoked.
type RevocationRegistry interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type RedisRevocationRegistry struct {
	client *redis.Client
	prefix string
}

func NewRedisRevocationRegistry(client *redis.Client, prefix string) *RedisRevocationRegistry {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}

	return &RedisRevocationRegistry{client: client, prefix: prefix}
}

// Revoke keeps the entry for ttl, which callers set to the token's remaining
// lifetime; after that the token fails expiry checks on its own.
func (r *RedisRevocationRegistry) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	const op = "storage.RedisRevocationRegistry.Revoke"

	if jti == "" {
		return fmt.Errorf("%s: empty token id", op)
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	ok, err := r.client.SetNX(ctx, r.key(jti), time.Now().UTC().Unix(), ttl).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrAlreadyRevoked)
	}

	return nil
}

func (r *RedisRevocationRegistry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	const op = "storage.RedisRevocationRegistry.IsRevoked"

	n, err := r.client.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

func (r *RedisRevocationRegistry) key(jti string) string {
	return r.prefix + ":" + jti
}

// MemoryRevocationRegistry is the in-process registry used with the memory
// storage driver. Entries hold their expiry and are dropped lazily.
type MemoryRevocationRegistry struct {
	entries sync.Map
	now     func() time.Time
}

func NewMemoryRevocationRegistry() *MemoryRevocationRegistry {
	return &MemoryRevocationRegistry{now: time.Now}
}

func (m *MemoryRevocationRegistry) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	const op = "storage.MemoryRevocationRegistry.Revoke"

	if jti == "" {
		return fmt.Errorf("%s: empty token id", op)
	}

	expiresAt := m.now().Add(ttl)
	existing, loaded := m.entries.LoadOrStore(jti, expiresAt)
	if !loaded {
		return nil
	}

	if m.now().Before(existing.(time.Time)) {
		return fmt.Errorf("%s: %w", op, ErrAlreadyRevoked)
	}

	// stale entry; only one caller wins the swap
	if m.entries.CompareAndSwap(jti, existing, expiresAt) {
		return nil
	}

	return fmt.Errorf("%s: %w", op, ErrAlreadyRevoked)
}

func (m *MemoryRevocationRegistry) IsRevoked(_ context.Context, jti string) (bool, error) {
	existing, ok := m.entries.Load(jti)
	if !ok {
		return false, nil
	}

	if !m.now().Before(existing.(time.Time)) {
		m.entries.CompareAndDelete(jti, existing)
		return false, nil
	}

	return true, nil
}
