package store

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenRevoker tracks revoked session ids until the token would have expired.
type TokenRevoker interface {
	Revoke(id string, ttl time.Duration) error
	IsRevoked(id string) (bool, error)
}

// MemoryTokenRevoker keeps revoked ids in-memory (single instance only).
type MemoryTokenRevoker struct {
	mu  sync.Mutex
	ids map[string]time.Time
	now func() time.Time
}

// NewMemoryTokenRevoker builds an in-memory revoker.
func NewMemoryTokenRevoker() *MemoryTokenRevoker {
	return &MemoryTokenRevoker{
		ids: make(map[string]time.Time),
		now: time.Now,
	}
}

func (r *MemoryTokenRevoker) Revoke(id string, ttl time.Duration) error {
	if ttl <= 0 || id == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[id] = r.now().Add(ttl)
	return nil
}

func (r *MemoryTokenRevoker) IsRevoked(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	expiry, ok := r.ids[id]
	if !ok {
		return false, nil
	}
	if r.now().After(expiry) {
		delete(r.ids, id)
		return false, nil
	}
	return true, nil
}

// RedisTokenRevoker stores revoked ids in Redis with TTL so every portal
// instance sees a logout.
type RedisTokenRevoker struct {
	client *redis.Client
	prefix string
}

// NewRedisTokenRevoker builds a Redis-backed revoker on a shared client.
func NewRedisTokenRevoker(client *redis.Client, prefix string) *RedisTokenRevoker {
	if prefix == "" {
		prefix = "booksphere:revoked"
	}
	return &RedisTokenRevoker{client: client, prefix: prefix}
}

func (r *RedisTokenRevoker) Revoke(id string, ttl time.Duration) error {
	if ttl <= 0 || id == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return r.client.Set(ctx, r.key(id), "1", ttl).Err()
}

func (r *RedisTokenRevoker) IsRevoked(id string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	res, err := r.client.Exists(ctx, r.key(id)).Result()
	if err != nil {
		return false, err
	}
	return res > 0, nil
}

func (r *RedisTokenRevoker) key(id string) string {
	return r.prefix + ":" + id
}
