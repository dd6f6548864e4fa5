package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"booksphere/internal/util"
	"booksphere/pkg/domain"
)

// RedisSessionStore keeps session snapshots in Redis with TTL.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisSessionStore builds a Redis-backed session store on a shared client.
func NewRedisSessionStore(client *redis.Client, prefix string, ttl time.Duration) *RedisSessionStore {
	if prefix == "" {
		prefix = "booksphere:session"
	}
	return &RedisSessionStore{client: client, ttl: ttl, prefix: prefix}
}

// NewSession writes token -> snapshot with TTL.
func (s *RedisSessionStore) NewSession(sess domain.Session) (string, error) {
	if sess.UserID <= 0 {
		return "", errors.New("session user id required")
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return "", err
	}
	token := util.NewToken()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, s.key(token), payload, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// GetSession resolves token to its snapshot.
func (s *RedisSessionStore) GetSession(token string) (domain.Session, bool, error) {
	if token == "" {
		return domain.Session{}, false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	val, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err == redis.Nil {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, err
	}
	var sess domain.Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return domain.Session{}, false, nil
	}
	return sess, true, nil
}

// RefreshSession overwrites the snapshot in place, keeping the remaining TTL.
func (s *RedisSessionStore) RefreshSession(token string, sess domain.Session) (string, error) {
	payload, err := json.Marshal(sess)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	res, err := s.client.SetArgs(ctx, s.key(token), payload, redis.SetArgs{Mode: "XX", KeepTTL: true}).Result()
	if err == redis.Nil || (err == nil && res != "OK") {
		// expired in the meantime; start a fresh session
		return s.NewSession(sess)
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// DeleteSession removes a token mapping.
func (s *RedisSessionStore) DeleteSession(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func (s *RedisSessionStore) key(token string) string {
	return s.prefix + ":" + token
}
