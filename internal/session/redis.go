package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "sofia:session:"
	defaultRedisTTL  = 24 * time.Hour
)

// RedisStore persists sessions as JSON values with a TTL, so
// conversations survive process restarts. The TTL is refreshed on every
// read.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to addr. A non-positive ttl selects the
// 24-hour default.
func NewRedisStore(addr string, ttlSeconds int) *RedisStore {
	ttl := defaultRedisTTL
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (r *RedisStore) key(userID string) string {
	return sessionKeyPrefix + userID
}

// Get implements Store, creating an idle session when the key is absent.
func (r *RedisStore) Get(ctx context.Context, userID string) (*Session, error) {
	val, err := r.client.Get(ctx, r.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		// A corrupt value is unrecoverable; start over rather than wedge
		// the user.
		return New(), nil
	}
	if s.Slots == nil {
		s.Slots = make(map[string]string)
	}

	r.client.Expire(ctx, r.key(userID), r.ttl)
	return &s, nil
}

// Put implements Store.
func (r *RedisStore) Put(ctx context.Context, userID string, s *Session) error {
	val, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userID), val, r.ttl).Err(); err != nil {
		return fmt.Errorf("session put: %w", err)
	}
	return nil
}

// Clear implements Store.
func (r *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}

// Close implements Store.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
