package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the shared key-value store backing distributed mutexes.
// Implementations must make SetIfAbsent and CompareAndDelete atomic.
type Store interface {
	// SetIfAbsent stores token under key with an expiry iff the key is
	// absent. Returns true when the key was set.
	SetIfAbsent(ctx context.Context, key, token string, ttl time.Duration) (bool, error)

	// Get returns the stored token, or "" if the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// CompareAndDelete deletes key iff it currently holds token.
	// Returns true when the key was deleted.
	CompareAndDelete(ctx context.Context, key, token string) (bool, error)

	// Set unconditionally rewrites key with token and a new expiry.
	Set(ctx context.Context, key, token string, ttl time.Duration) error
}

// compareAndDeleteScript deletes the key only while it still holds the
// caller's token, so an expired-and-reacquired lock is never released
// by the previous holder.
var compareAndDeleteScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisStore implements Store on a shared Redis instance. Suitable for
// distributed deployments where multiple collector processes need to
// serialize per-tenant work.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore creates a store on an existing Redis client
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "lock:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// SetIfAbsent implements Store using SETNX with TTL in one atomic call
func (s *RedisStore) SetIfAbsent(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock key: %w", err)
	}
	return ok, nil
}

// Get implements Store
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	token, err := s.client.Get(ctx, s.keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read lock key: %w", err)
	}
	return token, nil
}

// CompareAndDelete implements Store via a Lua script
func (s *RedisStore) CompareAndDelete(ctx context.Context, key, token string) (bool, error) {
	res, err := compareAndDeleteScript.Run(ctx, s.client, []string{s.keyPrefix + key}, token).Int()
	if err != nil {
		return false, fmt.Errorf("failed to release lock key: %w", err)
	}
	return res == 1, nil
}

// Set implements Store
func (s *RedisStore) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, token, ttl).Err(); err != nil {
		return fmt.Errorf("failed to refresh lock key: %w", err)
	}
	return nil
}
