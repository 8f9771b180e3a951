package kv

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps metadata keys in Redis without expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed key-text store.
func NewRedisStore(addr, password string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// Get resolves a key to its stored text.
func (s *RedisStore) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set writes a key -> text mapping.
func (s *RedisStore) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.client.Set(ctx, key, value, 0).Err()
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *RedisStore) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}
