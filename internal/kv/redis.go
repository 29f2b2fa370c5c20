package kv

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// redisStore adapts a go-redis client to the Store contract.
type redisStore struct {
	r *redis.Client
}

// NewRedis connects a Store to the Redis instance at addr.
func NewRedis(addr string, db int) Store {
	return &redisStore{r: redis.NewClient(&redis.Options{Addr: addr, DB: db})}
}

// NewRedisClient wraps an existing client, mainly for tests.
func NewRedisClient(c *redis.Client) Store {
	return &redisStore{r: c}
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.r.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.r.Set(ctx, key, val, ttl).Err()
}

func (s *redisStore) SetNX(ctx context.Context, key string, val []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	return s.r.SetNX(ctx, key, val, ttl).Result()
}

func (s *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.r.Expire(ctx, key, ttl).Err()
}

func (s *redisStore) Del(ctx context.Context, key string) error {
	return s.r.Del(ctx, key).Err()
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.r.Ping(ctx).Err()
}
