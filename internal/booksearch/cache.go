package booksearch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores search results by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]Volume, bool, error)
	Set(ctx context.Context, key string, volumes []Volume, ttl time.Duration) error
}

// RedisCache keeps results as JSON strings with an expiry.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]Volume, bool, error) {
	data, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var volumes []Volume
	if err := json.Unmarshal(data, &volumes); err != nil {
		return nil, false, err
	}
	return volumes, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, volumes []Volume, ttl time.Duration) error {
	data, err := json.Marshal(volumes)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, key, data, ttl).Err()
}
