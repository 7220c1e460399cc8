package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// RedisL2 stores msgpack-encoded vectors in Redis.
type RedisL2 struct {
	client redis.Cmdable
	prefix string
}

// NewRedisL2 creates a Redis cache tier. Keys are prefixed with prefix.
func NewRedisL2(client redis.Cmdable, prefix string) *RedisL2 {
	if prefix == "" {
		prefix = "softreason:emb:"
	}
	return &RedisL2{client: client, prefix: prefix}
}

// Get implements L2.
func (r *RedisL2) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var vec []float32
	if err := msgpack.Unmarshal(data, &vec); err != nil {
		return nil, false, fmt.Errorf("decode vector: %w", err)
	}
	return vec, true, nil
}

// Set implements L2.
func (r *RedisL2) Set(ctx context.Context, key string, vec []float32, ttl time.Duration) error {
	data, err := msgpack.Marshal(vec)
	if err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
