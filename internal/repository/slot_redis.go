package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisSlotRepo keeps history slots as plain Redis string keys with no expiry.
type RedisSlotRepo struct {
	client *redis.Client
}

func NewRedisSlotRepo(client *redis.Client) *RedisSlotRepo {
	return &RedisSlotRepo{client: client}
}

func (r *RedisSlotRepo) Read(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisSlotRepo) Write(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisSlotRepo) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
