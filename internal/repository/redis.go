package repository

import (
	"context"
	"fmt"
	"time"

	"labsched/internal/config"

	"github.com/redis/go-redis/v9"
)

type RedisScheduleCache struct {
	client *redis.Client
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisScheduleCache(client *redis.Client) *RedisScheduleCache {
	return &RedisScheduleCache{client: client}
}

func scheduleKey(labID int64, day string) string {
	return fmt.Sprintf("schedule:%d:%s", labID, day)
}

func (r *RedisScheduleCache) GetSchedule(ctx context.Context, labID int64, day string) ([]byte, bool, error) {
	if r.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, scheduleKey(labID, day)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get schedule from redis: %w", err)
	}
	return val, true, nil
}

func (r *RedisScheduleCache) SetSchedule(ctx context.Context, labID int64, day string, payload []byte, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Set(ctx, scheduleKey(labID, day), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set schedule in redis: %w", err)
	}
	return nil
}

func (r *RedisScheduleCache) InvalidateSchedule(ctx context.Context, labID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	iter := r.client.Scan(ctx, 0, fmt.Sprintf("schedule:%d:*", labID), 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete schedule key from redis: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan schedule keys: %w", err)
	}
	return nil
}

func (r *RedisScheduleCache) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("rate_limit:%d", userID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
