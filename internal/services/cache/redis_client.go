package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/diogomassis/rinha-dispatch/internal/env"
)

type RinhaRedisClient struct {
	client *redis.Client
}

func NewRinhaRedisClient(cfg *env.EnvironmentVariables) *RinhaRedisClient {
	return &RinhaRedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     "",
			DB:           0,
			PoolSize:     cfg.RedisPoolSize,
			MinIdleConns: 10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolTimeout:  4 * time.Second,
		}),
	}
}

// WrapRinhaRedisClient adopts an existing client, mostly for tests.
func WrapRinhaRedisClient(client *redis.Client) *RinhaRedisClient {
	return &RinhaRedisClient{client: client}
}

func (r *RinhaRedisClient) Client() *redis.Client {
	return r.client
}

func (r *RinhaRedisClient) Ping(ctx context.Context) error {
	_, err := r.client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("[cache] failed to ping Redis: %w", err)
	}
	return nil
}

func (r *RinhaRedisClient) Close() error {
	err := r.client.Close()
	if err != nil {
		return fmt.Errorf("[cache] failed to close Redis connection: %w", err)
	}
	return nil
}
