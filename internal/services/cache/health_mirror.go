package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/diogomassis/rinha-dispatch/internal/models"
)

const HealthStatusKey = "health_checker:status"

// HealthMirror shares health records with other instances through a Redis
// hash. The hash expires when no instance refreshes it.
type HealthMirror struct {
	client *redis.Client
	ttl    time.Duration
}

func NewHealthMirror(client *redis.Client, ttl time.Duration) *HealthMirror {
	return &HealthMirror{
		client: client,
		ttl:    ttl,
	}
}

func (m *HealthMirror) Publish(ctx context.Context, p models.ProcessorType, h models.ProcessorHealth) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("[cache] failed to marshal health status: %w", err)
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, HealthStatusKey, p.String(), data)
		pipe.Expire(ctx, HealthStatusKey, m.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("[cache] failed to publish health status: %w", err)
	}
	return nil
}

// Get returns the mirrored record for p, or the assume-failing default when
// nothing was published recently.
func (m *HealthMirror) Get(ctx context.Context, p models.ProcessorType) (models.ProcessorHealth, error) {
	data, err := m.client.HGet(ctx, HealthStatusKey, p.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.AssumeFailing(), nil
	}
	if err != nil {
		return models.AssumeFailing(), fmt.Errorf("[cache] failed to read health status: %w", err)
	}

	var h models.ProcessorHealth
	if err := json.Unmarshal(data, &h); err != nil {
		return models.AssumeFailing(), fmt.Errorf("[cache] failed to decode health status: %w", err)
	}
	return h, nil
}
