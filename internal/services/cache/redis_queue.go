package cache

import (
	"context"
	"errors"
	"fmt"

	json "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/diogomassis/rinha-dispatch/internal/env"
	"github.com/diogomassis/rinha-dispatch/internal/models"
)

const (
	QueueKey         = "payments:queue"
	PriorityQueueKey = "payments:priority_queue"
	DeadLetterKey    = "payments:dead_letter"
)

var (
	ErrQueueEmpty       = errors.New("queue is empty")
	ErrMalformedPayload = errors.New("malformed queue entry")
)

// RinhaRedisQueueService is the shared intake queue. In fifo mode entries
// are pushed on the left and consumed from the right; in priority mode the
// largest amount is consumed first.
type RinhaRedisQueueService struct {
	client   *redis.Client
	ordering string
}

func NewRinhaRedisQueueService(client *redis.Client, ordering string) *RinhaRedisQueueService {
	if ordering != env.QueueOrderingPriority {
		ordering = env.QueueOrderingFIFO
	}
	return &RinhaRedisQueueService{
		client:   client,
		ordering: ordering,
	}
}

func (r *RinhaRedisQueueService) Ordering() string {
	return r.ordering
}

func (r *RinhaRedisQueueService) Enqueue(ctx context.Context, payment models.PendingPayment) error {
	data, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("[cache] failed to marshal pending payment: %w", err)
	}

	if r.ordering == env.QueueOrderingPriority {
		err = r.client.ZAdd(ctx, PriorityQueueKey, redis.Z{
			Score:  payment.Amount.InexactFloat64(),
			Member: string(data),
		}).Err()
	} else {
		err = r.client.LPush(ctx, QueueKey, data).Err()
	}
	if err != nil {
		return fmt.Errorf("[cache] failed to add to queue: %w", err)
	}
	return nil
}

// Pop removes the next entry without blocking. It returns ErrQueueEmpty when
// there is nothing to consume.
func (r *RinhaRedisQueueService) Pop(ctx context.Context) (*models.PendingPayment, error) {
	var raw string
	if r.ordering == env.QueueOrderingPriority {
		result, err := r.client.ZPopMax(ctx, PriorityQueueKey, 1).Result()
		if err != nil {
			return nil, fmt.Errorf("[cache] failed to pop from queue: %w", err)
		}
		if len(result) == 0 {
			return nil, ErrQueueEmpty
		}
		member, ok := result[0].Member.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected member type %T", ErrMalformedPayload, result[0].Member)
		}
		raw = member
	} else {
		result, err := r.client.RPop(ctx, QueueKey).Result()
		if errors.Is(err, redis.Nil) {
			return nil, ErrQueueEmpty
		}
		if err != nil {
			return nil, fmt.Errorf("[cache] failed to pop from queue: %w", err)
		}
		raw = result
	}
	return decodePendingPayment(raw)
}

// Requeue puts a popped entry back at the consuming end so it is the next
// one served.
func (r *RinhaRedisQueueService) Requeue(ctx context.Context, payment models.PendingPayment) error {
	if r.ordering == env.QueueOrderingPriority {
		return r.Enqueue(ctx, payment)
	}

	data, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("[cache] failed to marshal pending payment: %w", err)
	}
	if err := r.client.RPush(ctx, QueueKey, data).Err(); err != nil {
		return fmt.Errorf("[cache] failed to requeue payment: %w", err)
	}
	return nil
}

func (r *RinhaRedisQueueService) Len(ctx context.Context) (int64, error) {
	if r.ordering == env.QueueOrderingPriority {
		return r.client.ZCard(ctx, PriorityQueueKey).Result()
	}
	return r.client.LLen(ctx, QueueKey).Result()
}

func (r *RinhaRedisQueueService) AddToDeadLetterQueue(ctx context.Context, payment models.PendingPayment) error {
	data, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("[cache] failed to marshal payment for DLQ: %w", err)
	}
	if err := r.client.LPush(ctx, DeadLetterKey, data).Err(); err != nil {
		return fmt.Errorf("[cache] failed to add to DLQ: %w", err)
	}
	return nil
}

func (r *RinhaRedisQueueService) PopDeadLetter(ctx context.Context) (*models.PendingPayment, error) {
	result, err := r.client.RPop(ctx, DeadLetterKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("[cache] failed to pop from DLQ: %w", err)
	}
	return decodePendingPayment(result)
}

func (r *RinhaRedisQueueService) Purge(ctx context.Context) error {
	if err := r.client.Del(ctx, QueueKey, PriorityQueueKey, DeadLetterKey).Err(); err != nil {
		return fmt.Errorf("[cache] failed to purge queues: %w", err)
	}
	return nil
}

func decodePendingPayment(raw string) (*models.PendingPayment, error) {
	var payment models.PendingPayment
	if err := json.Unmarshal([]byte(raw), &payment); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payment.CorrelationID == "" {
		return nil, fmt.Errorf("%w: missing correlationId", ErrMalformedPayload)
	}
	return &payment, nil
}
