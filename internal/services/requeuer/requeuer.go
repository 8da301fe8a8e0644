package requeuer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/diogomassis/rinha-dispatch/internal/models"
	"github.com/diogomassis/rinha-dispatch/internal/services/cache"
)

const defaultBatchSize = 100

type DeadLetterSource interface {
	PopDeadLetter(ctx context.Context) (*models.PendingPayment, error)
	Enqueue(ctx context.Context, payment models.PendingPayment) error
	AddToDeadLetterQueue(ctx context.Context, payment models.PendingPayment) error
}

// RinhaRequeuer periodically moves dead-lettered payments back to the
// intake queue so they get another round of dispatch.
type RinhaRequeuer struct {
	queue     DeadLetterSource
	interval  time.Duration
	batchSize int
	log       zerolog.Logger

	started  atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewRinhaRequeuer(queue DeadLetterSource, interval time.Duration, log zerolog.Logger) *RinhaRequeuer {
	return &RinhaRequeuer{
		queue:     queue,
		interval:  interval,
		batchSize: defaultBatchSize,
		log:       log,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (r *RinhaRequeuer) Start() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	r.log.Info().Dur("interval", r.interval).Msg("starting requeuer for dead letter queue")
	ticker := time.NewTicker(r.interval)

	go func() {
		defer close(r.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.RequeueBatch(context.Background())
			case <-r.stopChan:
				r.log.Info().Msg("requeuer stopped")
				return
			}
		}
	}()
}

func (r *RinhaRequeuer) Stop() {
	r.stopOnce.Do(func() {
		r.log.Info().Msg("shutting down the requeuer")
		close(r.stopChan)
	})
	if r.started.Load() {
		<-r.done
	}
}

// RequeueBatch moves up to one batch of dead letters and returns how many
// were moved.
func (r *RinhaRequeuer) RequeueBatch(ctx context.Context) int {
	moved := 0
	for moved < r.batchSize {
		payment, err := r.queue.PopDeadLetter(ctx)
		if errors.Is(err, cache.ErrQueueEmpty) {
			break
		}
		if err != nil {
			r.log.Error().Err(err).Msg("failed to read dead letter queue")
			if errors.Is(err, cache.ErrMalformedPayload) {
				continue
			}
			break
		}
		if err := r.queue.Enqueue(ctx, *payment); err != nil {
			r.log.Error().Err(err).Str("correlationId", payment.CorrelationID).Msg("failed to requeue dead letter")
			if err := r.queue.AddToDeadLetterQueue(ctx, *payment); err != nil {
				r.log.Error().Err(err).Str("correlationId", payment.CorrelationID).Msg("dead letter lost")
			}
			break
		}
		moved++
	}
	if moved > 0 {
		r.log.Info().Int("count", moved).Msg("requeued dead letters")
	}
	return moved
}
