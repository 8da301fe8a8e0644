package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/diogomassis/rinha-dispatch/internal/models"
	"github.com/diogomassis/rinha-dispatch/internal/services/cache"
	"github.com/diogomassis/rinha-dispatch/internal/services/orchestrator"
)

const requeueTimeout = 2 * time.Second

var ErrShutdownTimeout = errors.New("workers did not finish within the grace period")

type Queue interface {
	Pop(ctx context.Context) (*models.PendingPayment, error)
	Requeue(ctx context.Context, payment models.PendingPayment) error
}

// RinhaWorker drains the intake queue with one feeder goroutine and a fixed
// set of workers. The feeder hands payments over an unbuffered channel, so
// a busy pool stops it from popping more.
type RinhaWorker struct {
	numWorkers int
	queue      Queue
	jobFunc    RinhaJobFunc
	idleSleep  time.Duration
	log        zerolog.Logger

	jobs       chan models.PendingPayment
	waitGroup  *sync.WaitGroup
	feederDone chan struct{}
	feedCancel context.CancelFunc
	workCancel context.CancelFunc
}

func (rw *RinhaWorker) Start(ctx context.Context) {
	rw.log.Info().Int("workers", rw.numWorkers).Msg("starting worker pool")

	var feedCtx, workCtx context.Context
	feedCtx, rw.feedCancel = context.WithCancel(ctx)
	workCtx, rw.workCancel = context.WithCancel(context.WithoutCancel(ctx))

	rw.jobs = make(chan models.PendingPayment)
	rw.feederDone = make(chan struct{})
	for i := 1; i <= rw.numWorkers; i++ {
		rw.waitGroup.Add(1)
		go rw.worker(workCtx, i)
	}
	go rw.feed(feedCtx)
}

func (rw *RinhaWorker) feed(ctx context.Context) {
	defer close(rw.feederDone)
	defer close(rw.jobs)

	for ctx.Err() == nil {
		payment, err := rw.queue.Pop(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return
			case errors.Is(err, cache.ErrQueueEmpty):
			case errors.Is(err, cache.ErrMalformedPayload):
				rw.log.Error().Err(err).Msg("discarding malformed queue entry")
				continue
			default:
				rw.log.Error().Err(err).Msg("failed to pop from queue")
			}
			rw.pause(ctx)
			continue
		}

		select {
		case rw.jobs <- *payment:
		case <-ctx.Done():
			rw.requeue(*payment)
			return
		}
	}
}

func (rw *RinhaWorker) pause(ctx context.Context) {
	timer := time.NewTimer(rw.idleSleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (rw *RinhaWorker) worker(ctx context.Context, id int) {
	defer rw.waitGroup.Done()
	rw.log.Debug().Int("worker", id).Msg("worker waiting for jobs")

	for payment := range rw.jobs {
		err := rw.jobFunc(ctx, payment)
		if err == nil {
			continue
		}
		if errors.Is(err, orchestrator.ErrDispatchInterrupted) {
			rw.requeue(payment)
			continue
		}
		rw.log.Error().Err(err).Int("worker", id).Str("correlationId", payment.CorrelationID).Msg("job failed")
	}
	rw.log.Debug().Int("worker", id).Msg("worker exiting")
}

func (rw *RinhaWorker) requeue(payment models.PendingPayment) {
	ctx, cancel := context.WithTimeout(context.Background(), requeueTimeout)
	defer cancel()
	if err := rw.queue.Requeue(ctx, payment); err != nil {
		rw.log.Error().Err(err).Str("correlationId", payment.CorrelationID).Msg("failed to requeue payment, payment lost")
		return
	}
	rw.log.Info().Str("correlationId", payment.CorrelationID).Msg("payment returned to queue")
}

// Stop stops dequeuing, lets in-flight payments finish for up to grace and
// then cancels whatever is still running.
func (rw *RinhaWorker) Stop(grace time.Duration) error {
	if rw.feedCancel == nil {
		return nil
	}
	rw.log.Info().Msg("shutting down the worker pool")
	rw.feedCancel()
	<-rw.feederDone

	done := make(chan struct{})
	go func() {
		rw.waitGroup.Wait()
		close(done)
	}()

	select {
	case <-done:
		rw.workCancel()
		rw.log.Info().Msg("all workers have been safely shut down")
		return nil
	case <-time.After(grace):
		rw.workCancel()
		<-done
		rw.log.Warn().Dur("grace", grace).Msg("workers cancelled after grace period")
		return ErrShutdownTimeout
	}
}
