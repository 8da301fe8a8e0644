package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/diogomassis/rinha-dispatch/internal/models"
	"github.com/diogomassis/rinha-dispatch/internal/services/processor"
)

var (
	ErrAllProcessorsFailed = errors.New("all payment processors failed")
	ErrAlreadyProcessed    = errors.New("payment already processed")
	ErrDispatchInterrupted = errors.New("dispatch interrupted")
)

type Chooser interface {
	ChooseNextService() models.ProcessorType
}

// Recorder is the outcome store. Record reports false for a correlationId
// that was already recorded.
type Recorder interface {
	IsProcessed(ctx context.Context, correlationID string) (bool, error)
	Record(ctx context.Context, payment models.ProcessedPayment) (bool, error)
}

type DeadLetterQueue interface {
	AddToDeadLetterQueue(ctx context.Context, payment models.PendingPayment) error
}

type Archiver interface {
	Save(ctx context.Context, payment models.ProcessedPayment) error
}

type Config struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

type RinhaPaymentOrchestrator struct {
	processors map[models.ProcessorType]processor.PaymentProcessor
	chooser    Chooser
	recorder   Recorder
	deadLetter DeadLetterQueue
	archiver   Archiver
	cfg        Config
	log        zerolog.Logger
	now        func() time.Time
}

func NewRinhaPaymentOrchestrator(chooser Chooser, recorder Recorder, cfg Config, log zerolog.Logger, processors ...processor.PaymentProcessor) *RinhaPaymentOrchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	byName := make(map[models.ProcessorType]processor.PaymentProcessor, len(processors))
	for _, p := range processors {
		byName[p.GetName()] = p
	}
	return &RinhaPaymentOrchestrator{
		processors: byName,
		chooser:    chooser,
		recorder:   recorder,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// WithDeadLetter keeps exhausted payments instead of dropping them.
func (o *RinhaPaymentOrchestrator) WithDeadLetter(queue DeadLetterQueue) *RinhaPaymentOrchestrator {
	o.deadLetter = queue
	return o
}

func (o *RinhaPaymentOrchestrator) WithArchiver(archiver Archiver) *RinhaPaymentOrchestrator {
	o.archiver = archiver
	return o
}

// ExecutePayment delivers one payment: up to MaxAttempts on the preferred
// processor with linear backoff, then a single attempt on the other one.
// Attempts never overlap.
func (o *RinhaPaymentOrchestrator) ExecutePayment(ctx context.Context, payment models.PendingPayment) (*models.ProcessedPayment, error) {
	log := o.log.With().Str("correlationId", payment.CorrelationID).Logger()

	processed, err := o.recorder.IsProcessed(ctx, payment.CorrelationID)
	if err != nil {
		log.Warn().Err(err).Msg("dedup check failed, dispatching anyway")
	} else if processed {
		log.Info().Msg("payment already processed, skipping")
		return nil, ErrAlreadyProcessed
	}

	preferred := o.chooser.ChooseNextService()
	plan := make([]models.ProcessorType, 0, o.cfg.MaxAttempts+1)
	for i := 0; i < o.cfg.MaxAttempts; i++ {
		plan = append(plan, preferred)
	}
	plan = append(plan, preferred.Other())

	for i, name := range plan {
		if i > 0 && i < o.cfg.MaxAttempts {
			if err := sleep(ctx, o.cfg.RetryBackoff*time.Duration(i)); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDispatchInterrupted, err)
			}
		}

		p, ok := o.processors[name]
		if !ok {
			continue
		}
		err := p.ProcessPayment(ctx, payment)
		if err == nil {
			return o.complete(ctx, log, payment, name), nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrDispatchInterrupted, ctx.Err())
		}
		log.Warn().Err(err).
			Str("processor", name.String()).
			Str("kind", processor.Classify(err)).
			Int("attempt", i+1).
			Msg("payment attempt failed")
	}

	log.Error().Str("preferred", preferred.String()).Msg("all processors failed, payment not delivered")
	if o.deadLetter != nil {
		if err := o.deadLetter.AddToDeadLetterQueue(ctx, payment); err != nil {
			log.Error().Err(err).Msg("failed to dead-letter payment, payment dropped")
		}
	}
	return nil, ErrAllProcessorsFailed
}

func (o *RinhaPaymentOrchestrator) complete(ctx context.Context, log zerolog.Logger, payment models.PendingPayment, name models.ProcessorType) *models.ProcessedPayment {
	result := models.NewProcessedPayment(payment, name, o.now())

	recorded, err := o.recorder.Record(ctx, *result)
	switch {
	case err != nil:
		log.Error().Err(err).
			Str("event", "reconciliation_gap").
			Str("processor", name.String()).
			Str("amount", payment.Amount.String()).
			Msg("payment delivered but not recorded")
	case !recorded:
		log.Info().Str("processor", name.String()).Msg("payment was already recorded")
	default:
		log.Debug().Str("processor", name.String()).Msg("payment processed")
	}

	if o.archiver != nil && err == nil && recorded {
		if err := o.archiver.Save(ctx, *result); err != nil {
			log.Warn().Err(err).Msg("failed to archive payment")
		}
	}
	return result
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
