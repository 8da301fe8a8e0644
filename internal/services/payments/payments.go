package payments

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/diogomassis/rinha-dispatch/internal/dto"
	"github.com/diogomassis/rinha-dispatch/internal/models"
)

type Queue interface {
	Enqueue(ctx context.Context, payment models.PendingPayment) error
	Purge(ctx context.Context) error
}

type SummaryStore interface {
	Summary(ctx context.Context, from, to *time.Time) (*models.PaymentSummary, error)
	Purge(ctx context.Context) error
}

// Service is what the front door talks to: intake, summary and purge.
type Service struct {
	queue Queue
	store SummaryStore
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(queue Queue, store SummaryStore, log zerolog.Logger) *Service {
	return &Service{
		queue: queue,
		store: store,
		log:   log,
		now:   time.Now,
	}
}

func (s *Service) Enqueue(ctx context.Context, correlationID string, amount decimal.Decimal) (*models.PendingPayment, error) {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return nil, &Error{Kind: KindInvalidRequest, Message: "correlationId is required"}
	}
	if !amount.IsPositive() {
		return nil, &Error{Kind: KindInvalidRequest, Message: "amount must be positive"}
	}

	payment := models.NewPendingPayment(correlationID, amount, s.now())
	if err := s.queue.Enqueue(ctx, *payment); err != nil {
		s.log.Error().Err(err).Str("correlationId", correlationID).Msg("failed to enqueue payment")
		return nil, &Error{Kind: KindStoreUnavailable, Message: "could not enqueue payment", Err: err}
	}
	return payment, nil
}

// GetSummary parses the optional ISO-8601 bounds before touching the store.
func (s *Service) GetSummary(ctx context.Context, from, to string) (*dto.PaymentSummaryResponse, error) {
	fromTime, err := parseBound("from", from)
	if err != nil {
		return nil, err
	}
	toTime, err := parseBound("to", to)
	if err != nil {
		return nil, err
	}
	if fromTime != nil && toTime != nil && fromTime.After(*toTime) {
		return nil, &Error{Kind: KindInvalidTimeRange, Message: "from must not be after to"}
	}

	summary, err := s.store.Summary(ctx, fromTime, toTime)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read payment summary")
		return nil, &Error{Kind: KindStoreUnavailable, Message: "could not read payment summary", Err: err}
	}
	response := dto.NewPaymentSummaryResponse(*summary)
	return &response, nil
}

func (s *Service) Purge(ctx context.Context) error {
	if err := s.store.Purge(ctx); err != nil {
		return &Error{Kind: KindStoreUnavailable, Message: "could not purge payments", Err: err}
	}
	if err := s.queue.Purge(ctx); err != nil {
		return &Error{Kind: KindStoreUnavailable, Message: "could not purge queues", Err: err}
	}
	s.log.Warn().Msg("payments purged")
	return nil
}

func parseBound(name, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, &Error{Kind: KindInvalidTimeRange, Message: "invalid " + name + " timestamp", Err: err}
	}
	t = t.UTC()
	return &t, nil
}
