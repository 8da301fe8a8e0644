package worker

import (
	"context"
	"errors"

	"github.com/diogomassis/rinha-dispatch/internal/models"
	"github.com/diogomassis/rinha-dispatch/internal/services/orchestrator"
)

type RinhaJobFunc func(ctx context.Context, payment models.PendingPayment) error

type Dispatcher interface {
	ExecutePayment(ctx context.Context, payment models.PendingPayment) (*models.ProcessedPayment, error)
}

// PaymentJob runs the dispatch protocol for one payment. Outcomes the
// orchestrator already logged are swallowed; an interrupted dispatch is
// returned so the worker can put the payment back.
func PaymentJob(dispatcher Dispatcher) RinhaJobFunc {
	return func(ctx context.Context, payment models.PendingPayment) error {
		_, err := dispatcher.ExecutePayment(ctx, payment)
		if errors.Is(err, orchestrator.ErrAlreadyProcessed) || errors.Is(err, orchestrator.ErrAllProcessorsFailed) {
			return nil
		}
		return err
	}
}
