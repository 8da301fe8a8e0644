package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/diogomassis/rinha-dispatch/internal/models"
)

type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PaymentPersistenceService archives processed payments in Postgres. Redis
// stays the source of truth for the summary; the archive is for audits.
type PaymentPersistenceService struct {
	db DB
}

func NewPaymentPersistenceService(db DB) *PaymentPersistenceService {
	return &PaymentPersistenceService{
		db: db,
	}
}

func (pps *PaymentPersistenceService) Save(ctx context.Context, payment models.ProcessedPayment) error {
	query := `
		INSERT INTO payments (correlation_id, amount, processor, requested_at, processed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (correlation_id) DO NOTHING
	`
	arguments := []any{
		payment.CorrelationID,
		payment.Amount.StringFixed(2),
		payment.ProcessorType.String(),
		payment.RequestedAt,
		payment.ProcessedAt,
	}
	if _, err := pps.db.Exec(ctx, query, arguments...); err != nil {
		return fmt.Errorf("[persistence] failed to archive payment %s: %w", payment.CorrelationID, err)
	}
	return nil
}

// Summary aggregates the archive between inclusive, optional bounds.
func (pps *PaymentPersistenceService) Summary(ctx context.Context, from, to *time.Time) (*models.PaymentSummary, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(amount), 0)::text
		FROM payments
		WHERE processor = $1
		  AND ($2::timestamptz IS NULL OR processed_at >= $2)
		  AND ($3::timestamptz IS NULL OR processed_at <= $3)
	`
	summary := models.NewPaymentSummary(models.PaymentSummaryItem{}, models.PaymentSummaryItem{})
	for _, p := range models.Processors {
		var (
			count  int64
			amount string
		)
		if err := pps.db.QueryRow(ctx, query, p.String(), from, to).Scan(&count, &amount); err != nil {
			return nil, fmt.Errorf("[persistence] failed to summarize %s payments: %w", p, err)
		}
		total, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("[persistence] invalid amount %q: %w", amount, err)
		}
		*summary.Item(p) = *models.NewPaymentSummaryItem(count, total)
	}
	return summary, nil
}

func (pps *PaymentPersistenceService) Purge(ctx context.Context) error {
	if _, err := pps.db.Exec(ctx, `DELETE FROM payments`); err != nil {
		return fmt.Errorf("[persistence] failed to purge archive: %w", err)
	}
	return nil
}
