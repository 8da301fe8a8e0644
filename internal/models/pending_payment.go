package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingPayment is a payment accepted at intake and waiting in the queue.
type PendingPayment struct {
	CorrelationID string          `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
	RequestedAt   time.Time       `json:"requestedAt"`
	EnqueuedAt    time.Time       `json:"enqueuedAt"`
}

func NewPendingPayment(correlationID string, amount decimal.Decimal, now time.Time) *PendingPayment {
	now = now.UTC()
	return &PendingPayment{
		CorrelationID: correlationID,
		Amount:        amount,
		RequestedAt:   now,
		EnqueuedAt:    now,
	}
}

// ProcessorPaymentRequest is the body sent to POST /payments on a processor.
type ProcessorPaymentRequest struct {
	CorrelationID string          `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
	RequestedAt   time.Time       `json:"requestedAt"`
}

func (p PendingPayment) ProcessorRequest() ProcessorPaymentRequest {
	return ProcessorPaymentRequest{
		CorrelationID: p.CorrelationID,
		Amount:        p.Amount,
		RequestedAt:   p.RequestedAt,
	}
}
