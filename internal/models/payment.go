package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type ProcessorType string

const (
	ProcessorDefault  ProcessorType = "default"
	ProcessorFallback ProcessorType = "fallback"
)

// Processors lists every processor in preference order.
var Processors = [...]ProcessorType{ProcessorDefault, ProcessorFallback}

func (p ProcessorType) Other() ProcessorType {
	if p == ProcessorFallback {
		return ProcessorDefault
	}
	return ProcessorFallback
}

func (p ProcessorType) Valid() bool {
	return p == ProcessorDefault || p == ProcessorFallback
}

func (p ProcessorType) String() string {
	return string(p)
}

// ProcessedPayment is the authoritative record of a delivery confirmed by a processor.
type ProcessedPayment struct {
	CorrelationID string          `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
	ProcessorType ProcessorType   `json:"processor"`
	RequestedAt   time.Time       `json:"requestedAt"`
	ProcessedAt   time.Time       `json:"processedAt"`
}

func NewProcessedPayment(payment PendingPayment, processorType ProcessorType, processedAt time.Time) *ProcessedPayment {
	return &ProcessedPayment{
		CorrelationID: payment.CorrelationID,
		Amount:        payment.Amount,
		ProcessorType: processorType,
		RequestedAt:   payment.RequestedAt,
		ProcessedAt:   processedAt.UTC(),
	}
}
