package dto

import (
	"github.com/shopspring/decimal"

	"github.com/diogomassis/rinha-dispatch/internal/models"
)

type PaymentRequest struct {
	CorrelationID string          `json:"correlationId"`
	Amount        decimal.Decimal `json:"amount"`
}

type PaymentSummaryResponse struct {
	Default  PaymentSummaryItemResponse `json:"default"`
	Fallback PaymentSummaryItemResponse `json:"fallback"`
}

// PaymentSummaryItemResponse carries the amount as a two-decimal string.
type PaymentSummaryItemResponse struct {
	TotalRequests int64  `json:"totalRequests"`
	TotalAmount   string `json:"totalAmount"`
}

func NewPaymentSummaryResponse(summary models.PaymentSummary) PaymentSummaryResponse {
	return PaymentSummaryResponse{
		Default:  newItem(summary.Default),
		Fallback: newItem(summary.Fallback),
	}
}

func newItem(item models.PaymentSummaryItem) PaymentSummaryItemResponse {
	return PaymentSummaryItemResponse{
		TotalRequests: item.TotalRequests,
		TotalAmount:   item.TotalAmount.StringFixed(2),
	}
}

type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status     string                                          `json:"status"`
	Instance   string                                          `json:"instance"`
	Timestamp  string                                          `json:"timestamp"`
	GoVersion  string                                          `json:"goVersion"`
	Processors map[models.ProcessorType]models.ProcessorHealth `json:"processors"`
}
