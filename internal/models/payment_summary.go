package models

import "github.com/shopspring/decimal"

type PaymentSummary struct {
	Default  PaymentSummaryItem `json:"default"`
	Fallback PaymentSummaryItem `json:"fallback"`
}

func NewPaymentSummary(defaultItem, fallbackItem PaymentSummaryItem) *PaymentSummary {
	return &PaymentSummary{
		Default:  defaultItem,
		Fallback: fallbackItem,
	}
}

type PaymentSummaryItem struct {
	TotalRequests int64           `json:"totalRequests"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

func NewPaymentSummaryItem(totalRequests int64, totalAmount decimal.Decimal) *PaymentSummaryItem {
	return &PaymentSummaryItem{
		TotalRequests: totalRequests,
		TotalAmount:   totalAmount,
	}
}

// Item returns the bucket for the given processor, nil for unknown names.
func (s *PaymentSummary) Item(p ProcessorType) *PaymentSummaryItem {
	switch p {
	case ProcessorDefault:
		return &s.Default
	case ProcessorFallback:
		return &s.Fallback
	}
	return nil
}

// Add counts one payment against p. Unknown processors are ignored.
func (s *PaymentSummary) Add(p ProcessorType, amount decimal.Decimal) {
	item := s.Item(p)
	if item == nil {
		return
	}
	item.TotalRequests++
	item.TotalAmount = item.TotalAmount.Add(amount)
}

// Merge adds other's totals into s.
func (s *PaymentSummary) Merge(other PaymentSummary) {
	s.Default.TotalRequests += other.Default.TotalRequests
	s.Default.TotalAmount = s.Default.TotalAmount.Add(other.Default.TotalAmount)
	s.Fallback.TotalRequests += other.Fallback.TotalRequests
	s.Fallback.TotalAmount = s.Fallback.TotalAmount.Add(other.Fallback.TotalAmount)
}
