package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestProcessorTypeOther(t *testing.T) {
	if ProcessorDefault.Other() != ProcessorFallback {
		t.Errorf("expected fallback, got %s", ProcessorDefault.Other())
	}
	if ProcessorFallback.Other() != ProcessorDefault {
		t.Errorf("expected default, got %s", ProcessorFallback.Other())
	}
	if ProcessorType("other").Valid() {
		t.Error("unknown processor must not be valid")
	}
}

func TestPaymentSummaryAddAndMerge(t *testing.T) {
	var a PaymentSummary
	a.Add(ProcessorDefault, decimal.RequireFromString("10.10"))
	a.Add(ProcessorDefault, decimal.RequireFromString("0.20"))
	a.Add(ProcessorType("bogus"), decimal.RequireFromString("99"))

	var b PaymentSummary
	b.Add(ProcessorFallback, decimal.RequireFromString("5"))
	a.Merge(b)

	if a.Default.TotalRequests != 2 || a.Default.TotalAmount.StringFixed(2) != "10.30" {
		t.Errorf("unexpected default bucket: %+v", a.Default)
	}
	if a.Fallback.TotalRequests != 1 || a.Fallback.TotalAmount.StringFixed(2) != "5.00" {
		t.Errorf("unexpected fallback bucket: %+v", a.Fallback)
	}
}

func TestAssumeFailing(t *testing.T) {
	h := AssumeFailing()
	if !h.Failing || h.MinResponseTime != UnknownMinResponseTime || h.LastCheckedAt != nil {
		t.Errorf("unexpected default health: %+v", h)
	}
}
