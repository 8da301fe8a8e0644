package dto

import (
	"testing"

	json "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/diogomassis/rinha-dispatch/internal/models"
)

func TestSummaryResponseFormatsAmounts(t *testing.T) {
	summary := models.NewPaymentSummary(
		*models.NewPaymentSummaryItem(1, decimal.RequireFromString("100")),
		*models.NewPaymentSummaryItem(0, decimal.Zero),
	)

	data, err := json.Marshal(NewPaymentSummaryResponse(*summary))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"default":{"totalRequests":1,"totalAmount":"100.00"},"fallback":{"totalRequests":0,"totalAmount":"0.00"}}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}
}

func TestPaymentRequestAcceptsNumericAmount(t *testing.T) {
	var req PaymentRequest
	if err := json.Unmarshal([]byte(`{"correlationId":"abc","amount":19.90}`), &req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.CorrelationID != "abc" || req.Amount.StringFixed(2) != "19.90" {
		t.Errorf("unexpected request %+v", req)
	}
}
