package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/diogomassis/rinha-dispatch/internal/models"
)

var baseTime = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func processed(id, amount string, p models.ProcessorType, at time.Time) models.ProcessedPayment {
	payment := models.PendingPayment{
		CorrelationID: id,
		Amount:        decimal.RequireFromString(amount),
		RequestedAt:   at.Add(-time.Second),
	}
	return *models.NewProcessedPayment(payment, p, at)
}

func newRecorder(t *testing.T) (*RinhaRedisPersistenceService, func(time.Duration)) {
	t.Helper()
	mr, client := newTestRedis(t)
	return NewRinhaRedisPersistenceService(client, time.Hour, zerolog.Nop()), mr.FastForward
}

func mustRecord(t *testing.T, r *RinhaRedisPersistenceService, p models.ProcessedPayment) bool {
	t.Helper()
	ok, err := r.Record(context.Background(), p)
	if err != nil {
		t.Fatalf("record %s: %v", p.CorrelationID, err)
	}
	return ok
}

func TestSummaryCountersAfterOneRecord(t *testing.T) {
	r, _ := newRecorder(t)
	mustRecord(t, r, processed("abc", "100.00", models.ProcessorDefault, baseTime))

	s, err := r.Summary(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Default.TotalRequests != 1 || s.Default.TotalAmount.StringFixed(2) != "100.00" {
		t.Errorf("unexpected default totals %+v", s.Default)
	}
	if s.Fallback.TotalRequests != 0 || s.Fallback.TotalAmount.StringFixed(2) != "0.00" {
		t.Errorf("unexpected fallback totals %+v", s.Fallback)
	}
}

func TestRecordIsIdempotent(t *testing.T) {
	r, _ := newRecorder(t)
	p := processed("dup", "42.50", models.ProcessorFallback, baseTime)

	if !mustRecord(t, r, p) {
		t.Fatal("expected first record to succeed")
	}
	if mustRecord(t, r, p) {
		t.Error("expected second record to be rejected")
	}
	p.ProcessorType = models.ProcessorDefault
	if mustRecord(t, r, p) {
		t.Error("expected record on another processor to be rejected")
	}

	s, _ := r.Summary(context.Background(), nil, nil)
	if s.Fallback.TotalRequests != 1 || s.Fallback.TotalAmount.StringFixed(2) != "42.50" || s.Default.TotalRequests != 0 {
		t.Errorf("duplicate changed totals: %+v", s)
	}
	if n := r.client.ZCard(context.Background(), PaymentsLogKey).Val(); n != 1 {
		t.Errorf("expected one log entry, got %d", n)
	}
}

func TestRecordRejectsUnknownProcessor(t *testing.T) {
	r, _ := newRecorder(t)
	if _, err := r.Record(context.Background(), processed("x", "1.00", "other", baseTime)); err == nil {
		t.Error("expected an error for an unknown processor")
	}
}

func TestIsProcessedFollowsDedupTTL(t *testing.T) {
	r, fastForward := newRecorder(t)
	ctx := context.Background()

	if ok, _ := r.IsProcessed(ctx, "abc"); ok {
		t.Fatal("expected abc to be unprocessed")
	}
	mustRecord(t, r, processed("abc", "1.00", models.ProcessorDefault, baseTime))
	if ok, _ := r.IsProcessed(ctx, "abc"); !ok {
		t.Fatal("expected abc to be processed")
	}

	fastForward(2 * time.Hour)
	if ok, _ := r.IsProcessed(ctx, "abc"); ok {
		t.Error("expected the dedup key to expire")
	}
}

func TestSummaryWindowExcludesOutsideEntries(t *testing.T) {
	r, _ := newRecorder(t)
	mustRecord(t, r, processed("early", "10.00", models.ProcessorDefault, baseTime.Add(-time.Minute)))
	mustRecord(t, r, processed("inside", "20.00", models.ProcessorDefault, baseTime))
	mustRecord(t, r, processed("late", "30.00", models.ProcessorDefault, baseTime.Add(time.Minute)))

	from, to := baseTime.Add(-time.Second), baseTime.Add(time.Second)
	s, err := r.Summary(context.Background(), &from, &to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Default.TotalRequests != 1 || s.Default.TotalAmount.StringFixed(2) != "20.00" {
		t.Errorf("expected only the inside entry, got %+v", s.Default)
	}
}

func TestSummaryWindowBoundsAreInclusive(t *testing.T) {
	r, _ := newRecorder(t)
	at := baseTime.Add(123456789 * time.Nanosecond)
	mustRecord(t, r, processed("edge", "7.25", models.ProcessorFallback, at))

	s, err := r.Summary(context.Background(), &at, &at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Fallback.TotalRequests != 1 {
		t.Errorf("expected the entry on both bounds to count, got %+v", s.Fallback)
	}

	before := at.Add(-time.Nanosecond)
	s, _ = r.Summary(context.Background(), nil, &before)
	if s.Fallback.TotalRequests != 0 {
		t.Errorf("expected nothing before the entry, got %+v", s.Fallback)
	}

	after := at.Add(time.Nanosecond)
	s, _ = r.Summary(context.Background(), &after, nil)
	if s.Fallback.TotalRequests != 0 {
		t.Errorf("expected nothing after the entry, got %+v", s.Fallback)
	}
}

func TestSummaryPartitionsMatchCounters(t *testing.T) {
	r, _ := newRecorder(t)
	ctx := context.Background()
	amounts := []string{"0.10", "0.20", "19.99", "100.00", "3.33", "7.01"}
	for i := 0; i < 30; i++ {
		p := models.Processors[i%2]
		if i%5 == 0 {
			p = models.ProcessorFallback
		}
		mustRecord(t, r, processed(fmt.Sprintf("id-%d", i), amounts[i%len(amounts)], p, baseTime.Add(time.Duration(i)*time.Second)))
	}

	total, _ := r.Summary(ctx, nil, nil)
	mid := baseTime.Add(15 * time.Second)
	justAfter := mid.Add(time.Millisecond)
	first, _ := r.Summary(ctx, nil, &mid)
	second, _ := r.Summary(ctx, &justAfter, nil)

	merged := *first
	merged.Merge(*second)
	for _, p := range models.Processors {
		want, got := total.Item(p), merged.Item(p)
		if want.TotalRequests != got.TotalRequests || want.TotalAmount.StringFixed(2) != got.TotalAmount.StringFixed(2) {
			t.Errorf("%s: counters %+v differ from partitions %+v", p, *want, *got)
		}
	}
	if total.Default.TotalRequests+total.Fallback.TotalRequests != 30 {
		t.Errorf("expected 30 records, got %+v", total)
	}
}

func TestPurgeClearsEverything(t *testing.T) {
	r, _ := newRecorder(t)
	ctx := context.Background()
	mustRecord(t, r, processed("abc", "10.00", models.ProcessorDefault, baseTime))

	if err := r.Purge(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s, _ := r.Summary(ctx, nil, nil)
	if s.Default.TotalRequests != 0 || !s.Default.TotalAmount.IsZero() {
		t.Errorf("expected zero totals after purge, got %+v", s)
	}
	if ok, _ := r.IsProcessed(ctx, "abc"); ok {
		t.Error("expected dedup keys to be purged")
	}
	if !mustRecord(t, r, processed("abc", "10.00", models.ProcessorDefault, baseTime)) {
		t.Error("expected abc to be recordable again after purge")
	}
}
