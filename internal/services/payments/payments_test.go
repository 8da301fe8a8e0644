package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/diogomassis/rinha-dispatch/internal/env"
	"github.com/diogomassis/rinha-dispatch/internal/models"
	"github.com/diogomassis/rinha-dispatch/internal/services/cache"
)

type fixture struct {
	mr       *miniredis.Miniredis
	queue    *cache.RinhaRedisQueueService
	recorder *cache.RinhaRedisPersistenceService
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		mr:       mr,
		queue:    cache.NewRinhaRedisQueueService(client, env.QueueOrderingFIFO),
		recorder: cache.NewRinhaRedisPersistenceService(client, time.Hour, zerolog.Nop()),
	}
	f.service = NewService(f.queue, f.recorder, zerolog.Nop())
	return f
}

func kindOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func TestEnqueue(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	f.service.now = func() time.Time { return now }

	p, err := f.service.Enqueue(context.Background(), "abc-1", decimal.RequireFromString("100.00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.RequestedAt.Equal(now) || !p.EnqueuedAt.Equal(now) {
		t.Errorf("expected timestamps at %s, got %+v", now, p)
	}

	queued, err := f.queue.Pop(context.Background())
	if err != nil || queued.CorrelationID != "abc-1" {
		t.Fatalf("expected abc-1 queued, got %v %v", queued, err)
	}
}

func TestEnqueueValidates(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		id     string
		amount decimal.Decimal
	}{
		{"missing id", "  ", decimal.NewFromInt(1)},
		{"zero amount", "a", decimal.Zero},
		{"negative amount", "a", decimal.NewFromInt(-5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Enqueue(context.Background(), tt.id, tt.amount)
			if kindOf(err) != KindInvalidRequest {
				t.Errorf("expected invalid_request, got %v", err)
			}
		})
	}
	if n, _ := f.queue.Len(context.Background()); n != 0 {
		t.Errorf("invalid payments must not be queued, got %d", n)
	}
}

func TestEnqueueStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.mr.Close()

	_, err := f.service.Enqueue(context.Background(), "abc", decimal.NewFromInt(1))
	if kindOf(err) != KindStoreUnavailable {
		t.Errorf("expected store_unavailable, got %v", err)
	}
}

func record(t *testing.T, f *fixture, id, amount string, p models.ProcessorType, at time.Time) {
	t.Helper()
	pending := models.PendingPayment{CorrelationID: id, Amount: decimal.RequireFromString(amount), RequestedAt: at}
	if _, err := f.recorder.Record(context.Background(), *models.NewProcessedPayment(pending, p, at)); err != nil {
		t.Fatalf("record: %v", err)
	}
}

func TestGetSummaryWindow(t *testing.T) {
	f := newFixture(t)
	record(t, f, "in-1", "10.00", models.ProcessorDefault, time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC))
	record(t, f, "in-2", "5.50", models.ProcessorFallback, time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC))
	record(t, f, "out", "99.00", models.ProcessorDefault, time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC))

	s, err := f.service.GetSummary(context.Background(), "2025-01-01T00:00:00Z", "2025-01-02T00:00:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Default.TotalRequests != 1 || s.Default.TotalAmount != "10.00" {
		t.Errorf("unexpected default %+v", s.Default)
	}
	if s.Fallback.TotalRequests != 1 || s.Fallback.TotalAmount != "5.50" {
		t.Errorf("unexpected fallback %+v", s.Fallback)
	}

	all, err := f.service.GetSummary(context.Background(), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if all.Default.TotalRequests != 2 || all.Default.TotalAmount != "109.00" {
		t.Errorf("unexpected running totals %+v", all.Default)
	}
}

func TestGetSummaryRejectsMalformedBounds(t *testing.T) {
	f := newFixture(t)
	record(t, f, "a", "10.00", models.ProcessorDefault, time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC))
	before := f.mr.Dump()

	tests := []struct{ from, to string }{
		{"yesterday", ""},
		{"", "2025-13-01T00:00:00Z"},
		{"2025-01-02T00:00:00Z", "2025-01-01T00:00:00Z"},
	}
	for _, tt := range tests {
		if _, err := f.service.GetSummary(context.Background(), tt.from, tt.to); kindOf(err) != KindInvalidTimeRange {
			t.Errorf("from=%q to=%q: expected invalid_time_range, got %v", tt.from, tt.to, err)
		}
	}
	if after := f.mr.Dump(); after != before {
		t.Error("a rejected summary changed the store")
	}
}

func TestPurge(t *testing.T) {
	f := newFixture(t)
	record(t, f, "a", "10.00", models.ProcessorDefault, time.Now())
	_, _ = f.service.Enqueue(context.Background(), "b", decimal.NewFromInt(1))

	if err := f.service.Purge(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, _ := f.service.GetSummary(context.Background(), "", "")
	if s.Default.TotalRequests != 0 || s.Default.TotalAmount != "0.00" {
		t.Errorf("expected zero totals, got %+v", s.Default)
	}
	if n, _ := f.queue.Len(context.Background()); n != 0 {
		t.Errorf("expected an empty queue, got %d", n)
	}
}
