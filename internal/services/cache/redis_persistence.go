package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	json "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/diogomassis/rinha-dispatch/internal/models"
)

const (
	PaymentsLogKey            = "payments_log"
	processedKeyPrefix        = "processed:"
	totalRequestsPrefix       = "totalRequests:"
	totalAmountPrefix         = "totalAmount:"
	purgeScanBatch      int64 = 500
)

// KEYS: processed:<id>, payments_log, totalRequests:<p>, totalAmount:<p>
// ARGV: dedup ttl seconds, score, member, amount
var recordScript = redis.NewScript(`
if not redis.call('SET', KEYS[1], '1', 'NX', 'EX', ARGV[1]) then
  return 0
end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
redis.call('INCR', KEYS[3])
redis.call('INCRBYFLOAT', KEYS[4], ARGV[4])
return 1
`)

// RinhaRedisPersistenceService keeps the processed payments log and the
// running totals per processor. A correlationId is recorded at most once
// while its dedup key lives.
type RinhaRedisPersistenceService struct {
	client   *redis.Client
	dedupTTL time.Duration
	log      zerolog.Logger
}

func NewRinhaRedisPersistenceService(client *redis.Client, dedupTTL time.Duration, log zerolog.Logger) *RinhaRedisPersistenceService {
	if dedupTTL < time.Second {
		dedupTTL = time.Hour
	}
	return &RinhaRedisPersistenceService{
		client:   client,
		dedupTTL: dedupTTL,
		log:      log,
	}
}

// Record appends the payment to the log and bumps its processor counters in
// one atomic step. It reports false when the correlationId was already
// recorded.
func (r *RinhaRedisPersistenceService) Record(ctx context.Context, p models.ProcessedPayment) (bool, error) {
	if !p.ProcessorType.Valid() {
		return false, fmt.Errorf("[cache] unknown processor %q", p.ProcessorType)
	}
	member, err := json.MarshalToString(p)
	if err != nil {
		return false, fmt.Errorf("[cache] failed to marshal processed payment: %w", err)
	}

	keys := []string{
		processedKeyPrefix + p.CorrelationID,
		PaymentsLogKey,
		totalRequestsPrefix + p.ProcessorType.String(),
		totalAmountPrefix + p.ProcessorType.String(),
	}
	recorded, err := recordScript.Run(ctx, r.client, keys,
		int64(r.dedupTTL/time.Second),
		p.ProcessedAt.UnixMilli(),
		member,
		p.Amount.String(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("[cache] failed to record payment %s: %w", p.CorrelationID, err)
	}
	return recorded == 1, nil
}

func (r *RinhaRedisPersistenceService) IsProcessed(ctx context.Context, correlationID string) (bool, error) {
	n, err := r.client.Exists(ctx, processedKeyPrefix+correlationID).Result()
	if err != nil {
		return false, fmt.Errorf("[cache] failed to check dedup key: %w", err)
	}
	return n > 0, nil
}

// Summary aggregates recorded payments. With no bounds it reads the running
// counters; otherwise it scans the log between the inclusive bounds.
func (r *RinhaRedisPersistenceService) Summary(ctx context.Context, from, to *time.Time) (*models.PaymentSummary, error) {
	if from == nil && to == nil {
		return r.counters(ctx)
	}
	return r.window(ctx, from, to)
}

func (r *RinhaRedisPersistenceService) counters(ctx context.Context) (*models.PaymentSummary, error) {
	keys := make([]string, 0, 2*len(models.Processors))
	for _, p := range models.Processors {
		keys = append(keys, totalRequestsPrefix+p.String(), totalAmountPrefix+p.String())
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("[cache] failed to read counters: %w", err)
	}

	items := make([]models.PaymentSummaryItem, len(models.Processors))
	for i := range models.Processors {
		requests, err := parseCounter(values[2*i])
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(values[2*i+1])
		if err != nil {
			return nil, err
		}
		items[i] = *models.NewPaymentSummaryItem(requests, amount)
	}
	return models.NewPaymentSummary(items[0], items[1]), nil
}

func (r *RinhaRedisPersistenceService) window(ctx context.Context, from, to *time.Time) (*models.PaymentSummary, error) {
	min, max := "-inf", "+inf"
	if from != nil {
		min = strconv.FormatInt(from.UnixMilli(), 10)
	}
	if to != nil {
		max = strconv.FormatInt(to.UnixMilli(), 10)
	}

	members, err := r.client.ZRangeByScore(ctx, PaymentsLogKey, &redis.ZRangeBy{
		Min: min,
		Max: max,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("[cache] failed to scan payments log: %w", err)
	}

	summary := models.NewPaymentSummary(models.PaymentSummaryItem{}, models.PaymentSummaryItem{})
	for _, member := range members {
		var p models.ProcessedPayment
		if err := json.UnmarshalFromString(member, &p); err != nil {
			r.log.Error().Err(err).Str("member", member).Msg("skipping unreadable log entry")
			continue
		}
		if (from != nil && p.ProcessedAt.Before(*from)) || (to != nil && p.ProcessedAt.After(*to)) {
			continue
		}
		summary.Add(p.ProcessorType, p.Amount)
	}
	return summary, nil
}

// Purge clears the log, the counters and every dedup key.
func (r *RinhaRedisPersistenceService) Purge(ctx context.Context) error {
	keys := []string{PaymentsLogKey}
	for _, p := range models.Processors {
		keys = append(keys, totalRequestsPrefix+p.String(), totalAmountPrefix+p.String())
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("[cache] failed to purge payments log: %w", err)
	}

	iter := r.client.Scan(ctx, 0, processedKeyPrefix+"*", purgeScanBatch).Iterator()
	batch := make([]string, 0, purgeScanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if int64(len(batch)) == purgeScanBatch {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("[cache] failed to purge dedup keys: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("[cache] failed to scan dedup keys: %w", err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("[cache] failed to purge dedup keys: %w", err)
		}
	}
	return nil
}

func parseCounter(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("[cache] unexpected counter value %v", v)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("[cache] failed to parse counter %q: %w", s, err)
	}
	return n, nil
}

func parseAmount(v any) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}
	s, ok := v.(string)
	if !ok {
		return decimal.Zero, fmt.Errorf("[cache] unexpected amount value %v", v)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("[cache] failed to parse amount %q: %w", s, err)
	}
	// INCRBYFLOAT accumulates binary floats; amounts are cents.
	return d.Round(2), nil
}
