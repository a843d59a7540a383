package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/redis/go-redis/v9"
)

// IdempotencyLedger keeps checkout responses keyed by the client's
// Idempotency-Key. A key holds "pending" while the first request runs.
type IdempotencyLedger struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyLedger(rdb *redis.Client, ttl time.Duration) *IdempotencyLedger {
	if ttl <= 0 {
		ttl = TTLIdempotency
	}
	return &IdempotencyLedger{rdb: rdb, ttl: ttl}
}

func (l *IdempotencyLedger) Begin(ctx context.Context, key string) (bookings.IdempotencyResult, error) {
	k := fmt.Sprintf(KeyIdemCheckout, key)
	ok, err := l.rdb.SetNX(ctx, k, pendingMarker, l.ttl).Result()
	if err != nil {
		return bookings.IdempotencyResult{}, fmt.Errorf("idempotency begin: %w", err)
	}
	if ok {
		return bookings.IdempotencyResult{IsNew: true}, nil
	}

	val, err := l.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; the caller may simply retry
		return bookings.IdempotencyResult{}, bookings.ErrIdempotencyInFlight
	}
	if err != nil {
		return bookings.IdempotencyResult{}, fmt.Errorf("idempotency lookup: %w", err)
	}
	if string(val) == pendingMarker {
		return bookings.IdempotencyResult{}, bookings.ErrIdempotencyInFlight
	}
	return bookings.IdempotencyResult{Cached: val}, nil
}

func (l *IdempotencyLedger) Complete(ctx context.Context, key string, result []byte) error {
	if err := l.rdb.Set(ctx, fmt.Sprintf(KeyIdemCheckout, key), result, l.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency complete: %w", err)
	}
	return nil
}

func (l *IdempotencyLedger) Abort(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, fmt.Sprintf(KeyIdemCheckout, key)).Err()
}
