package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/ariefcatur/go-date-bookings/internal/clock"
)

type idemEntry struct {
	done      bool
	result    []byte
	expiresAt time.Time
}

// IdempotencyLedger is the in-process counterpart of redisx.IdempotencyLedger.
type IdempotencyLedger struct {
	clock clock.Clock
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]idemEntry
}

func NewIdempotencyLedger(clk clock.Clock, ttl time.Duration) *IdempotencyLedger {
	return &IdempotencyLedger{clock: clk, ttl: ttl, entries: map[string]idemEntry{}}
}

func (l *IdempotencyLedger) Begin(_ context.Context, key string) (bookings.IdempotencyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	e, ok := l.entries[key]
	if ok && now.Before(e.expiresAt) {
		if !e.done {
			return bookings.IdempotencyResult{}, bookings.ErrIdempotencyInFlight
		}
		return bookings.IdempotencyResult{Cached: append([]byte(nil), e.result...)}, nil
	}
	l.entries[key] = idemEntry{expiresAt: now.Add(l.ttl)}
	return bookings.IdempotencyResult{IsNew: true}, nil
}

func (l *IdempotencyLedger) Complete(_ context.Context, key string, result []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[key] = idemEntry{
		done:      true,
		result:    append([]byte(nil), result...),
		expiresAt: l.clock.Now().Add(l.ttl),
	}
	return nil
}

func (l *IdempotencyLedger) Abort(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
	return nil
}
