package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/ariefcatur/go-date-bookings/internal/clock"
)

func TestIdempotencyLedger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := clock.NewManual(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	ledger := NewIdempotencyLedger(clk, time.Hour)

	res, err := ledger.Begin(ctx, "k1")
	if err != nil || !res.IsNew {
		t.Fatalf("expected new key, got %+v err=%v", res, err)
	}
	if _, err := ledger.Begin(ctx, "k1"); !errors.Is(err, bookings.ErrIdempotencyInFlight) {
		t.Fatalf("expected in-flight error, got %v", err)
	}
	if err := ledger.Complete(ctx, "k1", []byte(`{"checkoutUrl":"u"}`)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	res, err = ledger.Begin(ctx, "k1")
	if err != nil || res.IsNew || string(res.Cached) != `{"checkoutUrl":"u"}` {
		t.Fatalf("expected cached replay, got %+v err=%v", res, err)
	}

	clk.Advance(2 * time.Hour)
	res, err = ledger.Begin(ctx, "k1")
	if err != nil || !res.IsNew {
		t.Fatalf("expected expired key to start over, got %+v err=%v", res, err)
	}

	_ = ledger.Abort(ctx, "k1")
	res, _ = ledger.Begin(ctx, "k1")
	if !res.IsNew {
		t.Fatalf("expected aborted key to be reusable")
	}
}
