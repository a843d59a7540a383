package memory

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
)

func TestWebhookLedger_ClaimRules(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := NewWebhookLedger()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	evt := bookings.WebhookEvent{EventID: "evt_1", EventType: "checkout.session.completed", ReceivedAt: now}

	res, err := ledger.Claim(ctx, evt, now.Add(-2*time.Minute))
	if err != nil || !res.Claimed || res.Attempts != 1 {
		t.Fatalf("expected first claim to succeed, got %+v err=%v", res, err)
	}

	res, _ = ledger.Claim(ctx, evt, now.Add(-2*time.Minute))
	if res.Claimed || res.Status != bookings.WebhookReceived {
		t.Fatalf("expected live RECEIVED entry to stay with its owner, got %+v", res)
	}

	res, _ = ledger.Claim(ctx, evt, now.Add(time.Second))
	if !res.Claimed || res.Attempts != 2 {
		t.Fatalf("expected stale RECEIVED entry to be reclaimed, got %+v", res)
	}

	if err := ledger.MarkFailed(ctx, "evt_1", "lock timeout", now); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	res, _ = ledger.Claim(ctx, evt, now.Add(-2*time.Minute))
	if !res.Claimed || res.Attempts != 3 {
		t.Fatalf("expected FAILED entry to be reclaimed, got %+v", res)
	}

	if err := ledger.MarkProcessed(ctx, "evt_1", now); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	if err := ledger.MarkFailed(ctx, "evt_1", "late failure", now); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	got, _ := ledger.Get(ctx, "evt_1")
	if got.Status != bookings.WebhookProcessed {
		t.Fatalf("expected PROCESSED to be terminal, got %s", got.Status)
	}
	res, _ = ledger.Claim(ctx, evt, now.Add(time.Hour))
	if res.Claimed || res.Status != bookings.WebhookProcessed {
		t.Fatalf("expected PROCESSED entry never to be reclaimed, got %+v", res)
	}
}

func TestWebhookLedger_CountPending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := NewWebhookLedger()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"a", "b", "c"} {
		if _, err := ledger.Claim(ctx, bookings.WebhookEvent{EventID: id, ReceivedAt: now}, now); err != nil {
			t.Fatalf("claim %s: %v", id, err)
		}
	}
	_ = ledger.MarkProcessed(ctx, "a", now)
	_ = ledger.MarkFailed(ctx, "b", "boom", now)

	counts, err := ledger.CountPending(ctx, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[bookings.WebhookFailed] != 1 || counts[bookings.WebhookReceived] != 1 {
		t.Fatalf("expected one FAILED and one RECEIVED, got %v", counts)
	}
}
