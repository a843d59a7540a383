package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
)

// WebhookLedger mirrors the claim rules of the SQL ledger.
type WebhookLedger struct {
	mu     sync.Mutex
	events map[string]bookings.WebhookEvent
}

func NewWebhookLedger() *WebhookLedger {
	return &WebhookLedger{events: map[string]bookings.WebhookEvent{}}
}

func (l *WebhookLedger) Claim(_ context.Context, evt bookings.WebhookEvent, staleBefore time.Time) (bookings.ClaimResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, ok := l.events[evt.EventID]
	if !ok {
		evt.Status = bookings.WebhookReceived
		evt.Attempts = 1
		evt.UpdatedAt = evt.ReceivedAt
		evt.Payload = append([]byte(nil), evt.Payload...)
		l.events[evt.EventID] = evt
		return bookings.ClaimResult{Claimed: true, Status: bookings.WebhookReceived, Attempts: 1}, nil
	}

	reclaim := existing.Status == bookings.WebhookFailed ||
		(existing.Status == bookings.WebhookReceived && existing.UpdatedAt.Before(staleBefore))
	if !reclaim {
		return bookings.ClaimResult{Status: existing.Status, Attempts: existing.Attempts}, nil
	}
	existing.Status = bookings.WebhookReceived
	existing.Attempts++
	existing.FailureReason = ""
	existing.UpdatedAt = evt.ReceivedAt
	if existing.TenantID == "" {
		existing.TenantID = evt.TenantID
	}
	l.events[evt.EventID] = existing
	return bookings.ClaimResult{Claimed: true, Status: bookings.WebhookReceived, Attempts: existing.Attempts}, nil
}

func (l *WebhookLedger) MarkProcessed(_ context.Context, eventID string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	evt, ok := l.events[eventID]
	if !ok {
		return &bookings.NotFoundError{Resource: "webhook event", ID: eventID}
	}
	if evt.Status != bookings.WebhookReceived {
		return nil
	}
	evt.Status = bookings.WebhookProcessed
	evt.ProcessedAt = &at
	evt.UpdatedAt = at
	l.events[eventID] = evt
	return nil
}

func (l *WebhookLedger) MarkFailed(_ context.Context, eventID, reason string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	evt, ok := l.events[eventID]
	if !ok {
		return &bookings.NotFoundError{Resource: "webhook event", ID: eventID}
	}
	if evt.Status != bookings.WebhookReceived {
		return nil
	}
	evt.Status = bookings.WebhookFailed
	evt.FailureReason = reason
	evt.UpdatedAt = at
	l.events[eventID] = evt
	return nil
}

func (l *WebhookLedger) Get(_ context.Context, eventID string) (bookings.WebhookEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	evt, ok := l.events[eventID]
	if !ok {
		return bookings.WebhookEvent{}, &bookings.NotFoundError{Resource: "webhook event", ID: eventID}
	}
	return evt, nil
}

func (l *WebhookLedger) CountPending(_ context.Context, olderThan time.Time) (map[bookings.WebhookStatus]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := map[bookings.WebhookStatus]int{}
	for _, evt := range l.events {
		if evt.Status == bookings.WebhookProcessed || !evt.UpdatedAt.Before(olderThan) {
			continue
		}
		out[evt.Status]++
	}
	return out, nil
}
