package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookLedger is the durable record of inbound payment events. Rows are
// never deleted; they double as the audit trail.
type WebhookLedger struct {
	pool *pgxpool.Pool
}

func NewWebhookLedger(pool *pgxpool.Pool) *WebhookLedger {
	return &WebhookLedger{pool: pool}
}

// Claim inserts a RECEIVED row or takes over a FAILED or stale RECEIVED one
// in a single statement, so two deliveries of one event cannot both own it.
func (l *WebhookLedger) Claim(ctx context.Context, evt bookings.WebhookEvent, staleBefore time.Time) (bookings.ClaimResult, error) {
	var attempts int
	err := l.pool.QueryRow(ctx, `
		INSERT INTO webhook_events (event_id, tenant_id, event_type, payload, status, attempts, received_at, updated_at)
		VALUES ($1, $2, $3, $4, 'RECEIVED', 1, $5, $5)
		ON CONFLICT (event_id) DO UPDATE
		SET status = 'RECEIVED',
			attempts = webhook_events.attempts + 1,
			failure_reason = '',
			tenant_id = CASE WHEN webhook_events.tenant_id = '' THEN EXCLUDED.tenant_id ELSE webhook_events.tenant_id END,
			updated_at = EXCLUDED.updated_at
		WHERE webhook_events.status = 'FAILED'
			OR (webhook_events.status = 'RECEIVED' AND webhook_events.updated_at < $6)
		RETURNING attempts`,
		evt.EventID, evt.TenantID, evt.EventType, evt.Payload, evt.ReceivedAt, staleBefore,
	).Scan(&attempts)
	if err == nil {
		return bookings.ClaimResult{Claimed: true, Status: bookings.WebhookReceived, Attempts: attempts}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return bookings.ClaimResult{}, fmt.Errorf("claim webhook event: %w", err)
	}

	var status string
	if err := l.pool.QueryRow(ctx,
		`SELECT status, attempts FROM webhook_events WHERE event_id = $1`, evt.EventID,
	).Scan(&status, &attempts); err != nil {
		return bookings.ClaimResult{}, fmt.Errorf("read webhook event: %w", err)
	}
	return bookings.ClaimResult{Status: bookings.WebhookStatus(status), Attempts: attempts}, nil
}

func (l *WebhookLedger) MarkProcessed(ctx context.Context, eventID string, at time.Time) error {
	_, err := l.pool.Exec(ctx, `
		UPDATE webhook_events SET status = 'PROCESSED', processed_at = $2, updated_at = $2
		WHERE event_id = $1 AND status = 'RECEIVED'`, eventID, at)
	if err != nil {
		return fmt.Errorf("mark webhook processed: %w", err)
	}
	return nil
}

func (l *WebhookLedger) MarkFailed(ctx context.Context, eventID, reason string, at time.Time) error {
	_, err := l.pool.Exec(ctx, `
		UPDATE webhook_events SET status = 'FAILED', failure_reason = $2, updated_at = $3
		WHERE event_id = $1 AND status = 'RECEIVED'`, eventID, reason, at)
	if err != nil {
		return fmt.Errorf("mark webhook failed: %w", err)
	}
	return nil
}

func (l *WebhookLedger) Get(ctx context.Context, eventID string) (bookings.WebhookEvent, error) {
	var evt bookings.WebhookEvent
	var status string
	err := l.pool.QueryRow(ctx, `
		SELECT event_id, tenant_id, event_type, payload, status, attempts, failure_reason,
			received_at, processed_at, updated_at
		FROM webhook_events WHERE event_id = $1`, eventID,
	).Scan(&evt.EventID, &evt.TenantID, &evt.EventType, &evt.Payload, &status, &evt.Attempts,
		&evt.FailureReason, &evt.ReceivedAt, &evt.ProcessedAt, &evt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return bookings.WebhookEvent{}, &bookings.NotFoundError{Resource: "webhook event", ID: eventID}
	}
	if err != nil {
		return bookings.WebhookEvent{}, fmt.Errorf("get webhook event: %w", err)
	}
	evt.Status = bookings.WebhookStatus(status)
	return evt, nil
}

func (l *WebhookLedger) CountPending(ctx context.Context, olderThan time.Time) (map[bookings.WebhookStatus]int, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM webhook_events
		WHERE status <> 'PROCESSED' AND updated_at < $1
		GROUP BY status`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("count pending webhook events: %w", err)
	}
	defer rows.Close()

	out := map[bookings.WebhookStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[bookings.WebhookStatus(status)] = n
	}
	return out, rows.Err()
}
