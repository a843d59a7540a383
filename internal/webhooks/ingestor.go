// Package webhooks drives inbound payment notifications through the
// RECEIVED -> PROCESSED | FAILED ledger states.
package webhooks

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/ariefcatur/go-date-bookings/internal/clock"
	"github.com/ariefcatur/go-date-bookings/internal/metrics"
	"github.com/ariefcatur/go-date-bookings/internal/obs"
	"github.com/ariefcatur/go-date-bookings/internal/payments"
	"github.com/ariefcatur/go-date-bookings/internal/reservations"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// DefaultStaleAfter is how long a RECEIVED entry may sit untouched before a
// redelivery is allowed to take it over.
const DefaultStaleAfter = 2 * time.Minute

var errInFlight = errors.New("event is already being processed")

type EventParser interface {
	ParseEvent(payload []byte, signature string) (payments.Event, error)
}

type PaymentHandler interface {
	OnPaymentCompleted(ctx context.Context, p reservations.PaymentCompleted) (bookings.Booking, error)
}

type Ingestor struct {
	parser     EventParser
	ledger     bookings.WebhookLedger
	handler    PaymentHandler
	clock      clock.Clock
	staleAfter time.Duration
	log        *zap.Logger
	metrics    *metrics.Metrics
}

type Option func(*Ingestor)

func WithStaleAfter(d time.Duration) Option {
	return func(in *Ingestor) {
		if d > 0 {
			in.staleAfter = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(in *Ingestor) { in.clock = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(in *Ingestor) { in.metrics = m }
}

func NewIngestor(parser EventParser, ledger bookings.WebhookLedger, handler PaymentHandler, log *zap.Logger, opts ...Option) *Ingestor {
	in := &Ingestor{
		parser:     parser,
		ledger:     ledger,
		handler:    handler,
		clock:      clock.NewSystem(),
		staleAfter: DefaultStaleAfter,
		log:        log,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Ingest verifies and processes one notification. A nil return means the
// sender may consider it delivered. *bookings.WebhookValidationError must not
// be retried; *bookings.WebhookProcessingError should be.
func (in *Ingestor) Ingest(ctx context.Context, payload []byte, signature string) error {
	ctx, span := obs.Tracer().Start(ctx, "webhooks.Ingest")
	defer span.End()

	evt, err := in.parser.ParseEvent(payload, signature)
	if err != nil {
		in.metrics.WebhookOutcome("rejected")
		in.log.Warn("webhook rejected", zap.Error(err))
		span.SetStatus(codes.Error, "rejected")
		return err
	}
	span.SetAttributes(attribute.String("webhook.id", evt.ID), attribute.String("webhook.type", evt.Type))
	log := in.log.With(zap.String("event_id", evt.ID), zap.String("event_type", evt.Type))

	now := in.clock.Now()
	entry := bookings.WebhookEvent{
		EventID:    evt.ID,
		EventType:  evt.Type,
		Payload:    evt.Payload,
		ReceivedAt: now,
	}
	if evt.Payment != nil {
		entry.TenantID = evt.Payment.Metadata[payments.MetaTenantID]
	}

	claim, err := in.ledger.Claim(ctx, entry, now.Add(-in.staleAfter))
	if err != nil {
		in.metrics.WebhookOutcome("error")
		return &bookings.WebhookProcessingError{EventID: evt.ID, Err: err}
	}
	if !claim.Claimed {
		if claim.Status == bookings.WebhookProcessed {
			in.metrics.WebhookOutcome("duplicate")
			log.Info("webhook already processed", zap.Int("attempts", claim.Attempts))
			return nil
		}
		in.metrics.WebhookOutcome("in_flight")
		log.Info("webhook in flight elsewhere")
		return &bookings.WebhookProcessingError{EventID: evt.ID, Err: errInFlight}
	}

	if evt.Payment == nil {
		if err := in.ledger.MarkProcessed(ctx, evt.ID, in.clock.Now()); err != nil {
			return &bookings.WebhookProcessingError{EventID: evt.ID, Err: err}
		}
		in.metrics.WebhookOutcome("ignored")
		log.Debug("webhook acknowledged without action")
		return nil
	}

	md, date, err := payments.ParseMetadata(evt.Payment.Metadata)
	if err != nil {
		in.markFailed(ctx, log, evt.ID, err)
		in.metrics.WebhookOutcome("invalid")
		span.SetStatus(codes.Error, "invalid metadata")
		return &bookings.WebhookValidationError{EventID: evt.ID, Reason: "invalid metadata", Err: err}
	}

	b, err := in.handler.OnPaymentCompleted(ctx, reservations.PaymentCompleted{
		TenantID:    md.TenantID,
		PackageID:   md.PackageID,
		EventDate:   date,
		Contact:     bookings.Contact{Name: md.Name, Email: md.Email, Phone: md.Phone},
		AddOnIDs:    md.AddOnIDs,
		PaymentRef:  evt.Payment.SessionID,
		AmountTotal: evt.Payment.AmountTotal,
		Currency:    evt.Payment.Currency,
	})
	if err != nil {
		in.markFailed(ctx, log, evt.ID, err)
		in.metrics.WebhookOutcome("failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "processing")
		if errors.Is(err, bookings.ErrConflict) {
			// money was captured for a date someone else holds
			log.Error("paid booking could not be reserved",
				zap.String("tenant_id", md.TenantID),
				zap.String("session_id", evt.Payment.SessionID),
				zap.String("payment_intent", evt.Payment.PaymentIntentID),
				zap.Error(err))
		}
		return &bookings.WebhookProcessingError{EventID: evt.ID, Err: err}
	}

	if err := in.ledger.MarkProcessed(ctx, evt.ID, in.clock.Now()); err != nil {
		// The booking exists; a redelivery replays it by payment reference.
		return &bookings.WebhookProcessingError{EventID: evt.ID, Err: err}
	}
	in.metrics.WebhookOutcome("processed")
	log.Info("webhook processed", zap.String("booking_id", b.ID), zap.Int("attempts", claim.Attempts))
	return nil
}

func (in *Ingestor) markFailed(ctx context.Context, log *zap.Logger, eventID string, cause error) {
	if err := in.ledger.MarkFailed(context.WithoutCancel(ctx), eventID, cause.Error(), in.clock.Now()); err != nil {
		log.Error("mark webhook failed", zap.Error(err))
	}
}
