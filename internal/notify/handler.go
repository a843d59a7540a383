// Package notify turns BookingConfirmed events from the broker into
// customer confirmations.
package notify

import (
	"context"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	kafkax "github.com/ariefcatur/go-date-bookings/internal/kafka"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Dedup remembers handled event ids. redisx.Dedup satisfies it.
type Dedup interface {
	MarkFirst(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

type Handler struct {
	dedup    Dedup
	notifier Notifier
	log      *zap.Logger
}

func NewHandler(dedup Dedup, n Notifier, log *zap.Logger) *Handler {
	return &Handler{dedup: dedup, notifier: n, log: log}
}

// HandleMessage is a kafka.Handler. Undecodable messages are logged and
// committed; a failed delivery returns an error so the offset stays put.
func (h *Handler) HandleMessage(ctx context.Context, m kafka.Message) error {
	if t := kafkax.Header(m, kafkax.HeaderEventType); t != "" && t != bookings.EventBookingConfirmed {
		return nil
	}
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		h.log.Error("drop undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != bookings.EventBookingConfirmed {
		return nil
	}
	evt, err := kafkax.UnwrapPayload[bookings.BookingConfirmed](env.Payload)
	if err != nil {
		h.log.Error("drop undecodable payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	return h.Handle(ctx, env.EventID, evt)
}

// Handle delivers one confirmation at most once per event id, as far as the
// dedup store remembers.
func (h *Handler) Handle(ctx context.Context, eventID string, evt bookings.BookingConfirmed) error {
	if h.dedup != nil {
		first, err := h.dedup.MarkFirst(ctx, eventID)
		if err != nil {
			h.log.Warn("dedup unavailable, delivering anyway", zap.String("event_id", eventID), zap.Error(err))
		} else if !first {
			h.log.Debug("duplicate confirmation skipped", zap.String("event_id", eventID))
			return nil
		}
	}

	if err := h.notifier.Notify(ctx, Compose(evt)); err != nil {
		if h.dedup != nil {
			if ferr := h.dedup.Forget(context.WithoutCancel(ctx), eventID); ferr != nil {
				h.log.Warn("dedup forget", zap.String("event_id", eventID), zap.Error(ferr))
			}
		}
		return err
	}
	h.log.Info("confirmation sent", zap.String("event_id", eventID), zap.String("booking_id", evt.BookingID))
	return nil
}
