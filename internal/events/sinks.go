package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	kafkax "github.com/ariefcatur/go-date-bookings/internal/kafka"
	"github.com/ariefcatur/go-date-bookings/internal/obs"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaPublisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

type AMQPPublisher interface {
	PublishJSON(ctx context.Context, key, messageID string, v any) error
}

// KafkaSink forwards confirmations to the booking.confirmed topic, keyed by
// tenant.
func KafkaSink(p KafkaPublisher, producer string) Handler[bookings.BookingConfirmed] {
	return func(ctx context.Context, evt bookings.BookingConfirmed) error {
		env, err := evt.Envelope(producer, obs.TraceID(ctx))
		if err != nil {
			return fmt.Errorf("build envelope: %w", err)
		}
		value, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("encode envelope: %w", err)
		}
		return p.Publish(ctx, bookings.PartitionKey(evt.TenantID), value, kafkax.EnvelopeHeaders(env)...)
	}
}

func RabbitSink(p AMQPPublisher, producer string) Handler[bookings.BookingConfirmed] {
	return func(ctx context.Context, evt bookings.BookingConfirmed) error {
		env, err := evt.Envelope(producer, obs.TraceID(ctx))
		if err != nil {
			return fmt.Errorf("build envelope: %w", err)
		}
		return p.PublishJSON(ctx, bookings.RoutingBookingConfirmed, env.EventID, env)
	}
}

func LogSink(log *zap.Logger) Handler[bookings.BookingConfirmed] {
	return func(_ context.Context, evt bookings.BookingConfirmed) error {
		log.Info("booking confirmed",
			zap.String("booking_id", evt.BookingID),
			zap.String("tenant_id", evt.TenantID),
			zap.String("event_date", evt.EventDate))
		return nil
	}
}
