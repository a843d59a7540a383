package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	kafkax "github.com/ariefcatur/go-date-bookings/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
)

type fakeKafka struct {
	key     []byte
	value   []byte
	headers []kafkago.Header
}

func (f *fakeKafka) Publish(_ context.Context, key, value []byte, headers ...kafkago.Header) error {
	f.key, f.value, f.headers = key, value, headers
	return nil
}

type fakeAMQP struct {
	key, id string
	body    any
}

func (f *fakeAMQP) PublishJSON(_ context.Context, key, id string, v any) error {
	f.key, f.id, f.body = key, id, v
	return nil
}

func testConfirmation() bookings.BookingConfirmed {
	return bookings.BookingConfirmed{
		BookingID:   "b-1",
		TenantID:    "t1",
		PackageID:   "pkg-gold",
		EventDate:   "2025-06-15",
		Email:       "ana@example.com",
		TotalCents:  175000,
		Currency:    "usd",
		ConfirmedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestKafkaSink(t *testing.T) {
	t.Parallel()

	k := &fakeKafka{}
	if err := KafkaSink(k, "booking-api")(context.Background(), testConfirmation()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(k.key) != "t1" {
		t.Fatalf("expected tenant partition key, got %q", k.key)
	}

	var env bookings.Envelope
	if err := json.Unmarshal(k.value, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.EventID != "booking-confirmed:b-1" || env.EventType != bookings.EventBookingConfirmed || env.Producer != "booking-api" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	payload, err := kafkax.UnwrapPayload[bookings.BookingConfirmed](env.Payload)
	if err != nil || payload.EventDate != "2025-06-15" {
		t.Fatalf("unexpected payload: %+v err=%v", payload, err)
	}
	if got := kafkax.Header(kafkago.Message{Headers: k.headers}, kafkax.HeaderEventType); got != bookings.EventBookingConfirmed {
		t.Fatalf("expected event type header, got %q", got)
	}
}

func TestRabbitSink(t *testing.T) {
	t.Parallel()

	a := &fakeAMQP{}
	if err := RabbitSink(a, "booking-api")(context.Background(), testConfirmation()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if a.key != bookings.RoutingBookingConfirmed || a.id != "booking-confirmed:b-1" {
		t.Fatalf("unexpected publish: key=%s id=%s", a.key, a.id)
	}
	if _, ok := a.body.(bookings.Envelope); !ok {
		t.Fatalf("expected envelope body, got %T", a.body)
	}
}
