package bookings

import (
	"encoding/json"
	"time"
)

const (
	EventBookingConfirmed = "BookingConfirmed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TenantID      string          `json:"tenant_id"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // booking id
	Payload       json.RawMessage `json:"payload"`
}

// BookingConfirmed carries everything a notification needs without a
// read-back to the store.
type BookingConfirmed struct {
	BookingID    string    `json:"booking_id"`
	TenantID     string    `json:"tenant_id"`
	PackageID    string    `json:"package_id"`
	EventDate    string    `json:"event_date"`
	CustomerName string    `json:"customer_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	AddOnIDs     []string  `json:"add_on_ids,omitempty"`
	TotalCents   int64     `json:"total_cents"`
	Currency     string    `json:"currency"`
	PaymentRef   string    `json:"payment_ref"`
	ConfirmedAt  time.Time `json:"confirmed_at"`
}

func NewBookingConfirmed(b Booking) BookingConfirmed {
	return BookingConfirmed{
		BookingID:    b.ID,
		TenantID:     b.TenantID,
		PackageID:    b.PackageID,
		EventDate:    FormatDate(b.EventDate),
		CustomerName: b.Contact.Name,
		Email:        b.Contact.Email,
		Phone:        b.Contact.Phone,
		AddOnIDs:     b.AddOnIDs(),
		TotalCents:   b.TotalCents,
		Currency:     b.Currency,
		PaymentRef:   b.PaymentRef,
		ConfirmedAt:  b.CreatedAt,
	}
}

// EventID is stable per booking so downstream consumers can dedup a
// re-emitted confirmation.
func (e BookingConfirmed) EventID() string {
	return "booking-confirmed:" + e.BookingID
}

func (e BookingConfirmed) Envelope(producer, traceID string) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       e.EventID(),
		EventType:     EventBookingConfirmed,
		EventVersion:  1,
		OccurredAt:    e.ConfirmedAt.UTC(),
		Producer:      producer,
		TenantID:      e.TenantID,
		TraceID:       traceID,
		CorrelationID: e.BookingID,
		Payload:       payload,
	}, nil
}
