package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"

	// SignatureTolerance bounds the age of a signed notification.
	SignatureTolerance = 300 * time.Second
)

type CheckoutRequest struct {
	TenantID       string
	IdempotencyKey string
	Quote          bookings.Quote
	EventDate      time.Time
	Contact        bookings.Contact
}

type CheckoutSession struct {
	ID  string
	URL string
}

// Payment is the captured-payment part of a notification.
type Payment struct {
	SessionID       string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	Metadata        map[string]string
}

type Event struct {
	ID      string
	Type    string
	Payload []byte
	// Payment is nil unless the event reports captured funds.
	Payment *Payment
}

type Stripe struct {
	sessions      session.Client
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewStripe(secretKey, webhookSecret, successURL, cancelURL string) *Stripe {
	return &Stripe{
		sessions:      session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}
}

// CreateCheckoutSession opens a hosted payment page for the quote. The
// session metadata is what the webhook later turns into a booking.
func (s *Stripe) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(s.successURL),
		CancelURL:     stripe.String(s.cancelURL),
		CustomerEmail: stripe.String(req.Contact.Email),
		LineItems:     lineItems(req.Quote),
	}
	params.Context = ctx
	meta := BuildMetadata(req.TenantID, req.Quote.Package.ID, req.EventDate, req.Contact, addOnIDs(req.Quote))
	for k, v := range meta {
		params.AddMetadata(k, v)
	}
	params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
		Description: stripe.String(fmt.Sprintf("%s on %s", req.Quote.Package.Name, bookings.FormatDate(req.EventDate))),
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	sess, err := s.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe checkout session: %w", err)
	}
	return CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func lineItems(q bookings.Quote) []*stripe.CheckoutSessionLineItemParams {
	item := func(name string, cents int64) *stripe.CheckoutSessionLineItemParams {
		return &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(q.Currency),
				UnitAmount: stripe.Int64(cents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
		}
	}
	out := []*stripe.CheckoutSessionLineItemParams{item(q.Package.Name, q.Package.PriceCents)}
	for _, li := range q.LineItems {
		out = append(out, item(li.Name, li.PriceCents))
	}
	return out
}

func addOnIDs(q bookings.Quote) []string {
	out := make([]string, 0, len(q.LineItems))
	for _, li := range q.LineItems {
		out = append(out, li.AddOnID)
	}
	return out
}

// ParseEvent verifies the Stripe-Signature header and decodes the event.
// A verification failure is a *bookings.WebhookValidationError.
func (s *Stripe) ParseEvent(payload []byte, signature string) (Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                SignatureTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, &bookings.WebhookValidationError{Reason: "signature verification failed", Err: err}
	}

	out := Event{ID: evt.ID, Type: string(evt.Type), Payload: payload}
	switch out.Type {
	case EventCheckoutCompleted, EventAsyncPaymentSucceeded:
	default:
		return out, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &cs); err != nil {
		return Event{}, &bookings.WebhookValidationError{EventID: evt.ID, Reason: "malformed checkout session", Err: err}
	}
	if out.Type == EventCheckoutCompleted && cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		// async methods settle later through async_payment_succeeded
		return out, nil
	}

	p := &Payment{
		SessionID:   cs.ID,
		AmountTotal: cs.AmountTotal,
		Currency:    string(cs.Currency),
		Metadata:    cs.Metadata,
	}
	if cs.PaymentIntent != nil {
		p.PaymentIntentID = cs.PaymentIntent.ID
	}
	out.Payment = p
	return out, nil
}
