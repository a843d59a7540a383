package payments

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testSecret = "whsec_test_secret"

func signedEvent(t *testing.T, evt map[string]any, at time.Time) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: at,
	})
	return signed.Payload, signed.Header
}

func sessionEvent(id, typ, paymentStatus string) map[string]any {
	return map[string]any{
		"id":     id,
		"object": "event",
		"type":   typ,
		"data": map[string]any{
			"object": map[string]any{
				"id":             "cs_test_1",
				"object":         "checkout.session",
				"payment_status": paymentStatus,
				"amount_total":   175000,
				"currency":       "usd",
				"payment_intent": "pi_1",
				"metadata": map[string]string{
					MetaTenantID: "t1",
				},
			},
		},
	}
}

func TestParseEvent(t *testing.T) {
	t.Parallel()

	s := NewStripe("sk_test", testSecret, "https://x/ok", "https://x/cancel")
	now := time.Now()

	tests := []struct {
		name        string
		evt         map[string]any
		wantPayment bool
	}{
		{"completed and paid", sessionEvent("evt_1", EventCheckoutCompleted, "paid"), true},
		{"completed but unpaid", sessionEvent("evt_2", EventCheckoutCompleted, "unpaid"), false},
		{"async succeeded", sessionEvent("evt_3", EventAsyncPaymentSucceeded, "paid"), true},
		{"unrelated type", map[string]any{"id": "evt_4", "object": "event", "type": "customer.created", "data": map[string]any{"object": map[string]any{}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			payload, header := signedEvent(t, tt.evt, now)
			got, err := s.ParseEvent(payload, header)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got.ID != tt.evt["id"] {
				t.Fatalf("expected id %v, got %s", tt.evt["id"], got.ID)
			}
			if (got.Payment != nil) != tt.wantPayment {
				t.Fatalf("expected payment=%v, got %+v", tt.wantPayment, got.Payment)
			}
			if got.Payment != nil {
				if got.Payment.SessionID != "cs_test_1" || got.Payment.PaymentIntentID != "pi_1" || got.Payment.AmountTotal != 175000 {
					t.Fatalf("unexpected payment: %+v", got.Payment)
				}
				if got.Payment.Metadata[MetaTenantID] != "t1" {
					t.Fatalf("expected metadata to survive, got %v", got.Payment.Metadata)
				}
			}
		})
	}
}

func TestParseEvent_RejectsBadSignature(t *testing.T) {
	t.Parallel()

	s := NewStripe("sk_test", testSecret, "", "")
	payload, header := signedEvent(t, sessionEvent("evt_1", EventCheckoutCompleted, "paid"), time.Now())
	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)-2] = ' '
	_, otherHeader := signedEventWithSecret(t, payload, "whsec_other", time.Now())

	tests := []struct {
		name    string
		payload []byte
		header  string
	}{
		{"missing header", payload, ""},
		{"tampered body", tampered, header},
		{"wrong secret", payload, otherHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ParseEvent(tt.payload, tt.header)
			if !errors.Is(err, bookings.ErrWebhookValidation) {
				t.Fatalf("expected webhook validation error, got %v", err)
			}
		})
	}

	stale, staleHeader := signedEvent(t, sessionEvent("evt_9", EventCheckoutCompleted, "paid"), time.Now().Add(-10*time.Minute))
	if _, err := s.ParseEvent(stale, staleHeader); !errors.Is(err, bookings.ErrWebhookValidation) {
		t.Fatalf("expected stale signature to be rejected, got %v", err)
	}
}

func signedEventWithSecret(t *testing.T, payload []byte, secret string, at time.Time) ([]byte, string) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	})
	return signed.Payload, signed.Header
}
