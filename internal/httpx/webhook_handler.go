package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"go.uber.org/zap"
)

const (
	signatureHeader = "Stripe-Signature"
	maxWebhookBody  = 1 << 20
)

type WebhookIngestor interface {
	Ingest(ctx context.Context, payload []byte, signature string) error
}

// WebhookHandler answers with status codes only. The raw body is passed
// through untouched because the signature covers the exact bytes.
type WebhookHandler struct {
	Ingestor WebhookIngestor
	Log      *zap.Logger
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	err = h.Ingestor.Ingest(r.Context(), payload, r.Header.Get(signatureHeader))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, bookings.ErrWebhookValidation):
		w.WriteHeader(http.StatusUnprocessableEntity)
	default:
		if !errors.Is(err, bookings.ErrWebhookProcessing) {
			h.Log.Error("webhook ingest", zap.Error(err))
		}
		w.WriteHeader(http.StatusInternalServerError)
	}
}
