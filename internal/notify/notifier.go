package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Message is a composed confirmation, ready for any channel.
type Message struct {
	BookingID string `json:"booking_id"`
	TenantID  string `json:"tenant_id"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

func Compose(evt bookings.BookingConfirmed) Message {
	date := evt.EventDate
	if d, err := bookings.ParseDate(evt.EventDate); err == nil {
		date = d.Format("Monday, 2 January 2006")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", evt.CustomerName)
	fmt.Fprintf(&b, "Your booking for %s is confirmed.\n", date)
	fmt.Fprintf(&b, "Package: %s\n", evt.PackageID)
	if len(evt.AddOnIDs) > 0 {
		fmt.Fprintf(&b, "Add-ons: %s\n", strings.Join(evt.AddOnIDs, ", "))
	}
	fmt.Fprintf(&b, "Total paid: %s\n", formatAmount(evt.TotalCents, evt.Currency))
	fmt.Fprintf(&b, "Reference: %s\n", evt.BookingID)
	return Message{
		BookingID: evt.BookingID,
		TenantID:  evt.TenantID,
		To:        evt.Email,
		Subject:   "Booking confirmed for " + evt.EventDate,
		Body:      b.String(),
	}
}

func formatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, strings.ToUpper(currency))
}

// LogNotifier only logs. It is the default when no delivery endpoint is set.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, msg Message) error {
	n.Log.Info("booking confirmation",
		zap.String("booking_id", msg.BookingID),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}

// HTTPNotifier posts the message as JSON to a delivery endpoint (an email
// relay or chat hook). 5xx and transport errors are retried briefly.
type HTTPNotifier struct {
	url     string
	client  *http.Client
	retries uint64
	base    time.Duration
}

func NewHTTPNotifier(url string, client *http.Client) *HTTPNotifier {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPNotifier{url: url, client: client, retries: 3, base: 200 * time.Millisecond}
}

func (n *HTTPNotifier) Notify(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	backoff := retry.WithMaxRetries(n.retries, retry.NewExponential(n.base))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "booking-confirmed:"+msg.BookingID)

		resp, err := n.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		resp.Body.Close()
		switch {
		case resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("notify endpoint: %s", resp.Status))
		case resp.StatusCode >= 300:
			return fmt.Errorf("notify endpoint: %s", resp.Status)
		}
		return nil
	})
}
