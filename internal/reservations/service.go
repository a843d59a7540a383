package reservations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/availability"
	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/ariefcatur/go-date-bookings/internal/clock"
	"github.com/ariefcatur/go-date-bookings/internal/metrics"
	"github.com/ariefcatur/go-date-bookings/internal/obs"
	"github.com/ariefcatur/go-date-bookings/internal/payments"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	defaultLockRetries   = 3
	defaultLockRetryBase = 25 * time.Millisecond
)

type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (payments.CheckoutSession, error)
}

type AvailabilityChecker interface {
	Check(ctx context.Context, tenantID string, date time.Time) (availability.Result, error)
}

type Publisher interface {
	Publish(ctx context.Context, evt bookings.BookingConfirmed)
}

type Deps struct {
	Store        bookings.Store
	Catalog      bookings.Catalog
	Availability AvailabilityChecker
	Payments     PaymentGateway
	Idempotency  bookings.IdempotencyLedger
	Events       Publisher
	Clock        clock.Clock
	Log          *zap.Logger
	Metrics      *metrics.Metrics

	// LockRetries and LockRetryBase shape the backoff when the date lock is
	// contended. Zero values use 3 retries from 25ms.
	LockRetries   uint64
	LockRetryBase time.Duration
}

type Service struct {
	store       bookings.Store
	catalog     bookings.Catalog
	checker     AvailabilityChecker
	payments    PaymentGateway
	idempotency bookings.IdempotencyLedger
	events      Publisher
	clock       clock.Clock
	log         *zap.Logger
	metrics     *metrics.Metrics

	lockRetries   uint64
	lockRetryBase time.Duration
}

func New(d Deps) *Service {
	s := &Service{
		store:         d.Store,
		catalog:       d.Catalog,
		checker:       d.Availability,
		payments:      d.Payments,
		idempotency:   d.Idempotency,
		events:        d.Events,
		clock:         d.Clock,
		log:           d.Log,
		metrics:       d.Metrics,
		lockRetries:   d.LockRetries,
		lockRetryBase: d.LockRetryBase,
	}
	if s.clock == nil {
		s.clock = clock.NewSystem()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.lockRetries == 0 {
		s.lockRetries = defaultLockRetries
	}
	if s.lockRetryBase <= 0 {
		s.lockRetryBase = defaultLockRetryBase
	}
	return s
}

type CheckoutInput struct {
	PackageID      string   `json:"packageId" validate:"required,max=64"`
	EventDate      string   `json:"eventDate" validate:"required"`
	Name           string   `json:"name" validate:"required,max=200"`
	Email          string   `json:"email" validate:"required,email,max=254"`
	Phone          string   `json:"phone" validate:"omitempty,max=32"`
	AddOnIDs       []string `json:"addOnIds" validate:"max=20,dive,required,max=64"`
	IdempotencyKey string   `json:"-"`
}

type CheckoutResult struct {
	CheckoutURL string `json:"checkoutUrl"`
	SessionID   string `json:"sessionId"`
	TotalCents  int64  `json:"totalCents"`
	Currency    string `json:"currency"`
}

// CreateCheckout prices the request from the catalog, checks the date and
// opens a payment session. No booking exists until the payment completes.
func (s *Service) CreateCheckout(ctx context.Context, tenantID string, in CheckoutInput) (res CheckoutResult, err error) {
	ctx, span := obs.Tracer().Start(ctx, "reservations.CreateCheckout")
	defer span.End()

	if err := validateInput(in); err != nil {
		return CheckoutResult{}, err
	}
	date, err := bookings.ParseDate(in.EventDate)
	if err != nil {
		return CheckoutResult{}, err
	}
	if date.Before(bookings.NormalizeDate(s.clock.Now())) {
		return CheckoutResult{}, &bookings.ValidationError{Field: "eventDate", Reason: "must not be in the past"}
	}
	span.SetAttributes(attribute.String("tenant.id", tenantID), attribute.String("booking.date", bookings.FormatDate(date)))

	if in.IdempotencyKey != "" && s.idempotency != nil {
		key := tenantID + ":" + in.IdempotencyKey
		begin, err := s.idempotency.Begin(ctx, key)
		if err != nil {
			return CheckoutResult{}, err
		}
		if !begin.IsNew {
			var cached CheckoutResult
			if err := json.Unmarshal(begin.Cached, &cached); err != nil {
				return CheckoutResult{}, fmt.Errorf("decode cached checkout: %w", err)
			}
			return cached, nil
		}
		defer func() {
			if err != nil {
				if aerr := s.idempotency.Abort(context.WithoutCancel(ctx), key); aerr != nil {
					s.log.Warn("release idempotency key", zap.String("key", key), zap.Error(aerr))
				}
				return
			}
			raw, _ := json.Marshal(res)
			if cerr := s.idempotency.Complete(context.WithoutCancel(ctx), key, raw); cerr != nil {
				s.log.Warn("store idempotent response", zap.String("key", key), zap.Error(cerr))
			}
		}()
	}

	quote, err := bookings.Price(ctx, s.catalog, tenantID, in.PackageID, in.AddOnIDs)
	if err != nil {
		return CheckoutResult{}, err
	}

	avail, err := s.checker.Check(ctx, tenantID, date)
	if err != nil {
		return CheckoutResult{}, err
	}
	if !avail.Available {
		return CheckoutResult{}, &bookings.ConflictError{Date: date, Reason: string(avail.Reason)}
	}

	req := payments.CheckoutRequest{
		TenantID:  tenantID,
		Quote:     quote,
		EventDate: date,
		Contact:   bookings.Contact{Name: in.Name, Email: in.Email, Phone: in.Phone},
	}
	if in.IdempotencyKey != "" {
		req.IdempotencyKey = "checkout:" + tenantID + ":" + in.IdempotencyKey
	}
	sess, err := s.payments.CreateCheckoutSession(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment session")
		return CheckoutResult{}, err
	}

	s.log.Info("checkout session created",
		zap.String("tenant_id", tenantID),
		zap.String("session_id", sess.ID),
		zap.String("event_date", bookings.FormatDate(date)),
		zap.Int64("total_cents", quote.TotalCents))
	return CheckoutResult{
		CheckoutURL: sess.URL,
		SessionID:   sess.ID,
		TotalCents:  quote.TotalCents,
		Currency:    quote.Currency,
	}, nil
}

// PaymentCompleted is a captured payment, already validated by the caller.
type PaymentCompleted struct {
	TenantID    string
	PackageID   string
	EventDate   time.Time
	Contact     bookings.Contact
	AddOnIDs    []string
	PaymentRef  string
	AmountTotal int64
	Currency    string
}

// OnPaymentCompleted turns a captured payment into a booking. Lock
// contention is retried with backoff; a lost race surfaces as ConflictError.
// A conflict with a booking that already carries this payment reference is
// a replay and returns that booking, unless the booking no longer holds its
// date, in which case the conflict stands.
func (s *Service) OnPaymentCompleted(ctx context.Context, p PaymentCompleted) (bookings.Booking, error) {
	ctx, span := obs.Tracer().Start(ctx, "reservations.OnPaymentCompleted")
	defer span.End()

	date := bookings.NormalizeDate(p.EventDate)
	span.SetAttributes(
		attribute.String("tenant.id", p.TenantID),
		attribute.String("booking.date", bookings.FormatDate(date)),
		attribute.String("payment.ref", p.PaymentRef),
	)
	in := bookings.NewBooking{
		PackageID:  p.PackageID,
		Contact:    p.Contact,
		EventDate:  date,
		AddOnIDs:   p.AddOnIDs,
		PaymentRef: p.PaymentRef,
	}

	b, err := s.createWithRetry(ctx, p.TenantID, in)
	replayed := false
	if errors.Is(err, bookings.ErrConflict) && p.PaymentRef != "" {
		if existing, ferr := s.store.FindByPaymentRef(ctx, p.TenantID, p.PaymentRef); ferr == nil {
			if existing.Status.HoldsDate() {
				b, err, replayed = existing, nil, true
			} else {
				s.log.Error("payment replayed for released booking",
					zap.String("booking_id", existing.ID),
					zap.String("status", string(existing.Status)),
					zap.String("payment_ref", p.PaymentRef))
				err = &bookings.ConflictError{Date: date, Reason: string(existing.Status)}
			}
		}
	}
	if err != nil {
		s.metrics.ReservationFailed(failureReason(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, failureReason(err))
		return bookings.Booking{}, err
	}

	if replayed {
		s.log.Info("payment already booked",
			zap.String("booking_id", b.ID),
			zap.String("payment_ref", p.PaymentRef))
	} else {
		s.metrics.BookingCreated()
		s.log.Info("booking created",
			zap.String("booking_id", b.ID),
			zap.String("tenant_id", b.TenantID),
			zap.String("event_date", bookings.FormatDate(b.EventDate)),
			zap.Int64("total_cents", b.TotalCents))
	}
	if p.AmountTotal > 0 && p.AmountTotal != b.TotalCents {
		s.log.Warn("paid amount differs from catalog total",
			zap.String("booking_id", b.ID),
			zap.Int64("paid_cents", p.AmountTotal),
			zap.Int64("catalog_cents", b.TotalCents))
	}

	if s.events != nil && b.Status == bookings.StatusPaid {
		s.events.Publish(ctx, bookings.NewBookingConfirmed(b))
	}
	return b, nil
}

func (s *Service) createWithRetry(ctx context.Context, tenantID string, in bookings.NewBooking) (bookings.Booking, error) {
	var (
		out     bookings.Booking
		lastErr error
	)
	backoff := retry.WithMaxRetries(s.lockRetries, retry.NewExponential(s.lockRetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		b, err := s.store.Create(ctx, tenantID, in)
		if errors.Is(err, bookings.ErrLockTimeout) {
			lastErr = err
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil && lastErr != nil && ctx.Err() != nil {
		return bookings.Booking{}, lastErr
	}
	return out, err
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, bookings.ErrConflict):
		return "conflict"
	case errors.Is(err, bookings.ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, bookings.ErrNotFound):
		return "not_found"
	case errors.Is(err, bookings.ErrValidation):
		return "validation"
	}
	return "error"
}

func (s *Service) GetBooking(ctx context.Context, tenantID, id string) (bookings.Booking, error) {
	return s.store.FindByID(ctx, tenantID, id)
}

func (s *Service) ListBookings(ctx context.Context, tenantID string, f bookings.ListFilter) ([]bookings.Booking, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return s.store.FindAll(ctx, tenantID, f)
}

func (s *Service) UpdateBookingStatus(ctx context.Context, tenantID, id, status string) (bookings.Booking, error) {
	to, ok := bookings.ParseStatus(status)
	if !ok {
		return bookings.Booking{}, &bookings.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	b, err := s.store.UpdateStatus(ctx, tenantID, id, to)
	if err != nil {
		return bookings.Booking{}, err
	}
	s.log.Info("booking status changed",
		zap.String("booking_id", b.ID),
		zap.String("status", string(b.Status)))
	return b, nil
}
