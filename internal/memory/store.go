// Package memory holds in-process implementations of the booking ports.
// Every value is an isolated instance; nothing is shared between stores.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/ariefcatur/go-date-bookings/internal/clock"
	"github.com/google/uuid"
)

type Store struct {
	catalog bookings.Catalog
	clock   clock.Clock

	// held is how long Create keeps the date lock after its checks. Tests use
	// it to widen the race window.
	held time.Duration

	mu        sync.RWMutex
	bookings  map[string]bookings.Booking
	customers map[string]string // tenant|email -> customer id

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

type StoreOption func(*Store)

func WithLockHold(d time.Duration) StoreOption {
	return func(s *Store) { s.held = d }
}

func NewStore(catalog bookings.Catalog, clk clock.Clock, opts ...StoreOption) *Store {
	s := &Store{
		catalog:   catalog,
		clock:     clk,
		bookings:  map[string]bookings.Booking{},
		customers: map[string]string{},
		locks:     map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) dateLock(tenantID string, date time.Time) *sync.Mutex {
	key := tenantID + ":" + bookings.FormatDate(date)
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *Store) Create(ctx context.Context, tenantID string, in bookings.NewBooking) (bookings.Booking, error) {
	date := bookings.NormalizeDate(in.EventDate)

	lock := s.dateLock(tenantID, date)
	if !lock.TryLock() {
		return bookings.Booking{}, &bookings.LockTimeoutError{Date: date}
	}
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return bookings.Booking{}, &bookings.LockTimeoutError{Date: date, Err: err}
	}

	booked, err := s.IsDateBooked(ctx, tenantID, date)
	if err != nil {
		return bookings.Booking{}, err
	}
	if booked {
		return bookings.Booking{}, &bookings.ConflictError{Date: date}
	}

	quote, err := bookings.Price(ctx, s.catalog, tenantID, in.PackageID, in.AddOnIDs)
	if err != nil {
		return bookings.Booking{}, err
	}

	if s.held > 0 {
		select {
		case <-time.After(s.held):
		case <-ctx.Done():
			return bookings.Booking{}, &bookings.LockTimeoutError{Date: date, Err: ctx.Err()}
		}
	}

	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.PaymentRef != "" {
		for _, b := range s.bookings {
			if b.TenantID == tenantID && b.PaymentRef == in.PaymentRef {
				return bookings.Booking{}, &bookings.ConflictError{Date: date}
			}
		}
	}

	b := bookings.Booking{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		PackageID:    quote.Package.ID,
		CustomerID:   s.upsertCustomerLocked(tenantID, in.Contact.Email),
		Contact:      in.Contact,
		EventDate:    date,
		LineItems:    quote.LineItems,
		PackageCents: quote.Package.PriceCents,
		TotalCents:   quote.TotalCents,
		Currency:     quote.Currency,
		Status:       bookings.StatusPaid,
		PaymentRef:   in.PaymentRef,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.bookings[b.ID] = b
	return cloneBooking(b), nil
}

func (s *Store) upsertCustomerLocked(tenantID, email string) string {
	key := tenantID + "|" + strings.ToLower(email)
	if id, ok := s.customers[key]; ok {
		return id
	}
	id := uuid.NewString()
	s.customers[key] = id
	return id
}

func (s *Store) FindByID(_ context.Context, tenantID, id string) (bookings.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok || b.TenantID != tenantID {
		return bookings.Booking{}, &bookings.NotFoundError{Resource: "booking", ID: id}
	}
	return cloneBooking(b), nil
}

func (s *Store) FindByPaymentRef(_ context.Context, tenantID, ref string) (bookings.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bookings {
		if b.TenantID == tenantID && b.PaymentRef == ref {
			return cloneBooking(b), nil
		}
	}
	return bookings.Booking{}, &bookings.NotFoundError{Resource: "booking", ID: ref}
}

func (s *Store) FindAll(_ context.Context, tenantID string, f bookings.ListFilter) ([]bookings.Booking, error) {
	s.mu.RLock()
	var out []bookings.Booking
	for _, b := range s.bookings {
		if b.TenantID != tenantID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && b.EventDate.Before(bookings.NormalizeDate(f.From)) {
			continue
		}
		if !f.To.IsZero() && b.EventDate.After(bookings.NormalizeDate(f.To)) {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EventDate.Equal(out[j].EventDate) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].EventDate.Before(out[j].EventDate)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) IsDateBooked(_ context.Context, tenantID string, date time.Time) (bool, error) {
	date = bookings.NormalizeDate(date)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bookings {
		if b.TenantID == tenantID && b.EventDate.Equal(date) && b.Status.HoldsDate() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UnavailableDates(_ context.Context, tenantID string, start, end time.Time) ([]time.Time, error) {
	start, end = bookings.NormalizeDate(start), bookings.NormalizeDate(end)
	s.mu.RLock()
	seen := map[time.Time]bool{}
	for _, b := range s.bookings {
		if b.TenantID != tenantID || !b.Status.HoldsDate() {
			continue
		}
		if b.EventDate.Before(start) || b.EventDate.After(end) {
			continue
		}
		seen[b.EventDate] = true
	}
	s.mu.RUnlock()

	out := make([]time.Time, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *Store) UpdateStatus(_ context.Context, tenantID, id string, to bookings.Status) (bookings.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.TenantID != tenantID {
		return bookings.Booking{}, &bookings.NotFoundError{Resource: "booking", ID: id}
	}
	if !bookings.CanTransition(b.Status, to) {
		return bookings.Booking{}, &bookings.InvalidTransitionError{From: b.Status, To: to}
	}
	b.Status = to
	b.UpdatedAt = s.clock.Now()
	s.bookings[id] = b
	return cloneBooking(b), nil
}

func cloneBooking(b bookings.Booking) bookings.Booking {
	if b.LineItems != nil {
		b.LineItems = append([]bookings.LineItem(nil), b.LineItems...)
	}
	return b
}
