package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/ariefcatur/go-date-bookings/internal/clock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const DefaultReservationTimeout = 3 * time.Second

const bookingColumns = `id::text, tenant_id, package_id, customer_id::text,
	contact_name, contact_email, contact_phone, event_date,
	package_cents, total_cents, currency, status, payment_ref, created_at, updated_at`

type BookingStore struct {
	pool      *pgxpool.Pool
	catalog   *Catalog
	clock     clock.Clock
	txTimeout time.Duration
}

func NewBookingStore(pool *pgxpool.Pool, clk clock.Clock, txTimeout time.Duration) *BookingStore {
	if txTimeout <= 0 {
		txTimeout = DefaultReservationTimeout
	}
	return &BookingStore{pool: pool, catalog: NewCatalog(pool), clock: clk, txTimeout: txTimeout}
}

// dateLockKey is hashed server side into the advisory lock id.
func dateLockKey(tenantID string, date time.Time) string {
	return tenantID + ":" + bookings.FormatDate(date)
}

// Create reserves the date in one serializable transaction. The advisory
// lock is taken with try semantics, so a concurrent reservation of the same
// date fails fast with LockTimeoutError instead of queueing. The partial
// unique index on paid bookings backs the re-check.
func (s *BookingStore) Create(ctx context.Context, tenantID string, in bookings.NewBooking) (bookings.Booking, error) {
	date := bookings.NormalizeDate(in.EventDate)

	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var out bookings.Booking
	err := withTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(ctx context.Context) error {
		tx := txFromContext(ctx)

		var locked bool
		if err := tx.QueryRow(ctx,
			`SELECT pg_try_advisory_xact_lock(hashtextextended($1, 0))`, dateLockKey(tenantID, date),
		).Scan(&locked); err != nil {
			return err
		}
		if !locked {
			return &bookings.LockTimeoutError{Date: date}
		}

		var taken bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM bookings
				WHERE tenant_id = $1 AND event_date = $2 AND status = 'PAID'
			)`, tenantID, date,
		).Scan(&taken); err != nil {
			return err
		}
		if taken {
			return &bookings.ConflictError{Date: date}
		}

		quote, err := bookings.Price(ctx, s.catalog, tenantID, in.PackageID, in.AddOnIDs)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		var customerID string
		if err := tx.QueryRow(ctx, `
			INSERT INTO customers (id, tenant_id, email, name, phone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			ON CONFLICT (tenant_id, email)
			DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone, updated_at = EXCLUDED.updated_at
			RETURNING id::text`,
			uuid.NewString(), tenantID, strings.ToLower(in.Contact.Email), in.Contact.Name, in.Contact.Phone, now,
		).Scan(&customerID); err != nil {
			return fmt.Errorf("upsert customer: %w", err)
		}

		out = bookings.Booking{
			ID:           uuid.NewString(),
			TenantID:     tenantID,
			PackageID:    quote.Package.ID,
			CustomerID:   customerID,
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
		if _, err := tx.Exec(ctx, `
			INSERT INTO bookings (id, tenant_id, package_id, customer_id, contact_name, contact_email,
				contact_phone, event_date, package_cents, total_cents, currency, status, payment_ref,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`,
			out.ID, out.TenantID, out.PackageID, out.CustomerID, out.Contact.Name, out.Contact.Email,
			out.Contact.Phone, out.EventDate, out.PackageCents, out.TotalCents, out.Currency,
			string(out.Status), out.PaymentRef, now,
		); err != nil {
			return err
		}

		for i, li := range out.LineItems {
			if _, err := tx.Exec(ctx, `
				INSERT INTO booking_add_ons (booking_id, position, add_on_id, name, price_cents)
				VALUES ($1, $2, $3, $4, $5)`,
				out.ID, i, li.AddOnID, li.Name, li.PriceCents,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return bookings.Booking{}, reservationError(err, date)
	}
	return out, nil
}

func (s *BookingStore) FindByID(ctx context.Context, tenantID, id string) (bookings.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return bookings.Booking{}, &bookings.NotFoundError{Resource: "booking", ID: id}
	}
	b, err := scanBooking(s.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return bookings.Booking{}, &bookings.NotFoundError{Resource: "booking", ID: id}
	}
	if err != nil {
		return bookings.Booking{}, fmt.Errorf("find booking: %w", err)
	}
	if err := s.loadLineItems(ctx, []*bookings.Booking{&b}); err != nil {
		return bookings.Booking{}, err
	}
	return b, nil
}

func (s *BookingStore) FindByPaymentRef(ctx context.Context, tenantID, ref string) (bookings.Booking, error) {
	if ref == "" {
		return bookings.Booking{}, &bookings.NotFoundError{Resource: "booking", ID: ref}
	}
	b, err := scanBooking(s.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE tenant_id = $1 AND payment_ref = $2`, tenantID, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return bookings.Booking{}, &bookings.NotFoundError{Resource: "booking", ID: ref}
	}
	if err != nil {
		return bookings.Booking{}, fmt.Errorf("find booking by payment ref: %w", err)
	}
	if err := s.loadLineItems(ctx, []*bookings.Booking{&b}); err != nil {
		return bookings.Booking{}, err
	}
	return b, nil
}

func (s *BookingStore) FindAll(ctx context.Context, tenantID string, f bookings.ListFilter) ([]bookings.Booking, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, bookings.NormalizeDate(f.From))
		where = append(where, fmt.Sprintf("event_date >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, bookings.NormalizeDate(f.To))
		where = append(where, fmt.Sprintf("event_date <= $%d", len(args)))
	}
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY event_date, created_at`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []bookings.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ptrs := make([]*bookings.Booking, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	if err := s.loadLineItems(ctx, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BookingStore) IsDateBooked(ctx context.Context, tenantID string, date time.Time) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE tenant_id = $1 AND event_date = $2 AND status = 'PAID'
		)`, tenantID, bookings.NormalizeDate(date),
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check date: %w", err)
	}
	return taken, nil
}

func (s *BookingStore) UnavailableDates(ctx context.Context, tenantID string, start, end time.Time) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT event_date FROM bookings
		WHERE tenant_id = $1 AND status = 'PAID' AND event_date BETWEEN $2 AND $3
		ORDER BY event_date`,
		tenantID, bookings.NormalizeDate(start), bookings.NormalizeDate(end),
	)
	if err != nil {
		return nil, fmt.Errorf("unavailable dates: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, bookings.NormalizeDate(d))
	}
	return out, rows.Err()
}

func (s *BookingStore) UpdateStatus(ctx context.Context, tenantID, id string, to bookings.Status) (bookings.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return bookings.Booking{}, &bookings.NotFoundError{Resource: "booking", ID: id}
	}

	var out bookings.Booking
	err := withTx(ctx, s.pool, pgx.TxOptions{}, func(ctx context.Context) error {
		tx := txFromContext(ctx)
		var current string
		err := tx.QueryRow(ctx,
			`SELECT status FROM bookings WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id,
		).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return &bookings.NotFoundError{Resource: "booking", ID: id}
		}
		if err != nil {
			return err
		}
		from := bookings.Status(current)
		if !bookings.CanTransition(from, to) {
			return &bookings.InvalidTransitionError{From: from, To: to}
		}

		out, err = scanBooking(tx.QueryRow(ctx, `
			UPDATE bookings SET status = $3, updated_at = $4
			WHERE tenant_id = $1 AND id = $2
			RETURNING `+bookingColumns,
			tenantID, id, string(to), s.clock.Now(),
		))
		return err
	})
	if err != nil {
		if errors.Is(err, bookings.ErrNotFound) || errors.Is(err, bookings.ErrInvalidTransition) {
			return bookings.Booking{}, err
		}
		return bookings.Booking{}, fmt.Errorf("update booking status: %w", err)
	}
	if err := s.loadLineItems(ctx, []*bookings.Booking{&out}); err != nil {
		return bookings.Booking{}, err
	}
	return out, nil
}

func (s *BookingStore) loadLineItems(ctx context.Context, bs []*bookings.Booking) error {
	if len(bs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(bs))
	byID := make(map[string]*bookings.Booking, len(bs))
	for _, b := range bs {
		ids = append(ids, b.ID)
		byID[b.ID] = b
	}

	rows, err := s.pool.Query(ctx, `
		SELECT booking_id::text, add_on_id, name, price_cents
		FROM booking_add_ons
		WHERE booking_id = ANY($1::uuid[])
		ORDER BY booking_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bookingID string
		var li bookings.LineItem
		if err := rows.Scan(&bookingID, &li.AddOnID, &li.Name, &li.PriceCents); err != nil {
			return err
		}
		if b := byID[bookingID]; b != nil {
			b.LineItems = append(b.LineItems, li)
		}
	}
	return rows.Err()
}

func scanBooking(row pgx.Row) (bookings.Booking, error) {
	var b bookings.Booking
	var status string
	err := row.Scan(
		&b.ID, &b.TenantID, &b.PackageID, &b.CustomerID,
		&b.Contact.Name, &b.Contact.Email, &b.Contact.Phone, &b.EventDate,
		&b.PackageCents, &b.TotalCents, &b.Currency, &status, &b.PaymentRef,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return bookings.Booking{}, err
	}
	b.Status = bookings.Status(status)
	b.EventDate = bookings.NormalizeDate(b.EventDate)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}
