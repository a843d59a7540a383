package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/ariefcatur/go-date-bookings/internal/clock"
	"github.com/ariefcatur/go-date-bookings/internal/testutil"
)

var testNow = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func newBooking(t *testing.T, date, ref string) bookings.NewBooking {
	t.Helper()
	d, err := bookings.ParseDate(date)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return bookings.NewBooking{
		PackageID:  "pkg-gold",
		Contact:    bookings.Contact{Name: "Ana", Email: "Ana@Example.com", Phone: "+1555"},
		EventDate:  d,
		AddOnIDs:   []string{"drone"},
		PaymentRef: ref,
	}
}

func TestBookingStore(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.ApplyMigrations(t, context.Background(), pool)
	store := NewBookingStore(pool, clock.NewManual(testNow), 0)

	t.Run("Create prices from catalog and reads back", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.SeedCatalog(t, ctx, pool, "t1", "key-1")

		created, err := store.Create(ctx, "t1", newBooking(t, "2025-06-15T23:30:00-05:00", "cs_1"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if created.TotalCents != 175000 || created.Status != bookings.StatusPaid {
			t.Fatalf("unexpected booking: %+v", created)
		}

		got, err := store.FindByID(ctx, "t1", created.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if bookings.FormatDate(got.EventDate) != "2025-06-15" {
			t.Fatalf("expected 2025-06-15, got %s", bookings.FormatDate(got.EventDate))
		}
		if got.CustomerID != created.CustomerID || got.PaymentRef != "cs_1" {
			t.Fatalf("unexpected read back: %+v", got)
		}
		if len(got.LineItems) != 1 || got.LineItems[0].AddOnID != "drone" || got.LineItems[0].PriceCents != 25000 {
			t.Fatalf("unexpected line items: %+v", got.LineItems)
		}

		if _, err := store.FindByID(ctx, "t1", "not-a-uuid"); !errors.Is(err, bookings.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		byRef, err := store.FindByPaymentRef(ctx, "t1", "cs_1")
		if err != nil || byRef.ID != created.ID {
			t.Fatalf("expected booking by ref, got %+v err=%v", byRef, err)
		}
	})

	t.Run("FindAll loads line items for every booking", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.SeedCatalog(t, ctx, pool, "t1", "key-1")

		for _, in := range []bookings.NewBooking{
			newBooking(t, "2025-06-15", "cs_1"),
			newBooking(t, "2025-06-16", "cs_2"),
		} {
			if _, err := store.Create(ctx, "t1", in); err != nil {
				t.Fatalf("seed: %v", err)
			}
		}
		all, err := store.FindAll(ctx, "t1", bookings.ListFilter{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 bookings, got %d", len(all))
		}
		for _, b := range all {
			if len(b.LineItems) != 1 || b.LineItems[0].AddOnID != "drone" {
				t.Fatalf("unexpected line items for %s: %+v", b.ID, b.LineItems)
			}
		}
	})

	t.Run("Create conflicts on a booked date", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.SeedCatalog(t, ctx, pool, "t1", "key-1")

		if _, err := store.Create(ctx, "t1", newBooking(t, "2025-06-15", "cs_1")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		_, err := store.Create(ctx, "t1", newBooking(t, "2025-06-15", "cs_2"))
		var conflict *bookings.ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
	})

	t.Run("concurrent Create on one date yields exactly one booking", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.SeedCatalog(t, ctx, pool, "t1", "key-1")

		const n = 10
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			others    []error
		)
		inputs := make([]bookings.NewBooking, n)
		for i := range inputs {
			inputs[i] = newBooking(t, "2025-07-04", "cs_"+string(rune('a'+i)))
		}
		start := make(chan struct{})
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, err := store.Create(ctx, "t1", inputs[i])
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, bookings.ErrConflict), errors.Is(err, bookings.ErrLockTimeout):
				default:
					others = append(others, err)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		if len(others) > 0 {
			t.Fatalf("unexpected errors: %v", others)
		}
		if successes != 1 {
			t.Fatalf("expected exactly 1 success, got %d", successes)
		}
		var count int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE event_date = '2025-07-04'`).Scan(&count); err != nil {
			t.Fatalf("count: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected 1 row, got %d", count)
		}
	})

	t.Run("UpdateStatus releases the date", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.SeedCatalog(t, ctx, pool, "t1", "key-1")

		b, err := store.Create(ctx, "t1", newBooking(t, "2025-08-01", "cs_1"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		updated, err := store.UpdateStatus(ctx, "t1", b.ID, bookings.StatusCanceled)
		if err != nil || updated.Status != bookings.StatusCanceled {
			t.Fatalf("expected CANCELED, got %+v err=%v", updated, err)
		}
		if _, err := store.UpdateStatus(ctx, "t1", b.ID, bookings.StatusRefunded); !errors.Is(err, bookings.ErrInvalidTransition) {
			t.Fatalf("expected invalid transition, got %v", err)
		}
		if _, err := store.Create(ctx, "t1", newBooking(t, "2025-08-01", "cs_2")); err != nil {
			t.Fatalf("expected rebooking to succeed, got %v", err)
		}
	})

	t.Run("UnavailableDates is sorted and bounded", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.SeedCatalog(t, ctx, pool, "t1", "key-1")

		for _, d := range []string{"2025-06-20", "2025-06-02", "2025-07-01"} {
			if _, err := store.Create(ctx, "t1", newBooking(t, d, "cs_"+d)); err != nil {
				t.Fatalf("create %s: %v", d, err)
			}
		}
		got, err := store.UnavailableDates(ctx, "t1",
			time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 2 || bookings.FormatDate(got[0]) != "2025-06-02" || bookings.FormatDate(got[1]) != "2025-06-20" {
			t.Fatalf("unexpected dates: %v", got)
		}
	})

	t.Run("Create rejects unknown add-on", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.SeedCatalog(t, ctx, pool, "t1", "key-1")

		in := newBooking(t, "2025-09-01", "cs_1")
		in.AddOnIDs = []string{"photobooth"}
		if _, err := store.Create(ctx, "t1", in); !errors.Is(err, bookings.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestCatalogTenantsBlackouts(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)
	testutil.SeedCatalog(t, ctx, pool, "t1", "key-1")

	tenant, err := NewTenants(pool).ResolveAPIKey(ctx, "key-1")
	if err != nil || tenant.ID != "t1" {
		t.Fatalf("expected tenant t1, got %+v err=%v", tenant, err)
	}
	if _, err := NewTenants(pool).ResolveAPIKey(ctx, "nope"); !errors.Is(err, bookings.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := NewCatalog(pool).GetPackage(ctx, "t1", "pkg-missing"); !errors.Is(err, bookings.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	date := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	testutil.InsertBlackout(t, ctx, pool, "t1", date, "holiday")
	blackouts := NewBlackouts(pool)
	if ok, err := blackouts.IsBlackedOut(ctx, "t1", date); err != nil || !ok {
		t.Fatalf("expected blackout, got %v err=%v", ok, err)
	}
	list, err := blackouts.ListBlackouts(ctx, "t1", date.AddDate(0, 0, -1), date.AddDate(0, 0, 1))
	if err != nil || len(list) != 1 || list[0].Reason != "holiday" {
		t.Fatalf("unexpected blackouts: %+v err=%v", list, err)
	}
}
