package memory

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/ariefcatur/go-date-bookings/internal/clock"
)

var testNow = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func newTestCatalog() *Catalog {
	c := NewCatalog()
	c.PutPackage(bookings.Package{ID: "pkg-gold", TenantID: "t1", Name: "Gold", PriceCents: 150000, Currency: "usd", Active: true})
	c.PutPackage(bookings.Package{ID: "pkg-gold", TenantID: "t2", Name: "Gold", PriceCents: 90000, Currency: "usd", Active: true})
	c.PutAddOn(bookings.AddOn{ID: "drone", TenantID: "t1", PackageID: "pkg-gold", Name: "Drone", PriceCents: 25000, Active: true})
	return c
}

func newBooking(date string, ref string) bookings.NewBooking {
	d, err := bookings.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return bookings.NewBooking{
		PackageID:  "pkg-gold",
		Contact:    bookings.Contact{Name: "Ana & Leo", Email: "ana@example.com", Phone: "+1555"},
		EventDate:  d,
		AddOnIDs:   []string{"drone"},
		PaymentRef: ref,
	}
}

func TestStore_ConcurrentCreateSameDate(t *testing.T) {
	t.Parallel()

	store := NewStore(newTestCatalog(), clock.NewSystem(), WithLockHold(2*time.Millisecond))
	const n = 32

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		timeouts  int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := store.Create(context.Background(), "t1", newBooking("2025-06-15", "cs_"+string(rune('a'+i))))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, bookings.ErrConflict):
				conflicts++
			case errors.Is(err, bookings.ErrLockTimeout):
				timeouts++
			default:
				others = append(others, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly 1 success, got %d", successes)
	}
	if len(others) > 0 {
		t.Fatalf("expected only conflict/lock timeout failures, got %v", others)
	}
	if conflicts+timeouts != n-1 {
		t.Fatalf("expected %d failures, got %d", n-1, conflicts+timeouts)
	}
}

func TestStore_CreateAndRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(newTestCatalog(), clock.NewManual(testNow))

	created, err := store.Create(ctx, "t1", newBooking("2025-06-15T23:30:00-05:00", "cs_1"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if bookings.FormatDate(created.EventDate) != "2025-06-15" {
		t.Fatalf("expected event date 2025-06-15, got %s", bookings.FormatDate(created.EventDate))
	}
	if created.TotalCents != 175000 {
		t.Fatalf("expected catalog-priced total 175000, got %d", created.TotalCents)
	}
	if created.Status != bookings.StatusPaid {
		t.Fatalf("expected PAID, got %s", created.Status)
	}

	got, err := store.FindByID(ctx, "t1", created.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !reflect.DeepEqual(got, created) {
		t.Fatalf("expected round trip to match\nwant %+v\ngot  %+v", created, got)
	}

	if _, err := store.FindByID(ctx, "t2", created.ID); !errors.Is(err, bookings.ErrNotFound) {
		t.Fatalf("expected other tenant lookup to miss, got %v", err)
	}

	byRef, err := store.FindByPaymentRef(ctx, "t1", "cs_1")
	if err != nil || byRef.ID != created.ID {
		t.Fatalf("expected lookup by payment ref to find %s, got %+v err=%v", created.ID, byRef, err)
	}
}

func TestStore_SameDateDifferentTenants(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(newTestCatalog(), clock.NewManual(testNow))

	if _, err := store.Create(ctx, "t1", newBooking("2025-06-15", "cs_1")); err != nil {
		t.Fatalf("t1: expected no error, got %v", err)
	}
	in := newBooking("2025-06-15", "cs_2")
	in.AddOnIDs = nil
	if _, err := store.Create(ctx, "t2", in); err != nil {
		t.Fatalf("t2: expected no error, got %v", err)
	}
	_, err := store.Create(ctx, "t1", newBooking("2025-06-15", "cs_3"))
	if !errors.Is(err, bookings.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestStore_ReleasedDateCanBeRebooked(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(newTestCatalog(), clock.NewManual(testNow))

	first, err := store.Create(ctx, "t1", newBooking("2025-06-15", "cs_1"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := store.UpdateStatus(ctx, "t1", first.ID, bookings.StatusRefunded); err != nil {
		t.Fatalf("expected refund to succeed, got %v", err)
	}
	if booked, _ := store.IsDateBooked(ctx, "t1", first.EventDate); booked {
		t.Fatalf("expected refunded booking to release the date")
	}
	if _, err := store.Create(ctx, "t1", newBooking("2025-06-15", "cs_2")); err != nil {
		t.Fatalf("expected rebooking to succeed, got %v", err)
	}
	if _, err := store.UpdateStatus(ctx, "t1", first.ID, bookings.StatusPaid); !errors.Is(err, bookings.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestStore_UnavailableDates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(newTestCatalog(), clock.NewManual(testNow))

	for i, d := range []string{"2025-06-20", "2025-06-15", "2025-07-01", "2025-05-31"} {
		if _, err := store.Create(ctx, "t1", newBooking(d, "cs_"+d)); err != nil {
			t.Fatalf("booking %d: expected no error, got %v", i, err)
		}
	}
	canceled, err := store.Create(ctx, "t1", newBooking("2025-06-25", "cs_cancel"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := store.UpdateStatus(ctx, "t1", canceled.ID, bookings.StatusCanceled); err != nil {
		t.Fatalf("expected cancel to succeed, got %v", err)
	}

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	got, err := store.UnavailableDates(ctx, "t1", start, end)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := []string{"2025-06-15", "2025-06-20"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if bookings.FormatDate(got[i]) != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestStore_CreateRejectsUnknownPackage(t *testing.T) {
	t.Parallel()

	store := NewStore(newTestCatalog(), clock.NewManual(testNow))
	in := newBooking("2025-06-15", "cs_1")
	in.PackageID = "pkg-missing"
	_, err := store.Create(context.Background(), "t1", in)
	if !errors.Is(err, bookings.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if booked, _ := store.IsDateBooked(context.Background(), "t1", in.EventDate); booked {
		t.Fatalf("expected failed create to leave the date free")
	}
}
