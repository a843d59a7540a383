package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/ariefcatur/go-date-bookings/internal/metrics"
	"go.uber.org/zap"
)

// MaxRangeDays bounds UnavailableDates queries.
const MaxRangeDays = 366

type Reason string

const (
	ReasonBlackout Reason = "blackout"
	ReasonBooked   Reason = "booked"
	ReasonCalendar Reason = "calendar"
)

type Result struct {
	Date      time.Time
	Available bool
	Reason    Reason
}

// BookedDates is the read side of the booking store the checker needs.
type BookedDates interface {
	IsDateBooked(ctx context.Context, tenantID string, date time.Time) (bool, error)
	UnavailableDates(ctx context.Context, tenantID string, start, end time.Time) ([]time.Time, error)
}

type Calendar interface {
	IsBusy(ctx context.Context, tenantID string, date time.Time) (bool, error)
}

type Checker struct {
	blackouts bookings.Blackouts
	booked    BookedDates
	calendar  Calendar
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewChecker(blackouts bookings.Blackouts, booked BookedDates, cal Calendar, log *zap.Logger, m *metrics.Metrics) *Checker {
	if cal == nil {
		cal = NoCalendar{}
	}
	return &Checker{blackouts: blackouts, booked: booked, calendar: cal, log: log, metrics: m}
}

// Check consults blackouts, then bookings, then the external calendar, and
// stops at the first source that rules the date out. Calendar errors fail
// open: the booking store still enforces one booking per date.
func (c *Checker) Check(ctx context.Context, tenantID string, date time.Time) (Result, error) {
	date = bookings.NormalizeDate(date)
	res, err := c.check(ctx, tenantID, date)
	if err != nil {
		return Result{}, err
	}
	if res.Available {
		c.metrics.AvailabilityChecked("available")
	} else {
		c.metrics.AvailabilityChecked(string(res.Reason))
	}
	return res, nil
}

func (c *Checker) check(ctx context.Context, tenantID string, date time.Time) (Result, error) {
	blocked, err := c.blackouts.IsBlackedOut(ctx, tenantID, date)
	if err != nil {
		return Result{}, fmt.Errorf("availability blackouts: %w", err)
	}
	if blocked {
		return Result{Date: date, Reason: ReasonBlackout}, nil
	}

	booked, err := c.booked.IsDateBooked(ctx, tenantID, date)
	if err != nil {
		return Result{}, fmt.Errorf("availability bookings: %w", err)
	}
	if booked {
		return Result{Date: date, Reason: ReasonBooked}, nil
	}

	busy, err := c.calendar.IsBusy(ctx, tenantID, date)
	if err != nil {
		c.log.Warn("calendar lookup failed, treating date as free",
			zap.String("tenant_id", tenantID),
			zap.String("date", bookings.FormatDate(date)),
			zap.Error(err))
		return Result{Date: date, Available: true}, nil
	}
	if busy {
		return Result{Date: date, Reason: ReasonCalendar}, nil
	}
	return Result{Date: date, Available: true}, nil
}

// UnavailableDates is the union of booked and blacked-out dates in
// [start, end], ascending and without duplicates. The calendar is not
// consulted for ranges.
func (c *Checker) UnavailableDates(ctx context.Context, tenantID string, start, end time.Time) ([]time.Time, error) {
	start, end = bookings.NormalizeDate(start), bookings.NormalizeDate(end)
	if end.Before(start) {
		return nil, &bookings.ValidationError{Field: "endDate", Reason: "must not be before startDate"}
	}
	if end.Sub(start) > MaxRangeDays*24*time.Hour {
		return nil, &bookings.ValidationError{Field: "endDate", Reason: fmt.Sprintf("range exceeds %d days", MaxRangeDays)}
	}

	booked, err := c.booked.UnavailableDates(ctx, tenantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("unavailable bookings: %w", err)
	}
	blackouts, err := c.blackouts.ListBlackouts(ctx, tenantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("unavailable blackouts: %w", err)
	}

	seen := make(map[time.Time]struct{}, len(booked)+len(blackouts))
	out := make([]time.Time, 0, len(booked)+len(blackouts))
	add := func(d time.Time) {
		d = bookings.NormalizeDate(d)
		if _, ok := seen[d]; ok {
			return
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	for _, d := range booked {
		add(d)
	}
	for _, b := range blackouts {
		add(b.Date)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}
