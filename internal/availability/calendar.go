package availability

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// NoCalendar is used when no external calendar is configured.
type NoCalendar struct{}

func (NoCalendar) IsBusy(context.Context, string, time.Time) (bool, error) { return false, nil }

type CalendarIDs interface {
	CalendarID(ctx context.Context, tenantID string) (string, error)
}

// GoogleCalendar treats a day as busy when the tenant's calendar has any
// busy period overlapping it. Days are measured in loc.
type GoogleCalendar struct {
	svc *calendar.Service
	ids CalendarIDs
	loc *time.Location
}

func NewGoogleCalendar(ctx context.Context, credentialsFile string, ids CalendarIDs, loc *time.Location) (*GoogleCalendar, error) {
	if loc == nil {
		loc = time.UTC
	}
	svc, err := calendar.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(calendar.CalendarReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("google calendar: %w", err)
	}
	return &GoogleCalendar{svc: svc, ids: ids, loc: loc}, nil
}

func (g *GoogleCalendar) IsBusy(ctx context.Context, tenantID string, date time.Time) (bool, error) {
	id, err := g.ids.CalendarID(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if id == "" {
		return false, nil
	}

	start, end := dayWindow(date, g.loc)
	resp, err := g.svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin:  start.Format(time.RFC3339),
		TimeMax:  end.Format(time.RFC3339),
		TimeZone: g.loc.String(),
		Items:    []*calendar.FreeBusyRequestItem{{Id: id}},
	}).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("freebusy query: %w", err)
	}
	cal, ok := resp.Calendars[id]
	if !ok {
		return false, nil
	}
	if len(cal.Errors) > 0 {
		return false, fmt.Errorf("freebusy %s: %s", id, cal.Errors[0].Reason)
	}
	return len(cal.Busy) > 0, nil
}

// dayWindow spans the civil date from local midnight to the next local
// midnight, so DST days are 23 or 25 hours long.
func dayWindow(date time.Time, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
