package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
)

type Blackouts struct {
	mu    sync.RWMutex
	dates map[string]map[time.Time]string
}

func NewBlackouts() *Blackouts {
	return &Blackouts{dates: map[string]map[time.Time]string{}}
}

func (b *Blackouts) Add(tenantID string, date time.Time, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dates[tenantID] == nil {
		b.dates[tenantID] = map[time.Time]string{}
	}
	b.dates[tenantID][bookings.NormalizeDate(date)] = reason
}

func (b *Blackouts) IsBlackedOut(_ context.Context, tenantID string, date time.Time) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.dates[tenantID][bookings.NormalizeDate(date)]
	return ok, nil
}

func (b *Blackouts) ListBlackouts(_ context.Context, tenantID string, start, end time.Time) ([]bookings.BlackoutDate, error) {
	start, end = bookings.NormalizeDate(start), bookings.NormalizeDate(end)
	b.mu.RLock()
	var out []bookings.BlackoutDate
	for d, reason := range b.dates[tenantID] {
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, bookings.BlackoutDate{TenantID: tenantID, Date: d, Reason: reason})
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
