package memory

import (
	"context"
	"sync"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
)

type Tenants struct {
	mu    sync.RWMutex
	byKey map[string]bookings.Tenant
}

func NewTenants() *Tenants {
	return &Tenants{byKey: map[string]bookings.Tenant{}}
}

func (t *Tenants) Put(apiKey string, tenant bookings.Tenant) {
	t.mu.Lock()
	t.byKey[apiKey] = tenant
	t.mu.Unlock()
}

func (t *Tenants) ResolveAPIKey(_ context.Context, apiKey string) (bookings.Tenant, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tenant, ok := t.byKey[apiKey]
	if !ok {
		return bookings.Tenant{}, &bookings.NotFoundError{Resource: "tenant", ID: apiKey}
	}
	return tenant, nil
}

func (t *Tenants) CalendarID(_ context.Context, tenantID string) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, tenant := range t.byKey {
		if tenant.ID == tenantID {
			return tenant.CalendarID, nil
		}
	}
	return "", nil
}
