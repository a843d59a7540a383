package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Tenants struct {
	pool *pgxpool.Pool
}

func NewTenants(pool *pgxpool.Pool) *Tenants {
	return &Tenants{pool: pool}
}

func (t *Tenants) ResolveAPIKey(ctx context.Context, apiKey string) (bookings.Tenant, error) {
	var tenant bookings.Tenant
	err := t.pool.QueryRow(ctx,
		`SELECT id, name, calendar_id FROM tenants WHERE api_key = $1`, apiKey,
	).Scan(&tenant.ID, &tenant.Name, &tenant.CalendarID)
	if errors.Is(err, pgx.ErrNoRows) {
		return bookings.Tenant{}, &bookings.NotFoundError{Resource: "tenant", ID: "api key"}
	}
	if err != nil {
		return bookings.Tenant{}, fmt.Errorf("resolve tenant: %w", err)
	}
	return tenant, nil
}

// CalendarID returns the external calendar of a tenant, or "" when none is
// linked.
func (t *Tenants) CalendarID(ctx context.Context, tenantID string) (string, error) {
	var id string
	err := t.pool.QueryRow(ctx, `SELECT calendar_id FROM tenants WHERE id = $1`, tenantID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tenant calendar: %w", err)
	}
	return id, nil
}
