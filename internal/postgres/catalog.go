package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Catalog reads packages and add-ons. Inside a reservation transaction it
// reads through that transaction.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (c *Catalog) GetPackage(ctx context.Context, tenantID, packageID string) (bookings.Package, error) {
	var p bookings.Package
	err := conn(ctx, c.pool).QueryRow(ctx, `
		SELECT id, tenant_id, name, price_cents, currency, active
		FROM packages WHERE tenant_id = $1 AND id = $2`,
		tenantID, packageID,
	).Scan(&p.ID, &p.TenantID, &p.Name, &p.PriceCents, &p.Currency, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return bookings.Package{}, &bookings.NotFoundError{Resource: "package", ID: packageID}
	}
	if err != nil {
		return bookings.Package{}, fmt.Errorf("get package: %w", err)
	}
	return p, nil
}

func (c *Catalog) GetAddOns(ctx context.Context, tenantID, packageID string, ids []string) ([]bookings.AddOn, error) {
	rows, err := conn(ctx, c.pool).Query(ctx, `
		SELECT id, tenant_id, package_id, name, price_cents, active
		FROM add_ons
		WHERE tenant_id = $1 AND package_id = $2 AND id = ANY($3)`,
		tenantID, packageID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("get add-ons: %w", err)
	}
	defer rows.Close()

	var out []bookings.AddOn
	for rows.Next() {
		var a bookings.AddOn
		if err := rows.Scan(&a.ID, &a.TenantID, &a.PackageID, &a.Name, &a.PriceCents, &a.Active); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
