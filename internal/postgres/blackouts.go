package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Blackouts struct {
	pool *pgxpool.Pool
}

func NewBlackouts(pool *pgxpool.Pool) *Blackouts {
	return &Blackouts{pool: pool}
}

func (b *Blackouts) IsBlackedOut(ctx context.Context, tenantID string, date time.Time) (bool, error) {
	var exists bool
	err := b.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blackout_dates WHERE tenant_id = $1 AND date = $2)`,
		tenantID, bookings.NormalizeDate(date),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check blackout: %w", err)
	}
	return exists, nil
}

func (b *Blackouts) ListBlackouts(ctx context.Context, tenantID string, start, end time.Time) ([]bookings.BlackoutDate, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT tenant_id, date, reason FROM blackout_dates
		WHERE tenant_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`,
		tenantID, bookings.NormalizeDate(start), bookings.NormalizeDate(end),
	)
	if err != nil {
		return nil, fmt.Errorf("list blackouts: %w", err)
	}
	defer rows.Close()

	var out []bookings.BlackoutDate
	for rows.Next() {
		var d bookings.BlackoutDate
		if err := rows.Scan(&d.TenantID, &d.Date, &d.Reason); err != nil {
			return nil, err
		}
		d.Date = bookings.NormalizeDate(d.Date)
		out = append(out, d)
	}
	return out, rows.Err()
}
