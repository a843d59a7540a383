package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type cachedTenant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CalendarID string `json:"calendar_id,omitempty"`
}

// TenantCache sits in front of a TenantResolver. Only hits are cached, and a
// Redis failure falls through to the wrapped resolver.
type TenantCache struct {
	next bookings.TenantResolver
	rdb  *redis.Client
	ttl  time.Duration
	log  *zap.Logger
}

func NewTenantCache(next bookings.TenantResolver, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *TenantCache {
	if ttl <= 0 {
		ttl = TTLTenantCache
	}
	return &TenantCache{next: next, rdb: rdb, ttl: ttl, log: log}
}

func (c *TenantCache) ResolveAPIKey(ctx context.Context, apiKey string) (bookings.Tenant, error) {
	key := fmt.Sprintf(KeyTenantByAPIKey, apiKey)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var ct cachedTenant
		if err := json.Unmarshal(raw, &ct); err == nil {
			return bookings.Tenant{ID: ct.ID, Name: ct.Name, CalendarID: ct.CalendarID}, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("tenant cache read failed", zap.Error(err))
	}

	tenant, err := c.next.ResolveAPIKey(ctx, apiKey)
	if err != nil {
		return bookings.Tenant{}, err
	}
	raw, _ := json.Marshal(cachedTenant{ID: tenant.ID, Name: tenant.Name, CalendarID: tenant.CalendarID})
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("tenant cache write failed", zap.Error(err))
	}
	return tenant, nil
}
