package redisx

import "time"

const (
	// Checkout idempotency: idem:checkout:{tenant_id}:{Idempotency-Key} -> "pending" | response JSON
	KeyIdemCheckout = "idem:checkout:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Tenant lookup cache: tenant:apikey:{api_key} -> tenant JSON
	KeyTenantByAPIKey = "tenant:apikey:%s"
)

const pendingMarker = "pending"

var (
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
	TTLTenantCache = 5 * time.Minute
)
