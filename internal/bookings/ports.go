package bookings

import (
	"context"
	"time"
)

// Store is the transactional booking repository. Create is the only place a
// date becomes held; it fails with ConflictError or LockTimeoutError.
type Store interface {
	Create(ctx context.Context, tenantID string, in NewBooking) (Booking, error)
	FindByID(ctx context.Context, tenantID, id string) (Booking, error)
	FindByPaymentRef(ctx context.Context, tenantID, ref string) (Booking, error)
	FindAll(ctx context.Context, tenantID string, f ListFilter) ([]Booking, error)
	IsDateBooked(ctx context.Context, tenantID string, date time.Time) (bool, error)
	UnavailableDates(ctx context.Context, tenantID string, start, end time.Time) ([]time.Time, error)
	UpdateStatus(ctx context.Context, tenantID, id string, to Status) (Booking, error)
}

type Catalog interface {
	GetPackage(ctx context.Context, tenantID, packageID string) (Package, error)
	GetAddOns(ctx context.Context, tenantID, packageID string, ids []string) ([]AddOn, error)
}

type Blackouts interface {
	IsBlackedOut(ctx context.Context, tenantID string, date time.Time) (bool, error)
	ListBlackouts(ctx context.Context, tenantID string, start, end time.Time) ([]BlackoutDate, error)
}

type TenantResolver interface {
	ResolveAPIKey(ctx context.Context, apiKey string) (Tenant, error)
}

type IdempotencyResult struct {
	IsNew  bool
	Cached []byte
}

// IdempotencyLedger makes client retries of checkout initiation replay the
// first response instead of repeating side effects.
type IdempotencyLedger interface {
	Begin(ctx context.Context, key string) (IdempotencyResult, error)
	Complete(ctx context.Context, key string, result []byte) error
	Abort(ctx context.Context, key string) error
}

type WebhookStatus string

const (
	WebhookReceived  WebhookStatus = "RECEIVED"
	WebhookProcessed WebhookStatus = "PROCESSED"
	WebhookFailed    WebhookStatus = "FAILED"
)

type WebhookEvent struct {
	EventID       string
	TenantID      string
	EventType     string
	Payload       []byte
	Status        WebhookStatus
	Attempts      int
	FailureReason string
	ReceivedAt    time.Time
	ProcessedAt   *time.Time
	UpdatedAt     time.Time
}

type ClaimResult struct {
	// Claimed is true when the caller now owns processing of the event.
	Claimed  bool
	Status   WebhookStatus
	Attempts int
}

// WebhookLedger is the durable dedup record of inbound payment events.
// Claim inserts a RECEIVED entry, or re-claims a FAILED one or a RECEIVED one
// last touched before staleBefore. PROCESSED entries are never re-claimed.
type WebhookLedger interface {
	Claim(ctx context.Context, evt WebhookEvent, staleBefore time.Time) (ClaimResult, error)
	MarkProcessed(ctx context.Context, eventID string, at time.Time) error
	MarkFailed(ctx context.Context, eventID, reason string, at time.Time) error
	Get(ctx context.Context, eventID string) (WebhookEvent, error)
	CountPending(ctx context.Context, olderThan time.Time) (map[WebhookStatus]int, error)
}
