package bookings

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("date already booked")
	ErrLockTimeout         = errors.New("reservation lock timeout")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrWebhookValidation   = errors.New("webhook validation failed")
	ErrWebhookProcessing   = errors.New("webhook processing failed")
	ErrIdempotencyInFlight = errors.New("idempotency key in use")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError means the date is held by another booking (or, with a
// Reason, is otherwise unavailable at checkout time).
type ConflictError struct {
	Date   time.Time
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" && e.Reason != "booked" {
		return fmt.Sprintf("date %s is unavailable (%s)", FormatDate(e.Date), e.Reason)
	}
	return fmt.Sprintf("date %s is already booked", FormatDate(e.Date))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// LockTimeoutError is contention, not a lost race: the caller may retry.
type LockTimeoutError struct {
	Date time.Time
	Err  error
}

func (e *LockTimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not lock date %s: %v", FormatDate(e.Date), e.Err)
	}
	return fmt.Sprintf("could not lock date %s", FormatDate(e.Date))
}

func (e *LockTimeoutError) Is(target error) bool { return target == ErrLockTimeout }
func (e *LockTimeoutError) Unwrap() error        { return e.Err }

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move booking from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// WebhookValidationError rejects an untrusted or malformed notification.
// The sender should not retry it.
type WebhookValidationError struct {
	EventID string
	Reason  string
	Err     error
}

func (e *WebhookValidationError) Error() string {
	msg := "webhook rejected: " + e.Reason
	if e.EventID != "" {
		msg = fmt.Sprintf("webhook %s rejected: %s", e.EventID, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *WebhookValidationError) Is(target error) bool { return target == ErrWebhookValidation }
func (e *WebhookValidationError) Unwrap() error        { return e.Err }

// WebhookProcessingError is a business failure on a verified notification.
// The sender should retry it.
type WebhookProcessingError struct {
	EventID string
	Err     error
}

func (e *WebhookProcessingError) Error() string {
	return fmt.Sprintf("webhook %s processing failed: %v", e.EventID, e.Err)
}

func (e *WebhookProcessingError) Is(target error) bool { return target == ErrWebhookProcessing }
func (e *WebhookProcessingError) Unwrap() error        { return e.Err }
