package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// reservationError maps a failed reservation transaction onto the booking
// error taxonomy. Domain errors raised inside the transaction pass through.
func reservationError(err error, date time.Time) error {
	switch {
	case errors.Is(err, bookings.ErrConflict),
		errors.Is(err, bookings.ErrLockTimeout),
		errors.Is(err, bookings.ErrNotFound),
		errors.Is(err, bookings.ErrValidation):
		return err
	}

	switch pgCode(err) {
	case codeUniqueViolation:
		return &bookings.ConflictError{Date: date}
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable, codeQueryCanceled:
		return &bookings.LockTimeoutError{Date: date, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return &bookings.LockTimeoutError{Date: date, Err: err}
	}
	return err
}
