package service

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Error kinds. Callers match them with errors.Is.
var (
	// ErrValidation is returned for missing or malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidAmount is a validation error for non-positive money amounts.
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrValidation)

	// ErrNotFound is returned for unknown customer, product, invoice or payment ids.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientStock is returned when an operation would drive a
	// product quantity below zero.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrPersistence is returned when the store fails a read or write.
	ErrPersistence = errors.New("persistence failure")

	// ErrExternalService is returned when the rate source is unreachable or
	// unparsable and no cached value can stand in.
	ErrExternalService = errors.New("external service unavailable")

	// ErrConcurrency is returned on lock or serialization conflicts.
	ErrConcurrency = errors.New("concurrent modification")
)

// LedgerError carries the failing operation and the subject (a product,
// invoice or payment id) next to the error kind.
type LedgerError struct {
	Op      string
	Kind    error
	Subject string
	Details string
	Err     error
}

func (e *LedgerError) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Subject != "" {
		msg += " (" + e.Subject + ")"
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LedgerError) Unwrap() error { return e.Err }

// Is matches the error kind, so errors.Is(err, ErrNotFound) works without
// exposing the underlying cause.
func (e *LedgerError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func newErr(op string, kind error, subject, details string) error {
	return &LedgerError{Op: op, Kind: kind, Subject: subject, Details: details}
}

func validationErr(op, details string) error {
	return newErr(op, ErrValidation, "", details)
}

func notFound(op, subject string) error {
	return newErr(op, ErrNotFound, subject, "")
}

// classify turns a store error into a LedgerError. Errors that already carry
// a kind pass through untouched.
func classify(op, subject string, err error) error {
	if err == nil {
		return nil
	}
	var le *LedgerError
	if errors.As(err, &le) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &LedgerError{Op: op, Kind: ErrNotFound, Subject: subject}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return &LedgerError{Op: op, Kind: ErrConcurrency, Subject: subject, Err: err}
		case "23505":
			return &LedgerError{Op: op, Kind: ErrValidation, Subject: subject, Details: "duplicate key", Err: err}
		case "23503":
			return &LedgerError{Op: op, Kind: ErrValidation, Subject: subject, Details: "still referenced", Err: err}
		}
	}
	return &LedgerError{Op: op, Kind: ErrPersistence, Subject: subject, Err: err}
}
