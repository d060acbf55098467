// Package apierror provides the JSON error envelope of the API and the
// mapping from ledger error kinds to HTTP status codes. Internal causes
// (SQL errors, upstream bodies) never reach the client.
package apierror

import (
	"errors"
	"net/http"

	"bodega/internal/service"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation failed", Kind: KindValidation, Fields: fields}
}

// Kind names sent to clients.
const (
	KindValidation        = "validation"
	KindInvalidAmount     = "invalid_amount"
	KindNotFound          = "not_found"
	KindInsufficientStock = "insufficient_stock"
	KindConcurrency       = "concurrency"
	KindPersistence       = "persistence"
	KindExternalService   = "external_service"
	KindInternal          = "internal"
)

// Status maps an error to its HTTP status code and kind name. Order matters:
// ErrInvalidAmount wraps ErrValidation.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, KindInvalidAmount
	case errors.Is(err, service.ErrValidation):
		return http.StatusUnprocessableEntity, KindValidation
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, KindNotFound
	case errors.Is(err, service.ErrInsufficientStock):
		return http.StatusConflict, KindInsufficientStock
	case errors.Is(err, service.ErrConcurrency):
		return http.StatusConflict, KindConcurrency
	case errors.Is(err, service.ErrExternalService):
		return http.StatusServiceUnavailable, KindExternalService
	case errors.Is(err, service.ErrPersistence):
		return http.StatusInternalServerError, KindPersistence
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

// FromError builds the response for err. Client errors carry the ledger
// message, which names the offending product or id; server errors do not.
func FromError(err error) (int, *APIError) {
	status, kind := Status(err)
	if status >= http.StatusInternalServerError {
		msg := "internal server error"
		if kind == KindExternalService {
			msg = "exchange rate unavailable"
		}
		return status, &APIError{Detail: msg, Kind: kind}
	}
	return status, &APIError{Detail: clientMessage(err), Kind: kind}
}

// clientMessage drops the wrapped cause of a LedgerError; the cause may be a
// driver error.
func clientMessage(err error) string {
	var le *service.LedgerError
	if errors.As(err, &le) {
		msg := le.Op + ": " + le.Kind.Error()
		if le.Subject != "" {
			msg += " (" + le.Subject + ")"
		}
		if le.Details != "" {
			msg += ": " + le.Details
		}
		return msg
	}
	return err.Error()
}
