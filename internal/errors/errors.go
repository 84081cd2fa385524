package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Common error types that can be used across the application
var (
	ErrNotFound             = new(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists        = new(ErrCodeAlreadyExists, "resource already exists")
	ErrValidation           = new(ErrCodeValidation, "validation error")
	ErrInvalidOperation     = new(ErrCodeInvalidOperation, "invalid operation")
	ErrPermissionDenied     = new(ErrCodePermissionDenied, "permission denied")
	ErrUnauthorized         = new(ErrCodeUnauthorized, "unauthorized")
	ErrDatabase             = new(ErrCodeDatabase, "database error")
	ErrSystem               = new(ErrCodeSystemError, "system error")
	ErrDecrypt              = new(ErrCodeDecrypt, "decrypt error")
	ErrDuplicateLedgerEntry = new(ErrCodeDuplicateLedgerEntry, "duplicate ledger entry")
	ErrHTTPClient           = new(ErrCodeHTTPClient, "http client error")

	// Pricing failure classification. Permanent failures are flagged on the
	// event and never retried; everything else is treated as transient.
	ErrNoPriceBook    = new(ErrCodeNoPriceBook, "no price book")
	ErrNoMatchingRule = new(ErrCodeNoMatchingRule, "no matching rule")
	ErrInvalidRule    = new(ErrCodeInvalidRule, "invalid rule")

	// maps errors to http status codes
	statusCodeMap = map[error]int{
		ErrDatabase:             http.StatusInternalServerError,
		ErrNotFound:             http.StatusNotFound,
		ErrAlreadyExists:        http.StatusConflict,
		ErrValidation:           http.StatusBadRequest,
		ErrInvalidOperation:     http.StatusBadRequest,
		ErrPermissionDenied:     http.StatusForbidden,
		ErrUnauthorized:         http.StatusUnauthorized,
		ErrSystem:               http.StatusInternalServerError,
		ErrDecrypt:              http.StatusInternalServerError,
		ErrDuplicateLedgerEntry: http.StatusConflict,
		ErrHTTPClient:           http.StatusBadGateway,
		ErrNoPriceBook:          http.StatusUnprocessableEntity,
		ErrNoMatchingRule:       http.StatusUnprocessableEntity,
		ErrInvalidRule:          http.StatusUnprocessableEntity,
	}
)

const (
	ErrCodeSystemError          = "system_error"
	ErrCodeNotFound             = "not_found"
	ErrCodeAlreadyExists        = "already_exists"
	ErrCodeValidation           = "validation_error"
	ErrCodeInvalidOperation     = "invalid_operation"
	ErrCodePermissionDenied     = "permission_denied"
	ErrCodeUnauthorized         = "unauthorized"
	ErrCodeDatabase             = "database_error"
	ErrCodeDecrypt              = "decrypt_error"
	ErrCodeDuplicateLedgerEntry = "duplicate_ledger_entry"
	ErrCodeHTTPClient           = "http_client_error"
	ErrCodeNoPriceBook          = "no_pricebook"
	ErrCodeNoMatchingRule       = "no_matching_rule"
	ErrCodeInvalidRule          = "invalid_rule"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

// new creates a new InternalError
func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidOperation checks if an error is an invalid operation error
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsPermissionDenied checks if an error is a permission denied error
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsDuplicateLedgerEntry reports whether an error is an idempotency-key
// collision on the ledger. This is the only error callers systematically
// swallow.
func IsDuplicateLedgerEntry(err error) bool {
	return errors.Is(err, ErrDuplicateLedgerEntry)
}

// IsPermanentPricingFailure reports whether a pricing error must not be
// retried by the pricing worker.
func IsPermanentPricingFailure(err error) bool {
	return errors.Is(err, ErrNoPriceBook) ||
		errors.Is(err, ErrNoMatchingRule) ||
		errors.Is(err, ErrInvalidRule)
}

// ErrorCodeFromErr returns the machine-readable code for an error
func ErrorCodeFromErr(err error) string {
	for e := range statusCodeMap {
		if errors.Is(err, e) {
			if ie, ok := e.(*InternalError); ok {
				return ie.Code
			}
		}
	}
	return ErrCodeSystemError
}

func HTTPStatusFromErr(err error) int {
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}
