// Package errors defines the domain error taxonomy shared by services and handlers.
// Every failure that reaches a caller carries a stable code and the HTTP status it maps to.
package errors

import (
	"errors"
	"net/http"
)

// DomainError is a typed, caller-facing failure.
type DomainError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on Code so copies made by WithMessage/Wrap still satisfy errors.Is against the sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy carrying a more specific message.
func (e *DomainError) WithMessage(msg string) *DomainError {
	cp := *e
	cp.Message = msg
	return &cp
}

// Wrap returns a copy with err attached as the cause.
func (e *DomainError) Wrap(err error) *DomainError {
	cp := *e
	cp.Err = err
	return &cp
}

// As extracts a DomainError from an error chain.
func As(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the domain code of err, or INTERNAL_ERROR for anything untyped.
func CodeOf(err error) string {
	if de, ok := As(err); ok {
		return de.Code
	}
	return ErrInternal.Code
}

func newError(code string, status int, msg string) *DomainError {
	return &DomainError{Code: code, Message: msg, Status: status}
}

// Validation errors.
var (
	ErrValidation   = newError("VALIDATION_ERROR", http.StatusBadRequest, "invalid request")
	ErrIBANInvalid  = newError("IBAN_INVALID", http.StatusBadRequest, "invalid IBAN")
	ErrEDRPOInvalid = newError("EDRPO_INVALID", http.StatusBadRequest, "invalid EDRPOU")
	// ErrDailyLimitReached is a 400 but kept distinct from ErrValidation so clients can branch on it.
	ErrDailyLimitReached = newError("DAILY_LIMIT_REACHED", http.StatusBadRequest, "daily payment link limit reached")
)

// Authentication errors.
var (
	ErrAuthHeaderMissing = newError("AUTH_HEADER_MISSING", http.StatusUnauthorized, "missing authorization header")
	ErrInvalidAuthFormat = newError("INVALID_AUTH_FORMAT", http.StatusUnauthorized, "invalid authorization format")
	ErrInvalidToken      = newError("INVALID_TOKEN", http.StatusUnauthorized, "invalid token")
)

// Authorization errors.
var (
	ErrIPNotAllowed    = newError("IP_NOT_ALLOWED", http.StatusForbidden, "client IP is not allowed")
	ErrCompanyDisabled = newError("COMPANY_DISABLED", http.StatusForbidden, "company is disabled")
	ErrForbidden       = newError("FORBIDDEN", http.StatusForbidden, "insufficient permissions")
	ErrRevealDisabled  = newError("TOKEN_REVEAL_DISABLED", http.StatusForbidden, "token reveal is disabled")
)

// Admission errors. Both are transient; the caller may retry.
var (
	ErrRateLimited = newError("RATE_LIMITED", http.StatusTooManyRequests, "too many requests")
	ErrOverloaded  = newError("OVERLOADED", http.StatusServiceUnavailable, "service overloaded, try again later")
)

// Lookup errors.
var (
	ErrMerchantNotFound = newError("MERCHANT_NOT_FOUND", http.StatusNotFound, "merchant not found")
	ErrPaymentNotFound  = newError("PAYMENT_NOT_FOUND", http.StatusNotFound, "payment not found")
)

// Crypto errors fail closed.
var (
	ErrEncryptionKeyMissing = newError("ENCRYPTION_KEY_MISSING", http.StatusInternalServerError, "encryption key is not configured")
	ErrDecryptionFailed     = newError("DECRYPTION_FAILED", http.StatusInternalServerError, "token decryption failed")
	ErrCrypto               = newError("CRYPTO_ERROR", http.StatusInternalServerError, "cryptographic operation failed")
)

var ErrInternal = newError("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
