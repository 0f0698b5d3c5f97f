package apperr

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and retry decisions.
type Code string

const (
	CodeValidation             Code = "VALIDATION"
	CodeDuplicatePayment       Code = "DUPLICATE_PAYMENT"
	CodeInvalidStateTransition Code = "INVALID_STATE_TRANSITION"
	CodeGateway                Code = "GATEWAY"
	CodeInvalidSignature       Code = "INVALID_SIGNATURE"
	CodeNotFound               Code = "NOT_FOUND"
)

// Error is a typed domain error carrying a stable code and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a domain error wrapping a cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the domain code from err, or "" if err is not a domain error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func is(err error, code Code) bool {
	return CodeOf(err) == code
}

func IsValidation(err error) bool             { return is(err, CodeValidation) }
func IsDuplicatePayment(err error) bool       { return is(err, CodeDuplicatePayment) }
func IsInvalidStateTransition(err error) bool { return is(err, CodeInvalidStateTransition) }
func IsInvalidSignature(err error) bool       { return is(err, CodeInvalidSignature) }
func IsNotFound(err error) bool               { return is(err, CodeNotFound) }

// GatewayError is returned when a provider call fails. Retryable marks
// transport-level faults (timeouts, 5xx) that may succeed on a later attempt;
// provider rejections (4xx) are final.
type GatewayError struct {
	Provider  string
	Status    int
	Message   string
	Retryable bool
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("[%s] gateway %s failed (status=%d, retryable=%t): %s",
		CodeGateway, e.Provider, e.Status, e.Retryable, e.Message)
}

// IsRetryable reports whether err is a gateway fault worth retrying.
func IsRetryable(err error) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return false
}

// IsGateway reports whether err originated from a provider call.
func IsGateway(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}
