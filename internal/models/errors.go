package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures for callers and HTTP mapping
type ErrorKind string

const (
	KindValidation            ErrorKind = "VALIDATION_ERROR"
	KindInsufficientInventory ErrorKind = "INSUFFICIENT_INVENTORY"
	KindSignatureMismatch     ErrorKind = "SIGNATURE_MISMATCH"
	KindGateway               ErrorKind = "GATEWAY_ERROR"
	KindConflict              ErrorKind = "CONFLICT"
	KindNotFound              ErrorKind = "NOT_FOUND"
	KindForbidden             ErrorKind = "FORBIDDEN"
	KindInternal              ErrorKind = "INTERNAL_ERROR"
)

// EngineError is the typed error returned by the booking services
type EngineError struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
	Err       error

	// BookingStatus is the booking's status after the failed operation, when known
	BookingStatus BookingStatus
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewValidationError reports malformed or inconsistent input
func NewValidationError(format string, args ...interface{}) *EngineError {
	return &EngineError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewInsufficientInventoryError reports there are not enough seats left
func NewInsufficientInventoryError(requested, available int) *EngineError {
	return &EngineError{
		Kind:    KindInsufficientInventory,
		Message: fmt.Sprintf("requested %d seats but only %d available", requested, available),
	}
}

// NewSignatureMismatchError reports a payment confirmation that failed verification
// status is where the booking was left, empty when unknown
func NewSignatureMismatchError(status BookingStatus) *EngineError {
	return &EngineError{Kind: KindSignatureMismatch, Message: "payment signature verification failed", BookingStatus: status}
}

// NewGatewayError wraps a payment gateway failure
func NewGatewayError(message string, retryable bool, err error) *EngineError {
	return &EngineError{Kind: KindGateway, Message: message, Retryable: retryable, Err: err}
}

// NewConflictError reports an illegal transition or a lost concurrent update
func NewConflictError(format string, args ...interface{}) *EngineError {
	return &EngineError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError reports a missing trip or booking
func NewNotFoundError(entity string, id interface{}) *EngineError {
	return &EngineError{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

// NewForbiddenError reports an action on a resource the caller does not own
func NewForbiddenError(message string) *EngineError {
	return &EngineError{Kind: KindForbidden, Message: message}
}

// KindOf returns the kind of an engine error, or KindInternal for anything else
func KindOf(err error) ErrorKind {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an engine error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// BookingStatusOf returns the booking status carried by an engine error, if any
func BookingStatusOf(err error) BookingStatus {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.BookingStatus
	}
	return ""
}

// IsRetryable reports whether the caller may safely retry the operation
func IsRetryable(err error) bool {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Retryable
	}
	return false
}
