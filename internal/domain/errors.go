package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("concurrent modification")
)

// ValidationError is returned before any side effect happens.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// UpstreamGatewayError carries the payment processor's response for support diagnosis.
type UpstreamGatewayError struct {
	Provider   string
	Operation  string
	StatusCode int
	Code       string
	Message    string
	RequestID  string
	Payload    map[string]any
	Err        error
}

func (e *UpstreamGatewayError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Provider, e.Operation)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *UpstreamGatewayError) Unwrap() error { return e.Err }

// NotFoundError means there was nothing eligible to act on.
type NotFoundError struct {
	Resource string
	Message  string
}

func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{Resource: resource, Message: message}
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Resource + " not found"
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PartialFailureError records a money movement whose local bookkeeping did not land.
type PartialFailureError struct {
	Operation     string
	ReservationID string
	PaymentID     string
	RefundID      string
	UserID        string
	Step          string
	Err           error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s partially failed at %s: %v", e.Operation, e.Step, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// InvalidTransitionError is a state machine guard violation.
type InvalidTransitionError struct {
	From     ReservationStatus
	To       ReservationStatus
	Modality Modality
	Reason   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s (%s): %s", e.From, e.To, e.Modality, e.Reason)
}

// IsNotFound matches both ErrNotFound and *NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
