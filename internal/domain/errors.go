package domain

import (
	"errors"
	"fmt"
)

// Error kinds used across the fulfilment core. All failures are synchronous
// and surfaced to the caller; nothing is silently retried here.

// ValidationError indicates a malformed or mismatched event payload or input
// shape. It is raised before any write happens.
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("validation failed: %s", e.Msg)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError with an optional cause.
func NewValidationError(msg string, err error) error {
	return &ValidationError{Msg: msg, Err: err}
}

// NotFoundError indicates a missing aggregate, order, line item or inventory
// unit. Tombstoned aggregates also read as not found.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NewNotFoundError builds a NotFoundError for the given resource and id.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// UnauthorizedError indicates a missing principal or a failed permission
// check. It is raised before any mutation.
type UnauthorizedError struct {
	Msg string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: %s", e.Msg)
}

// NewUnauthorizedError builds an UnauthorizedError.
func NewUnauthorizedError(msg string) error {
	return &UnauthorizedError{Msg: msg}
}

// InvariantViolationError indicates a domain-rule violation: bad date
// ordering, price/line-item type mismatch, rentals with quantity != 1, or an
// attempt to mutate already-invoiced rental history.
type InvariantViolationError struct {
	Msg string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Msg)
}

// NewInvariantViolationError builds an InvariantViolationError.
func NewInvariantViolationError(msg string) error {
	return &InvariantViolationError{Msg: msg}
}

// StateTransitionError indicates an event that is inapplicable to the
// aggregate's current state or variant.
type StateTransitionError struct {
	EventType string
	Msg       string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("cannot apply %s: %s", e.EventType, e.Msg)
}

// NewStateTransitionError builds a StateTransitionError for an event type.
func NewStateTransitionError(eventType, msg string) error {
	return &StateTransitionError{EventType: eventType, Msg: msg}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsUnauthorized reports whether err is an UnauthorizedError.
func IsUnauthorized(err error) bool {
	var ua *UnauthorizedError
	return errors.As(err, &ua)
}
