package model

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors used across the application
var (
	// Store errors
	ErrStoreUnavailable = errors.New("slot store unavailable")
	ErrSlotNotFound     = errors.New("slot not found")

	// Reservation errors
	ErrConflict          = errors.New("slot taken by another client")
	ErrValidation        = errors.New("invalid reservation request")
	ErrPartialConfirm    = errors.New("some slots could not be confirmed")
	ErrResetNotConfirmed = errors.New("reset was not confirmed")

	// Identity errors
	ErrInvalidIdentity = errors.New("invalid client identity")

	// Admin errors
	ErrAdminDisabled      = errors.New("admin operations are disabled")
	ErrInvalidAdminSecret = errors.New("invalid admin password")

	// Data errors
	ErrInvariantViolation = errors.New("slot invariant violated")
)

// Unavailable wraps a transport-level store failure so it matches ErrStoreUnavailable
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// ConflictError reports that a slot was taken by another identity, or
// changed between check and write
type ConflictError struct {
	Number SlotNumber
	State  SlotState // Authoritative state when known
}

func (e *ConflictError) Error() string {
	if e.State.IsTaken() {
		return fmt.Sprintf("slot %s is already %s", e.Number, e.State)
	}
	return fmt.Sprintf("slot %s is being held by another client", e.Number)
}

// Is lets errors.Is(err, ErrConflict) match
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ValidationError reports a missing or malformed input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PartialConfirmError reports a confirmation where the store accepted fewer
// rows than requested. Confirmed rows stay reserved.
type PartialConfirmError struct {
	Confirmed []SlotNumber
	Rejected  []SlotNumber
}

func (e *PartialConfirmError) Error() string {
	rejected := make([]string, len(e.Rejected))
	for i, n := range e.Rejected {
		rejected[i] = string(n)
	}
	return "some numbers are no longer available: " + strings.Join(rejected, ", ")
}

// Is lets errors.Is(err, ErrPartialConfirm) match
func (e *PartialConfirmError) Is(target error) bool {
	return target == ErrPartialConfirm
}

// InvariantError reports a slot record that breaks the state invariants
type InvariantError struct {
	Number SlotNumber
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("slot %s: %s", e.Number, e.Reason)
}

// Is lets errors.Is(err, ErrInvariantViolation) match
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariantViolation
}
