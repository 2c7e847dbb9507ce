package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a booking, bus or route does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned when a booking id is already taken
	ErrDuplicateID = errors.New("duplicate booking id")

	// ErrNotEditable is returned for edits outside the modification window or on completed bookings
	ErrNotEditable = errors.New("booking can no longer be modified")

	// ErrNotEligible is returned when a cancel or refund is not permitted
	ErrNotEligible = errors.New("booking is not eligible for this operation")

	// ErrVersionConflict is returned by the ledger when a guarded write lost a race.
	// The coordinator retries on it and never surfaces it to callers.
	ErrVersionConflict = errors.New("seat inventory changed concurrently")
)

// ValidationError reports malformed input
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// SeatConflictError is returned when requested seats are already held by another booking
type SeatConflictError struct {
	ConflictingSeats []int `json:"conflicting_seats"`
}

// NewSeatConflictError returns a conflict error with the seats sorted ascending
func NewSeatConflictError(seats []int) *SeatConflictError {
	sorted := append([]int(nil), seats...)
	sort.Ints(sorted)
	return &SeatConflictError{ConflictingSeats: sorted}
}

func (e *SeatConflictError) Error() string {
	parts := make([]string, len(e.ConflictingSeats))
	for i, s := range e.ConflictingSeats {
		parts[i] = fmt.Sprintf("%d", s)
	}
	return "seats already booked: " + strings.Join(parts, ", ")
}

// StorageError wraps a failure of the underlying ledger store
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err as a storage failure of op
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// AsValidationError unwraps err into a *ValidationError
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// AsSeatConflict unwraps err into a *SeatConflictError
func AsSeatConflict(err error) (*SeatConflictError, bool) {
	var sc *SeatConflictError
	ok := errors.As(err, &sc)
	return sc, ok
}

// IsStorageError reports whether err is, or wraps, a *StorageError
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
