package policy

import (
	"time"

	"github.com/smarttransit/seat-reservation/internal/models"
)

// DefaultModificationWindow is how long after booking a passenger may edit or refund
const DefaultModificationWindow = 7 * 24 * time.Hour

// Engine decides whether a booking may be edited, cancelled or refunded
type Engine struct {
	window time.Duration
}

// NewEngine creates a policy engine. A non-positive window selects the default.
func NewEngine(window time.Duration) *Engine {
	if window <= 0 {
		window = DefaultModificationWindow
	}
	return &Engine{window: window}
}

// Window returns the configured modification window
func (e *Engine) Window() time.Duration {
	return e.window
}

// IsWithinModificationWindow reports whether now is no later than BookingDate plus the window.
// The boundary instant itself is inside the window.
func (e *Engine) IsWithinModificationWindow(b *models.Booking, now time.Time) bool {
	return now.Sub(b.BookingDate) <= e.window
}

// IsEditable reports whether seats, date, passenger or status fields may change
func (e *Engine) IsEditable(b *models.Booking, now time.Time) bool {
	return e.IsWithinModificationWindow(b, now) && b.Status != models.BookingStatusCompleted
}

// IsRefundEligible reports whether a refund may be issued
func (e *Engine) IsRefundEligible(b *models.Booking, now time.Time) bool {
	return b.PaymentStatus == models.PaymentStatusPaid &&
		e.IsWithinModificationWindow(b, now) &&
		b.Status != models.BookingStatusCompleted
}

// IsCancellable reports whether a cancel request may proceed.
// Cancelling an already cancelled booking is a no-op and is allowed.
func (e *Engine) IsCancellable(b *models.Booking) bool {
	return b.Status != models.BookingStatusCompleted
}

var statusTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingStatusPending:   {models.BookingStatusConfirmed, models.BookingStatusCancelled},
	models.BookingStatusConfirmed: {models.BookingStatusCompleted, models.BookingStatusCancelled},
	models.BookingStatusCancelled: {},
	models.BookingStatusCompleted: {},
}

// CanTransitionStatus reports whether a booking may move from one status to another
func CanTransitionStatus(from, to models.BookingStatus) bool {
	if from == to {
		return true
	}
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionPayment reports whether payment status may change through an edit.
// Refunds are issued only by the refund operation, so refunded is never a valid edit target.
func CanTransitionPayment(from, to models.PaymentStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case models.PaymentStatusPending:
		return to == models.PaymentStatusPaid
	case models.PaymentStatusPaid:
		return to == models.PaymentStatusPending
	}
	return false
}
