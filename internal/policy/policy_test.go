package policy

import (
	"testing"
	"time"

	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/stretchr/testify/assert"
)

var booked = time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)

func newBooking(status models.BookingStatus, payment models.PaymentStatus) *models.Booking {
	return &models.Booking{BookingDate: booked, Status: status, PaymentStatus: payment}
}

func TestIsWithinModificationWindow(t *testing.T) {
	e := NewEngine(0)
	b := newBooking(models.BookingStatusConfirmed, models.PaymentStatusPaid)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"same instant", booked, true},
		{"one second before boundary", booked.Add(7*24*time.Hour - time.Second), true},
		{"exactly at boundary", booked.Add(7 * 24 * time.Hour), true},
		{"one second after boundary", booked.Add(7*24*time.Hour + time.Second), false},
		{"eight days later", booked.Add(8 * 24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.IsWithinModificationWindow(b, tt.now))
		})
	}
}

func TestIsEditable(t *testing.T) {
	e := NewEngine(DefaultModificationWindow)
	now := booked.Add(time.Hour)

	assert.True(t, e.IsEditable(newBooking(models.BookingStatusPending, models.PaymentStatusPending), now))
	assert.True(t, e.IsEditable(newBooking(models.BookingStatusConfirmed, models.PaymentStatusPaid), now))
	assert.True(t, e.IsEditable(newBooking(models.BookingStatusCancelled, models.PaymentStatusPending), now))
	assert.False(t, e.IsEditable(newBooking(models.BookingStatusCompleted, models.PaymentStatusPaid), now))
	assert.False(t, e.IsEditable(newBooking(models.BookingStatusConfirmed, models.PaymentStatusPaid), booked.Add(8*24*time.Hour)))
}

func TestIsRefundEligible(t *testing.T) {
	e := NewEngine(DefaultModificationWindow)
	now := booked.Add(24 * time.Hour)

	tests := []struct {
		name    string
		booking *models.Booking
		now     time.Time
		want    bool
	}{
		{"paid confirmed in window", newBooking(models.BookingStatusConfirmed, models.PaymentStatusPaid), now, true},
		{"unpaid", newBooking(models.BookingStatusConfirmed, models.PaymentStatusPending), now, false},
		{"already refunded", newBooking(models.BookingStatusCancelled, models.PaymentStatusRefunded), now, false},
		{"completed", newBooking(models.BookingStatusCompleted, models.PaymentStatusPaid), now, false},
		{"outside window", newBooking(models.BookingStatusConfirmed, models.PaymentStatusPaid), booked.Add(8 * 24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.IsRefundEligible(tt.booking, tt.now))
		})
	}
}

func TestCustomWindow(t *testing.T) {
	e := NewEngine(48 * time.Hour)
	b := newBooking(models.BookingStatusConfirmed, models.PaymentStatusPaid)

	assert.Equal(t, 48*time.Hour, e.Window())
	assert.True(t, e.IsEditable(b, booked.Add(47*time.Hour)))
	assert.False(t, e.IsEditable(b, booked.Add(49*time.Hour)))
}

func TestCanTransitionStatus(t *testing.T) {
	tests := []struct {
		from, to models.BookingStatus
		want     bool
	}{
		{models.BookingStatusPending, models.BookingStatusConfirmed, true},
		{models.BookingStatusPending, models.BookingStatusCancelled, true},
		{models.BookingStatusPending, models.BookingStatusCompleted, false},
		{models.BookingStatusConfirmed, models.BookingStatusCompleted, true},
		{models.BookingStatusConfirmed, models.BookingStatusCancelled, true},
		{models.BookingStatusConfirmed, models.BookingStatusPending, false},
		{models.BookingStatusCancelled, models.BookingStatusConfirmed, false},
		{models.BookingStatusCompleted, models.BookingStatusCancelled, false},
		{models.BookingStatusCancelled, models.BookingStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionStatus(tt.from, tt.to))
		})
	}
}

func TestCanTransitionPayment(t *testing.T) {
	assert.True(t, CanTransitionPayment(models.PaymentStatusPending, models.PaymentStatusPaid))
	assert.True(t, CanTransitionPayment(models.PaymentStatusPaid, models.PaymentStatusPending))
	assert.False(t, CanTransitionPayment(models.PaymentStatusPaid, models.PaymentStatusRefunded))
	assert.False(t, CanTransitionPayment(models.PaymentStatusRefunded, models.PaymentStatusPaid))
	assert.True(t, CanTransitionPayment(models.PaymentStatusRefunded, models.PaymentStatusRefunded))
}
