// Package queue publishes booking lifecycle events to the message broker
// for downstream notification and reporting consumers.
package queue

import (
	"time"

	"github.com/google/uuid"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/pkg/validator"
)

var phoneFormatter = validator.NewPhoneValidator(true)

// EventType names a booking lifecycle transition. It doubles as the routing key.
type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingUpdated   EventType = "booking.updated"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingRefunded  EventType = "booking.refunded"
	EventBookingCompleted EventType = "booking.completed"
)

// BookingEvent carries enough of the booking for consumers to act without reading the ledger
type BookingEvent struct {
	Type           EventType            `json:"type"`
	BookingID      uuid.UUID            `json:"booking_id"`
	BusID          string               `json:"bus_id"`
	RouteID        string               `json:"route_id"`
	TravelDate     models.TravelDate    `json:"travel_date"`
	SeatNumbers    []int                `json:"seat_numbers"`
	PassengerName  string               `json:"passenger_name"`
	PassengerPhone string               `json:"passenger_phone"`
	PhoneDisplay   string               `json:"passenger_phone_display"`
	PassengerEmail *string              `json:"passenger_email,omitempty"`
	Status         models.BookingStatus `json:"status"`
	PaymentStatus  models.PaymentStatus `json:"payment_status"`
	TotalAmount    float64              `json:"total_amount"`
	OccurredAt     time.Time            `json:"occurred_at"`
}

// NewBookingEvent snapshots b into an event of type t
func NewBookingEvent(t EventType, b *models.Booking, at time.Time) BookingEvent {
	display, err := phoneFormatter.Format(b.PassengerPhone)
	if err != nil {
		display = b.PassengerPhone
	}
	return BookingEvent{
		Type:           t,
		BookingID:      b.ID,
		BusID:          b.BusID,
		RouteID:        b.RouteID,
		TravelDate:     b.TravelDate,
		SeatNumbers:    append([]int(nil), b.SeatNumbers...),
		PassengerName:  b.PassengerName,
		PassengerPhone: b.PassengerPhone,
		PhoneDisplay:   display,
		PassengerEmail: b.PassengerEmail,
		Status:         b.Status,
		PaymentStatus:  b.PaymentStatus,
		TotalAmount:    b.TotalAmount,
		OccurredAt:     at.UTC(),
	}
}
