package models

import (
	"math"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the payment status of a booking
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// IsValid reports whether s is a known payment status
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	}
	return false
}

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// IsValid reports whether s is a known booking status
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// SeatKey identifies one seat inventory: a bus on a travel date
type SeatKey struct {
	BusID      string
	TravelDate TravelDate
}

func (k SeatKey) String() string {
	return k.BusID + "/" + k.TravelDate.String()
}

// Booking represents a passenger's claim on seats of a bus for one travel date
type Booking struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	BusID          string        `json:"bus_id" db:"bus_id"`
	RouteID        string        `json:"route_id" db:"route_id"`
	TravelDate     TravelDate    `json:"travel_date" db:"travel_date"`
	SeatNumbers    IntArray      `json:"seat_numbers" db:"seat_numbers"`
	PassengerName  string        `json:"passenger_name" db:"passenger_name"`
	PassengerPhone string        `json:"passenger_phone" db:"passenger_phone"`
	PassengerEmail *string       `json:"passenger_email,omitempty" db:"passenger_email"`
	PickupLocation *string       `json:"pickup_location,omitempty" db:"pickup_location"`
	BookingDate    time.Time     `json:"booking_date" db:"booking_date"`
	Status         BookingStatus `json:"status" db:"status"`
	PaymentStatus  PaymentStatus `json:"payment_status" db:"payment_status"`
	TotalAmount    float64       `json:"total_amount" db:"total_amount"`
	Version        int64         `json:"version" db:"version"`
	CancelledAt    *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
	RefundedAt     *time.Time    `json:"refunded_at,omitempty" db:"refunded_at"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// SeatKey returns the inventory this booking draws from
func (b *Booking) SeatKey() SeatKey {
	return SeatKey{BusID: b.BusID, TravelDate: b.TravelDate}
}

// HoldsSeats reports whether the booking occupies its seats.
// Pending, confirmed and completed bookings hold seats; cancelled ones do not.
func (b *Booking) HoldsSeats() bool {
	return b.Status != BookingStatusCancelled
}

// Clone returns a deep copy so callers can mutate without aliasing ledger state
func (b *Booking) Clone() *Booking {
	c := *b
	c.SeatNumbers = append(IntArray(nil), b.SeatNumbers...)
	c.PassengerEmail = cloneString(b.PassengerEmail)
	c.PickupLocation = cloneString(b.PickupLocation)
	c.CancelledAt = cloneTime(b.CancelledAt)
	c.RefundedAt = cloneTime(b.RefundedAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// SortedSeats returns a sorted copy of seats
func SortedSeats(seats []int) IntArray {
	out := append(IntArray(nil), seats...)
	sort.Ints(out)
	return out
}

// CalculateTotal returns price times seat count rounded to cents
func CalculateTotal(price float64, seatCount int) float64 {
	return math.Round(price*float64(seatCount)*100) / 100
}

// CreateBookingRequest represents the request to create a booking
type CreateBookingRequest struct {
	BusID          string     `json:"bus_id" binding:"required"`
	RouteID        string     `json:"route_id" binding:"required"`
	TravelDate     TravelDate `json:"travel_date"`
	SeatNumbers    []int      `json:"seat_numbers"`
	PassengerName  string     `json:"passenger_name"`
	PassengerPhone string     `json:"passenger_phone"`
	PassengerEmail *string    `json:"passenger_email,omitempty"`
	PickupLocation *string    `json:"pickup_location,omitempty"`
	Paid           bool       `json:"paid"`
	PayLater       bool       `json:"pay_later"` // hold seats as a pending booking until payment
}

// Validate checks the fields that do not depend on the catalog
func (r *CreateBookingRequest) Validate() error {
	if strings.TrimSpace(r.BusID) == "" {
		return NewValidationError("bus_id", "is required")
	}
	if strings.TrimSpace(r.RouteID) == "" {
		return NewValidationError("route_id", "is required")
	}
	if r.TravelDate.IsZero() {
		return NewValidationError("travel_date", "is required")
	}
	if len(r.SeatNumbers) == 0 {
		return NewValidationError("seat_numbers", "at least one seat is required")
	}
	if strings.TrimSpace(r.PassengerName) == "" {
		return NewValidationError("passenger_name", "is required")
	}
	if strings.TrimSpace(r.PassengerPhone) == "" {
		return NewValidationError("passenger_phone", "is required")
	}
	if r.Paid && r.PayLater {
		return NewValidationError("pay_later", "cannot be combined with paid")
	}
	return validateEmail(r.PassengerEmail)
}

// EditBookingRequest represents a partial update. Nil fields are left unchanged.
type EditBookingRequest struct {
	TravelDate     *TravelDate    `json:"travel_date,omitempty"`
	SeatNumbers    []int          `json:"seat_numbers,omitempty"`
	PassengerName  *string        `json:"passenger_name,omitempty"`
	PassengerPhone *string        `json:"passenger_phone,omitempty"`
	PassengerEmail *string        `json:"passenger_email,omitempty"`
	PickupLocation *string        `json:"pickup_location,omitempty"`
	Status         *BookingStatus `json:"status,omitempty"`
	PaymentStatus  *PaymentStatus `json:"payment_status,omitempty"`
}

// ChangesSeats reports whether the edit touches seat occupancy
func (r *EditBookingRequest) ChangesSeats() bool {
	return r.TravelDate != nil || r.SeatNumbers != nil
}

// Validate checks the fields that do not depend on the current booking
func (r *EditBookingRequest) Validate() error {
	if r.TravelDate != nil && r.TravelDate.IsZero() {
		return NewValidationError("travel_date", "must be a valid date")
	}
	if r.SeatNumbers != nil && len(r.SeatNumbers) == 0 {
		return NewValidationError("seat_numbers", "at least one seat is required")
	}
	if r.PassengerName != nil && strings.TrimSpace(*r.PassengerName) == "" {
		return NewValidationError("passenger_name", "cannot be empty")
	}
	if r.PassengerPhone != nil && strings.TrimSpace(*r.PassengerPhone) == "" {
		return NewValidationError("passenger_phone", "cannot be empty")
	}
	if r.Status != nil && !r.Status.IsValid() {
		return NewValidationError("status", "unknown status %q", *r.Status)
	}
	if r.PaymentStatus != nil && !r.PaymentStatus.IsValid() {
		return NewValidationError("payment_status", "unknown payment status %q", *r.PaymentStatus)
	}
	return validateEmail(r.PassengerEmail)
}

func validateEmail(email *string) error {
	if email == nil || *email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(*email); err != nil {
		return NewValidationError("passenger_email", "is not a valid email address")
	}
	return nil
}

// BookingFilter selects bookings for reporting. Nil fields do not filter.
type BookingFilter struct {
	TravelDate       *TravelDate
	TravelDateBefore *TravelDate
	RouteID          *string
	BusID            *string
	Status           *BookingStatus
	PaymentStatus    *PaymentStatus
	BookingIDs       []uuid.UUID
	Limit            int
}

// Matches reports whether b satisfies every set criterion
func (f *BookingFilter) Matches(b *Booking) bool {
	if f.TravelDate != nil && b.TravelDate != *f.TravelDate {
		return false
	}
	if f.TravelDateBefore != nil && !b.TravelDate.Before(*f.TravelDateBefore) {
		return false
	}
	if f.RouteID != nil && b.RouteID != *f.RouteID {
		return false
	}
	if f.BusID != nil && b.BusID != *f.BusID {
		return false
	}
	if f.Status != nil && b.Status != *f.Status {
		return false
	}
	if f.PaymentStatus != nil && b.PaymentStatus != *f.PaymentStatus {
		return false
	}
	if len(f.BookingIDs) > 0 {
		found := false
		for _, id := range f.BookingIDs {
			if id == b.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// BookingReport is the result of a filtered booking listing
type BookingReport struct {
	Items       []Booking `json:"items"`
	Count       int       `json:"count"`
	TotalAmount float64   `json:"total_amount"`
}

// SeatRow is one rendered row of a 2+2 coach layout. Zero entries are empty positions.
type SeatRow struct {
	Left  [2]int `json:"left"`
	Right [2]int `json:"right"`
}

// SeatAvailability is the read model returned by the inventory query service
type SeatAvailability struct {
	BusID          string     `json:"bus_id"`
	TravelDate     TravelDate `json:"travel_date"`
	TotalSeats     int        `json:"total_seats"`
	AvailableSeats []int      `json:"available_seats"`
	BookedSeats    []int      `json:"booked_seats"`
	AvailableCount int        `json:"available_count"`
	Layout         []SeatRow  `json:"layout"`
}
