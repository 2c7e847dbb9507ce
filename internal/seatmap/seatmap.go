// Package seatmap derives seat occupancy for one bus on one travel date
// from the bookings recorded against it. Everything here is pure.
package seatmap

import (
	"sort"

	"github.com/google/uuid"
	"github.com/smarttransit/seat-reservation/internal/models"
)

// Result is the occupancy of one seat inventory
type Result struct {
	Capacity  int
	Available []int
	Booked    []int

	// Duplicates lists seats claimed by more than one holding booking.
	// Non-empty means the ledger was written around the coordinator.
	Duplicates []int

	// OutOfRange lists held seat numbers outside 1..Capacity
	OutOfRange []int
}

// Consistent reports whether no anomalies were detected
func (r Result) Consistent() bool {
	return len(r.Duplicates) == 0 && len(r.OutOfRange) == 0
}

// IsAvailable reports whether seat is free
func (r Result) IsAvailable(seat int) bool {
	i := sort.SearchInts(r.Available, seat)
	return i < len(r.Available) && r.Available[i] == seat
}

// Compute builds the seat map for capacity seats given every booking of the inventory.
// Cancelled bookings and the booking whose id equals excludeID (when non-nil) are ignored.
func Compute(capacity int, bookings []models.Booking, excludeID *uuid.UUID) Result {
	if capacity < 0 {
		capacity = 0
	}

	claims := make(map[int]int)
	for i := range bookings {
		b := &bookings[i]
		if !b.HoldsSeats() {
			continue
		}
		if excludeID != nil && b.ID == *excludeID {
			continue
		}
		for _, seat := range b.SeatNumbers {
			claims[seat]++
		}
	}

	res := Result{
		Capacity:  capacity,
		Available: make([]int, 0, capacity),
		Booked:    make([]int, 0, len(claims)),
	}
	for seat := 1; seat <= capacity; seat++ {
		if claims[seat] == 0 {
			res.Available = append(res.Available, seat)
		} else {
			res.Booked = append(res.Booked, seat)
		}
	}
	for seat, n := range claims {
		if seat < 1 || seat > capacity {
			res.OutOfRange = append(res.OutOfRange, seat)
		}
		if n > 1 {
			res.Duplicates = append(res.Duplicates, seat)
		}
	}
	sort.Ints(res.OutOfRange)
	sort.Ints(res.Duplicates)

	return res
}

// Conflicts returns the requested seats that are not available, sorted and deduplicated
func Conflicts(requested []int, res Result) []int {
	seen := make(map[int]bool, len(requested))
	var out []int
	for _, seat := range requested {
		if seen[seat] {
			continue
		}
		seen[seat] = true
		if !res.IsAvailable(seat) {
			out = append(out, seat)
		}
	}
	sort.Ints(out)
	return out
}

// ValidateSelection checks that seats is non-empty, unique and within 1..capacity
func ValidateSelection(capacity int, seats []int) error {
	if len(seats) == 0 {
		return models.NewValidationError("seat_numbers", "at least one seat is required")
	}
	seen := make(map[int]bool, len(seats))
	for _, seat := range seats {
		if seat < 1 || seat > capacity {
			return models.NewValidationError("seat_numbers", "seat %d is outside 1..%d", seat, capacity)
		}
		if seen[seat] {
			return models.NewValidationError("seat_numbers", "seat %d requested more than once", seat)
		}
		seen[seat] = true
	}
	return nil
}
