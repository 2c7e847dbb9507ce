package seatmap

import (
	"testing"

	"github.com/google/uuid"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func booking(status models.BookingStatus, seats ...int) models.Booking {
	return models.Booking{ID: uuid.New(), Status: status, SeatNumbers: seats}
}

func seq(from, to int) []int {
	out := []int{}
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name      string
		capacity  int
		bookings  []models.Booking
		booked    []int
		available []int
	}{
		{
			name:      "empty inventory",
			capacity:  4,
			booked:    []int{},
			available: []int{1, 2, 3, 4},
		},
		{
			name:     "holding statuses occupy seats",
			capacity: 6,
			bookings: []models.Booking{
				booking(models.BookingStatusPending, 1),
				booking(models.BookingStatusConfirmed, 3, 2),
				booking(models.BookingStatusCompleted, 6),
			},
			booked:    []int{1, 2, 3, 6},
			available: []int{4, 5},
		},
		{
			name:     "cancelled bookings release seats",
			capacity: 4,
			bookings: []models.Booking{
				booking(models.BookingStatusCancelled, 1, 2),
				booking(models.BookingStatusConfirmed, 2),
			},
			booked:    []int{2},
			available: []int{1, 3, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Compute(tt.capacity, tt.bookings, nil)
			assert.Equal(t, tt.booked, res.Booked)
			assert.Equal(t, tt.available, res.Available)
			assert.True(t, res.Consistent())
		})
	}
}

func TestCompute_PartitionsSeats(t *testing.T) {
	bookings := []models.Booking{
		booking(models.BookingStatusConfirmed, 1, 2, 3, 4),
		booking(models.BookingStatusPending, 17, 40),
		booking(models.BookingStatusCancelled, 5, 6),
	}
	res := Compute(40, bookings, nil)

	union := map[int]bool{}
	for _, s := range res.Available {
		union[s] = true
	}
	for _, s := range res.Booked {
		assert.False(t, union[s], "seat %d is both available and booked", s)
		union[s] = true
	}
	assert.Len(t, union, 40)
	for _, s := range seq(1, 40) {
		assert.True(t, union[s])
	}
}

func TestCompute_Exclusion(t *testing.T) {
	mine := booking(models.BookingStatusConfirmed, 3, 4)
	other := booking(models.BookingStatusConfirmed, 5)
	bookings := []models.Booking{mine, other}

	res := Compute(6, bookings, &mine.ID)
	assert.Equal(t, []int{5}, res.Booked)
	assert.True(t, res.IsAvailable(3))
	assert.True(t, res.IsAvailable(4))

	unknown := uuid.New()
	res = Compute(6, bookings, &unknown)
	assert.Equal(t, []int{3, 4, 5}, res.Booked)
}

func TestCompute_ReportsAnomalies(t *testing.T) {
	bookings := []models.Booking{
		booking(models.BookingStatusConfirmed, 2, 3),
		booking(models.BookingStatusConfirmed, 3, 9),
	}
	res := Compute(4, bookings, nil)

	assert.Equal(t, []int{3}, res.Duplicates)
	assert.Equal(t, []int{9}, res.OutOfRange)
	assert.Equal(t, []int{2, 3}, res.Booked)
	assert.Equal(t, []int{1, 4}, res.Available)
	assert.False(t, res.Consistent())
}

func TestConflicts(t *testing.T) {
	res := Compute(40, []models.Booking{booking(models.BookingStatusConfirmed, 1, 2)}, nil)
	assert.Equal(t, []int{2}, Conflicts([]int{3, 2, 2}, res))
	assert.Empty(t, Conflicts([]int{3, 4}, res))
	assert.Equal(t, []int{41}, Conflicts([]int{41}, res))
}

func TestValidateSelection(t *testing.T) {
	tests := []struct {
		name  string
		seats []int
		ok    bool
	}{
		{"valid", []int{1, 40}, true},
		{"empty", nil, false},
		{"zero", []int{0}, false},
		{"above capacity", []int{41}, false},
		{"duplicate", []int{2, 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSelection(40, tt.seats)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			_, isValidation := models.AsValidationError(err)
			require.True(t, isValidation)
		})
	}
}

func TestLayout(t *testing.T) {
	rows := Layout(6)
	require.Len(t, rows, 2)
	assert.Equal(t, models.SeatRow{Left: [2]int{1, 2}, Right: [2]int{3, 4}}, rows[0])
	assert.Equal(t, models.SeatRow{Left: [2]int{5, 6}}, rows[1])

	assert.Len(t, Layout(40), 10)
	assert.Empty(t, Layout(0))
}
