package seatmap

import "github.com/smarttransit/seat-reservation/internal/models"

// Layout renders capacity seats as 2+2 rows with an aisle between the pairs.
// Seats fill left to right, front to back; unused positions in the last row are zero.
func Layout(capacity int) []models.SeatRow {
	if capacity <= 0 {
		return []models.SeatRow{}
	}

	rows := make([]models.SeatRow, 0, (capacity+3)/4)
	for first := 1; first <= capacity; first += 4 {
		var row models.SeatRow
		for i := 0; i < 4; i++ {
			seat := first + i
			if seat > capacity {
				break
			}
			if i < 2 {
				row.Left[i] = seat
			} else {
				row.Right[i-2] = seat
			}
		}
		rows = append(rows, row)
	}
	return rows
}
