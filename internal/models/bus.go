package models

import "time"

// Bus is the catalog view of a coach. Seats are numbered 1..TotalSeats.
type Bus struct {
	ID         string    `json:"id" db:"id"`
	BusNumber  string    `json:"bus_number" db:"bus_number"`
	TotalSeats int       `json:"total_seats" db:"total_seats"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Route is the catalog view of a priced journey
type Route struct {
	ID              string      `json:"id" db:"id"`
	FromLocation    string      `json:"from_location" db:"from_location"`
	ToLocation      string      `json:"to_location" db:"to_location"`
	Price           float64     `json:"price" db:"price"`
	PickupLocations StringArray `json:"pickup_locations" db:"pickup_locations"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// AcceptsPickup reports whether location is valid for the route.
// A route without declared pickup locations accepts any value.
func (r *Route) AcceptsPickup(location string) bool {
	if len(r.PickupLocations) == 0 {
		return true
	}
	return r.PickupLocations.Contains(location)
}
