package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/smarttransit/seat-reservation/internal/models"
)

// VersionGuard makes a ledger write conditional on the occupancy version of Key
// still being Expected. A lost race yields models.ErrVersionConflict.
type VersionGuard struct {
	Key      models.SeatKey
	Expected int64
}

// Snapshot is a consistent read of one seat inventory
type Snapshot struct {
	Key      models.SeatKey
	Bookings []models.Booking
	Version  int64
}

// Ledger is the durable record of bookings. Every write bumps the occupancy
// version of each seat inventory it touches.
type Ledger interface {
	Insert(ctx context.Context, b *models.Booking, guard *VersionGuard) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListByBusAndDate(ctx context.Context, busID string, date models.TravelDate) ([]models.Booking, error)
	Snapshot(ctx context.Context, key models.SeatKey) (*Snapshot, error)
	Update(ctx context.Context, b *models.Booking, guard *VersionGuard) error
	ListByFilter(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
}

// Catalog is read-only access to the bus and route reference data
type Catalog interface {
	GetBus(ctx context.Context, id string) (*models.Bus, error)
	GetRoute(ctx context.Context, id string) (*models.Route, error)
}
