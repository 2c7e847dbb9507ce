package services

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/database"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/seatmap"
)

// InventoryService answers read-only questions about seats and bookings. It never
// takes locks, so results may be slightly stale under concurrent writes.
type InventoryService struct {
	ledger  database.Ledger
	catalog database.Catalog
	logger  *logrus.Logger
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(ledger database.Ledger, catalog database.Catalog, logger *logrus.Logger) *InventoryService {
	return &InventoryService{
		ledger:  ledger,
		catalog: catalog,
		logger:  logger,
	}
}

// GetAvailableSeats computes the seat map of a bus on a travel date. When excludeID
// is set that booking's seats are reported as available, which is what an edit form needs.
func (s *InventoryService) GetAvailableSeats(ctx context.Context, busID string, date models.TravelDate, excludeID *uuid.UUID) (*models.SeatAvailability, error) {
	if strings.TrimSpace(busID) == "" {
		return nil, models.NewValidationError("bus_id", "is required")
	}
	if date.IsZero() {
		return nil, models.NewValidationError("travel_date", "is required")
	}

	bus, err := s.catalog.GetBus(ctx, busID)
	if err != nil {
		return nil, err
	}
	bookings, err := s.ledger.ListByBusAndDate(ctx, busID, date)
	if err != nil {
		return nil, err
	}

	res := seatmap.Compute(bus.TotalSeats, bookings, excludeID)
	if !res.Consistent() {
		s.logger.WithFields(logrus.Fields{
			"bus_id":       busID,
			"travel_date":  date.String(),
			"duplicates":   res.Duplicates,
			"out_of_range": res.OutOfRange,
		}).Warn("Seat map consistency violation")
	}

	return &models.SeatAvailability{
		BusID:          bus.ID,
		TravelDate:     date,
		TotalSeats:     bus.TotalSeats,
		AvailableSeats: res.Available,
		BookedSeats:    res.Booked,
		AvailableCount: len(res.Available),
		Layout:         seatmap.Layout(bus.TotalSeats),
	}, nil
}

// GetBooking retrieves a booking by ID
func (s *InventoryService) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return s.ledger.GetByID(ctx, id)
}

// Report lists bookings matching filter together with their count and summed amount
func (s *InventoryService) Report(ctx context.Context, filter models.BookingFilter) (*models.BookingReport, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, models.NewValidationError("status", "unknown status %q", *filter.Status)
	}
	if filter.PaymentStatus != nil && !filter.PaymentStatus.IsValid() {
		return nil, models.NewValidationError("payment_status", "unknown payment status %q", *filter.PaymentStatus)
	}
	if filter.Limit < 0 {
		return nil, models.NewValidationError("limit", "must not be negative")
	}

	items, err := s.ledger.ListByFilter(ctx, filter)
	if err != nil {
		return nil, err
	}

	report := &models.BookingReport{Items: items, Count: len(items)}
	cents := int64(0)
	for i := range items {
		cents += int64(math.Round(items[i].TotalAmount * 100))
	}
	report.TotalAmount = float64(cents) / 100
	return report, nil
}
