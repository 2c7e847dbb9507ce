package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/database"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/seatmap"
)

// AuditService scans the ledger for seat inventories whose bookings violate
// the one-holder-per-seat rule. It only reads.
type AuditService struct {
	ledger  database.Ledger
	catalog database.Catalog
	logger  *logrus.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(ledger database.Ledger, catalog database.Catalog, logger *logrus.Logger) *AuditService {
	return &AuditService{
		ledger:  ledger,
		catalog: catalog,
		logger:  logger,
	}
}

// AuditFinding describes one inconsistent seat inventory
type AuditFinding struct {
	Key        models.SeatKey `json:"-"`
	BusID      string         `json:"bus_id"`
	TravelDate string         `json:"travel_date"`
	Duplicates []int          `json:"duplicates,omitempty"`
	OutOfRange []int          `json:"out_of_range,omitempty"`
	UnknownBus bool           `json:"unknown_bus,omitempty"`

	// Bookings holds the IDs of holding bookings that claim a flagged seat
	Bookings []uuid.UUID `json:"bookings"`
}

// AuditReport summarises a scan
type AuditReport struct {
	Inventories int            `json:"inventories"`
	Bookings    int            `json:"bookings"`
	Findings    []AuditFinding `json:"findings"`
}

// Run scans every booking matching filter, grouped by bus and travel date
func (s *AuditService) Run(ctx context.Context, filter models.BookingFilter) (*AuditReport, error) {
	bookings, err := s.ledger.ListByFilter(ctx, filter)
	if err != nil {
		return nil, err
	}

	groups := make(map[models.SeatKey][]models.Booking)
	for _, b := range bookings {
		groups[b.SeatKey()] = append(groups[b.SeatKey()], b)
	}

	keys := make([]models.SeatKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].BusID != keys[j].BusID {
			return keys[i].BusID < keys[j].BusID
		}
		return keys[i].TravelDate.Before(keys[j].TravelDate)
	})

	report := &AuditReport{Inventories: len(keys), Bookings: len(bookings), Findings: []AuditFinding{}}
	for _, key := range keys {
		finding, err := s.auditInventory(ctx, key, groups[key])
		if err != nil {
			return nil, err
		}
		if finding != nil {
			report.Findings = append(report.Findings, *finding)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"inventories": report.Inventories,
		"bookings":    report.Bookings,
		"findings":    len(report.Findings),
	}).Info("Seat inventory audit finished")

	return report, nil
}

func (s *AuditService) auditInventory(ctx context.Context, key models.SeatKey, bookings []models.Booking) (*AuditFinding, error) {
	finding := &AuditFinding{Key: key, BusID: key.BusID, TravelDate: key.TravelDate.String()}

	bus, err := s.catalog.GetBus(ctx, key.BusID)
	if errors.Is(err, models.ErrNotFound) {
		finding.UnknownBus = true
		for _, b := range bookings {
			if b.HoldsSeats() {
				finding.Bookings = append(finding.Bookings, b.ID)
			}
		}
		return finding, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bus %s: %w", key.BusID, err)
	}

	res := seatmap.Compute(bus.TotalSeats, bookings, nil)
	if res.Consistent() {
		return nil, nil
	}

	finding.Duplicates = res.Duplicates
	finding.OutOfRange = res.OutOfRange

	flagged := make(map[int]bool)
	for _, seat := range res.Duplicates {
		flagged[seat] = true
	}
	for _, seat := range res.OutOfRange {
		flagged[seat] = true
	}
	for _, b := range bookings {
		if !b.HoldsSeats() {
			continue
		}
		for _, seat := range b.SeatNumbers {
			if flagged[seat] {
				finding.Bookings = append(finding.Bookings, b.ID)
				break
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"bus_id":       key.BusID,
		"travel_date":  key.TravelDate.String(),
		"duplicates":   res.Duplicates,
		"out_of_range": res.OutOfRange,
	}).Warn("Seat map consistency violation")

	return finding, nil
}
