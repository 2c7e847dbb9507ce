package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/smarttransit/seat-reservation/internal/database"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_CleanLedger(t *testing.T) {
	ledger := database.NewMemoryLedger()
	seedBooking(t, ledger, models.BookingStatusConfirmed, 1, 2)
	seedBooking(t, ledger, models.BookingStatusPending, 3)
	// a cancelled booking may reuse a held seat
	seedBooking(t, ledger, models.BookingStatusCancelled, 1)

	report, err := NewAuditService(ledger, testCatalog(), testLogger()).Run(context.Background(), models.BookingFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inventories)
	assert.Equal(t, 3, report.Bookings)
	assert.Empty(t, report.Findings)
}

func TestAuditService_FlagsViolations(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	ledger := database.NewMemoryLedger()

	a := seedBooking(t, ledger, models.BookingStatusConfirmed, 4, 5)
	b := seedBooking(t, ledger, models.BookingStatusConfirmed, 5, 41)
	seedBooking(t, ledger, models.BookingStatusConfirmed, 9)

	orphan := &models.Booking{
		ID:          uuid.New(),
		BusID:       "bus-retired",
		RouteID:     "route-1",
		TravelDate:  travelDate,
		SeatNumbers: models.IntArray{1},
		Status:      models.BookingStatusConfirmed,
	}
	require.NoError(t, ledger.Insert(context.Background(), orphan, nil))

	report, err := NewAuditService(ledger, testCatalog(), logger).Run(context.Background(), models.BookingFilter{})
	require.NoError(t, err)
	require.Len(t, report.Findings, 2)

	seats := report.Findings[0]
	assert.Equal(t, "bus-1", seats.BusID)
	assert.Equal(t, []int{5}, seats.Duplicates)
	assert.Equal(t, []int{41}, seats.OutOfRange)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, seats.Bookings)

	unknown := report.Findings[1]
	assert.True(t, unknown.UnknownBus)
	assert.Equal(t, []uuid.UUID{orphan.ID}, unknown.Bookings)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "Seat map consistency violation" {
			warned = true
		}
	}
	assert.True(t, warned)
}
