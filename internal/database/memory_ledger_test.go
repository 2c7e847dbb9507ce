package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedger_InsertAndSnapshot(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	b := sampleBooking()

	snap, err := l.Snapshot(ctx, b.SeatKey())
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Version)
	assert.Empty(t, snap.Bookings)

	require.NoError(t, l.Insert(ctx, b, &VersionGuard{Key: b.SeatKey(), Expected: 0}))
	assert.Equal(t, int64(1), b.Version)

	snap, err = l.Snapshot(ctx, b.SeatKey())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)
	require.Len(t, snap.Bookings, 1)

	// mutating the returned copy must not touch the ledger
	snap.Bookings[0].SeatNumbers[0] = 40
	stored, err := l.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntArray{1, 2}, stored.SeatNumbers)

	assert.ErrorIs(t, l.Insert(ctx, b, nil), models.ErrDuplicateID)

	other := sampleBooking()
	assert.ErrorIs(t, l.Insert(ctx, other, &VersionGuard{Key: other.SeatKey(), Expected: 0}), models.ErrVersionConflict)
}

func TestMemoryLedger_Update(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	b := sampleBooking()
	require.NoError(t, l.Insert(ctx, b, nil))

	t.Run("Stale Row Version", func(t *testing.T) {
		stale := b.Clone()
		stale.Version = 0
		assert.ErrorIs(t, l.Update(ctx, stale, nil), models.ErrVersionConflict)
	})

	t.Run("Not Found", func(t *testing.T) {
		assert.ErrorIs(t, l.Update(ctx, sampleBooking(), nil), models.ErrNotFound)
	})

	t.Run("Date Move", func(t *testing.T) {
		moved := b.Clone()
		moved.TravelDate = testDate.AddDays(1)
		moved.RouteID = "tampered"

		require.NoError(t, l.Update(ctx, moved, &VersionGuard{Key: moved.SeatKey(), Expected: 0}))
		assert.Equal(t, int64(2), moved.Version)

		oldList, err := l.ListByBusAndDate(ctx, "bus-1", testDate)
		require.NoError(t, err)
		assert.Empty(t, oldList)

		newSnap, err := l.Snapshot(ctx, moved.SeatKey())
		require.NoError(t, err)
		require.Len(t, newSnap.Bookings, 1)
		assert.Equal(t, "route-1", newSnap.Bookings[0].RouteID, "immutable fields are preserved")
		assert.Equal(t, int64(1), newSnap.Version)

		oldSnap, err := l.Snapshot(ctx, b.SeatKey())
		require.NoError(t, err)
		assert.Equal(t, int64(2), oldSnap.Version)
	})
}

func TestMemoryLedger_ListByFilter(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	paid := sampleBooking()
	unpaid := sampleBooking()
	unpaid.PaymentStatus = models.PaymentStatusPending
	unpaid.BookingDate = paid.BookingDate.Add(1)
	require.NoError(t, l.Insert(ctx, paid, nil))
	require.NoError(t, l.Insert(ctx, unpaid, nil))

	all, err := l.ListByFilter(ctx, models.BookingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, unpaid.ID, all[0].ID, "newest first")

	status := models.PaymentStatusPaid
	onlyPaid, err := l.ListByFilter(ctx, models.BookingFilter{PaymentStatus: &status})
	require.NoError(t, err)
	require.Len(t, onlyPaid, 1)
	assert.Equal(t, paid.ID, onlyPaid[0].ID)

	limited, err := l.ListByFilter(ctx, models.BookingFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemoryLedger_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewMemoryLedger()
	err := l.Insert(ctx, sampleBooking(), nil)
	assert.True(t, models.IsStorageError(err))

	all, _ := l.ListByFilter(context.Background(), models.BookingFilter{})
	assert.Empty(t, all)
}

func TestCatalogRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCatalogRepository(sqlx.NewDb(db, "postgres"))
	ctx := context.Background()

	mock.ExpectQuery(`FROM buses`).WithArgs("bus-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "bus_number", "total_seats", "created_at", "updated_at"}).
			AddRow("bus-1", "NB-1234", 40, testDate.Time(), testDate.Time()))
	bus, err := repo.GetBus(ctx, "bus-1")
	require.NoError(t, err)
	assert.Equal(t, 40, bus.TotalSeats)

	mock.ExpectQuery(`FROM buses`).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = repo.GetBus(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	mock.ExpectQuery(`FROM routes`).WithArgs("route-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "from_location", "to_location", "price", "pickup_locations", "created_at", "updated_at"}).
			AddRow("route-1", "Colombo", "Kandy", []byte("1500.00"), []byte(`{"Pettah","Kiribathgoda"}`), testDate.Time(), testDate.Time()))
	route, err := repo.GetRoute(ctx, "route-1")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, route.Price)
	assert.True(t, route.AcceptsPickup("Kiribathgoda"))
	assert.False(t, route.AcceptsPickup("Galle"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadCatalogSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"buses": [{"id": "bus-1", "bus_number": "NB-1234", "total_seats": 40}],
		"routes": [{"id": "route-1", "from_location": "Colombo", "to_location": "Kandy", "price": 1500}]
	}`), 0o600))

	c, err := LoadCatalogSeed(path)
	require.NoError(t, err)

	bus, err := c.GetBus(context.Background(), "bus-1")
	require.NoError(t, err)
	assert.Equal(t, 40, bus.TotalSeats)

	route, err := c.GetRoute(context.Background(), "route-1")
	require.NoError(t, err)
	assert.True(t, route.AcceptsPickup("anywhere"))

	_, err = c.GetRoute(context.Background(), "route-2")
	assert.ErrorIs(t, err, models.ErrNotFound)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"buses": [{"id": "bus-0", "total_seats": 0}]}`), 0o600))
	_, err = LoadCatalogSeed(bad)
	assert.Error(t, err)
}

func TestLoadCatalogSeed_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
buses:
  - id: bus-7
    bus_number: NC-7777
    total_seats: 49
routes:
  - id: route-3
    from_location: Colombo
    to_location: Jaffna
    price: 3200.5
    pickup_locations: [Colombo Fort, Negombo]
`), 0o600))

	c, err := LoadCatalogSeed(path)
	require.NoError(t, err)

	bus, err := c.GetBus(context.Background(), "bus-7")
	require.NoError(t, err)
	assert.Equal(t, 49, bus.TotalSeats)

	route, err := c.GetRoute(context.Background(), "route-3")
	require.NoError(t, err)
	assert.InDelta(t, 3200.5, route.Price, 0.001)
	assert.True(t, route.AcceptsPickup("Negombo"))
	assert.False(t, route.AcceptsPickup("Kandy"))
}
