package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/smarttransit/seat-reservation/internal/models"
)

// BookingRepository is the PostgreSQL ledger
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

var _ Ledger = (*BookingRepository)(nil)

const bookingColumns = `
	id, bus_id, route_id, travel_date, seat_numbers,
	passenger_name, passenger_phone, passenger_email, pickup_location,
	booking_date, status, payment_status, total_amount, version,
	cancelled_at, refunded_at, created_at, updated_at`

const (
	guardedVersionBumpQuery = `
		INSERT INTO seat_inventory_versions (bus_id, travel_date, version)
		VALUES ($1, $2, 1)
		ON CONFLICT (bus_id, travel_date) DO UPDATE
		SET version = seat_inventory_versions.version + 1
		WHERE seat_inventory_versions.version = $3
		RETURNING version`

	versionBumpQuery = `
		INSERT INTO seat_inventory_versions (bus_id, travel_date, version)
		VALUES ($1, $2, 1)
		ON CONFLICT (bus_id, travel_date) DO UPDATE
		SET version = seat_inventory_versions.version + 1
		RETURNING version`

	insertBookingQuery = `
		INSERT INTO bookings (` + bookingColumns + `
		) VALUES (
			:id, :bus_id, :route_id, :travel_date, :seat_numbers,
			:passenger_name, :passenger_phone, :passenger_email, :pickup_location,
			:booking_date, :status, :payment_status, :total_amount, :version,
			:cancelled_at, :refunded_at, :created_at, :updated_at
		)`

	updateBookingQuery = `
		UPDATE bookings
		SET travel_date = $2, seat_numbers = $3,
			passenger_name = $4, passenger_phone = $5, passenger_email = $6, pickup_location = $7,
			status = $8, payment_status = $9, total_amount = $10,
			cancelled_at = $11, refunded_at = $12, updated_at = $13,
			version = version + 1
		WHERE id = $1`
)

// ============================================================================
// WRITES
// ============================================================================

// Insert stores a new booking and bumps the occupancy version of its inventory
func (r *BookingRepository) Insert(ctx context.Context, b *models.Booking, guard *VersionGuard) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.NewStorageError("begin insert", err)
	}
	defer tx.Rollback()

	if err := bumpVersions(ctx, tx, []models.SeatKey{b.SeatKey()}, guard); err != nil {
		return err
	}

	row := *b
	row.Version = 1
	if _, err := tx.NamedExecContext(ctx, insertBookingQuery, &row); err != nil {
		if isUniqueViolation(err) {
			return models.ErrDuplicateID
		}
		return models.NewStorageError("insert booking", err)
	}

	if err := tx.Commit(); err != nil {
		return models.NewStorageError("commit insert", err)
	}

	b.Version = row.Version
	return nil
}

// Update replaces the mutable fields of a booking. The stored row version must
// equal b.Version; on success b.Version is advanced.
func (r *BookingRepository) Update(ctx context.Context, b *models.Booking, guard *VersionGuard) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.NewStorageError("begin update", err)
	}
	defer tx.Rollback()

	var current struct {
		BusID      string            `db:"bus_id"`
		TravelDate models.TravelDate `db:"travel_date"`
		Version    int64             `db:"version"`
	}
	err = tx.GetContext(ctx, &current,
		`SELECT bus_id, travel_date, version FROM bookings WHERE id = $1 FOR UPDATE`, b.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return models.NewStorageError("lock booking", err)
	}
	if current.Version != b.Version {
		return models.ErrVersionConflict
	}

	keys := []models.SeatKey{b.SeatKey()}
	if oldKey := (models.SeatKey{BusID: current.BusID, TravelDate: current.TravelDate}); oldKey != b.SeatKey() {
		keys = append(keys, oldKey)
	}
	if err := bumpVersions(ctx, tx, keys, guard); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, updateBookingQuery,
		b.ID, b.TravelDate, b.SeatNumbers,
		b.PassengerName, b.PassengerPhone, b.PassengerEmail, b.PickupLocation,
		b.Status, b.PaymentStatus, b.TotalAmount,
		b.CancelledAt, b.RefundedAt, b.UpdatedAt,
	)
	if err != nil {
		return models.NewStorageError("update booking", err)
	}

	if err := tx.Commit(); err != nil {
		return models.NewStorageError("commit update", err)
	}

	b.Version = current.Version + 1
	return nil
}

// bumpVersions advances the occupancy version of each key in a fixed order so
// concurrent transactions touching the same pair of inventories cannot deadlock.
func bumpVersions(ctx context.Context, tx *sqlx.Tx, keys []models.SeatKey, guard *VersionGuard) error {
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	for _, key := range keys {
		var version int64
		var err error
		if guard != nil && guard.Key == key {
			err = tx.GetContext(ctx, &version, guardedVersionBumpQuery, key.BusID, key.TravelDate, guard.Expected)
			if errors.Is(err, sql.ErrNoRows) {
				return models.ErrVersionConflict
			}
		} else {
			err = tx.GetContext(ctx, &version, versionBumpQuery, key.BusID, key.TravelDate)
		}
		if err != nil {
			return models.NewStorageError("bump inventory version", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ============================================================================
// READS
// ============================================================================

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, models.NewStorageError("get booking", err)
	}
	return &b, nil
}

// ListByBusAndDate returns every booking of the inventory regardless of status
func (r *BookingRepository) ListByBusAndDate(ctx context.Context, busID string, date models.TravelDate) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE bus_id = $1 AND travel_date = $2
		ORDER BY booking_date, id`, busID, date)
	if err != nil {
		return nil, models.NewStorageError("list bookings", err)
	}
	return bookings, nil
}

// Snapshot reads the inventory's bookings and occupancy version in one repeatable-read transaction
func (r *BookingRepository) Snapshot(ctx context.Context, key models.SeatKey) (*Snapshot, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, models.NewStorageError("begin snapshot", err)
	}
	defer tx.Rollback()

	snap := &Snapshot{Key: key, Bookings: []models.Booking{}}
	err = tx.GetContext(ctx, &snap.Version, `
		SELECT COALESCE(MAX(version), 0)
		FROM seat_inventory_versions
		WHERE bus_id = $1 AND travel_date = $2`, key.BusID, key.TravelDate)
	if err != nil {
		return nil, models.NewStorageError("read inventory version", err)
	}

	err = tx.SelectContext(ctx, &snap.Bookings, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE bus_id = $1 AND travel_date = $2
		ORDER BY booking_date, id`, key.BusID, key.TravelDate)
	if err != nil {
		return nil, models.NewStorageError("read inventory bookings", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, models.NewStorageError("commit snapshot", err)
	}
	return snap, nil
}

// ListByFilter returns bookings matching every set criterion, newest first
func (r *BookingRepository) ListByFilter(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	var conditions []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.TravelDate != nil {
		add("travel_date = $%d", *filter.TravelDate)
	}
	if filter.TravelDateBefore != nil {
		add("travel_date < $%d", *filter.TravelDateBefore)
	}
	if filter.RouteID != nil {
		add("route_id = $%d", *filter.RouteID)
	}
	if filter.BusID != nil {
		add("bus_id = $%d", *filter.BusID)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.PaymentStatus != nil {
		add("payment_status = $%d", *filter.PaymentStatus)
	}
	if len(filter.BookingIDs) > 0 {
		ids := make([]string, len(filter.BookingIDs))
		for i, id := range filter.BookingIDs {
			ids[i] = id.String()
		}
		add("id = ANY($%d::uuid[])", pq.Array(ids))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY booking_date DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	bookings := []models.Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, models.NewStorageError("filter bookings", err)
	}
	return bookings, nil
}
