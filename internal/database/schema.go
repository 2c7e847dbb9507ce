package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements creates the ledger tables. buses and routes belong to the
// catalog service and are only created here so a fresh development database works.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS buses (
		id          TEXT PRIMARY KEY,
		bus_number  TEXT NOT NULL,
		total_seats INTEGER NOT NULL CHECK (total_seats > 0),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS routes (
		id               TEXT PRIMARY KEY,
		from_location    TEXT NOT NULL,
		to_location      TEXT NOT NULL,
		price            NUMERIC(10,2) NOT NULL CHECK (price >= 0),
		pickup_locations TEXT[] NOT NULL DEFAULT '{}',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id              UUID PRIMARY KEY,
		bus_id          TEXT NOT NULL,
		route_id        TEXT NOT NULL,
		travel_date     DATE NOT NULL,
		seat_numbers    INTEGER[] NOT NULL CHECK (cardinality(seat_numbers) > 0),
		passenger_name  TEXT NOT NULL,
		passenger_phone TEXT NOT NULL,
		passenger_email TEXT,
		pickup_location TEXT,
		booking_date    TIMESTAMPTZ NOT NULL,
		status          TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'cancelled', 'completed')),
		payment_status  TEXT NOT NULL CHECK (payment_status IN ('pending', 'paid', 'refunded')),
		total_amount    NUMERIC(12,2) NOT NULL,
		version         BIGINT NOT NULL DEFAULT 1,
		cancelled_at    TIMESTAMPTZ,
		refunded_at     TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_bus_travel_date ON bookings (bus_id, travel_date)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_travel_date_status ON bookings (travel_date, status)`,
	`CREATE TABLE IF NOT EXISTS seat_inventory_versions (
		bus_id      TEXT NOT NULL,
		travel_date DATE NOT NULL,
		version     BIGINT NOT NULL,
		PRIMARY KEY (bus_id, travel_date)
	)`,
}

// Migrate applies the ledger schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
