package database

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/smarttransit/seat-reservation/internal/models"
)

// MemoryLedger is an in-process Ledger with the same semantics as BookingRepository.
// It backs LEDGER_DRIVER=memory and the service tests.
type MemoryLedger struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]*models.Booking
	byKey    map[models.SeatKey][]uuid.UUID
	versions map[models.SeatKey]int64
}

// NewMemoryLedger creates an empty MemoryLedger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		bookings: make(map[uuid.UUID]*models.Booking),
		byKey:    make(map[models.SeatKey][]uuid.UUID),
		versions: make(map[models.SeatKey]int64),
	}
}

var _ Ledger = (*MemoryLedger)(nil)

func (l *MemoryLedger) checkGuard(guard *VersionGuard) error {
	if guard != nil && l.versions[guard.Key] != guard.Expected {
		return models.ErrVersionConflict
	}
	return nil
}

// Insert stores a copy of b
func (l *MemoryLedger) Insert(ctx context.Context, b *models.Booking, guard *VersionGuard) error {
	if err := ctx.Err(); err != nil {
		return models.NewStorageError("insert booking", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkGuard(guard); err != nil {
		return err
	}
	if _, exists := l.bookings[b.ID]; exists {
		return models.ErrDuplicateID
	}

	stored := b.Clone()
	stored.Version = 1
	key := stored.SeatKey()
	l.bookings[stored.ID] = stored
	l.byKey[key] = append(l.byKey[key], stored.ID)
	l.versions[key]++

	b.Version = stored.Version
	return nil
}

// Update replaces the mutable fields of the stored booking
func (l *MemoryLedger) Update(ctx context.Context, b *models.Booking, guard *VersionGuard) error {
	if err := ctx.Err(); err != nil {
		return models.NewStorageError("update booking", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.bookings[b.ID]
	if !ok {
		return models.ErrNotFound
	}
	if current.Version != b.Version {
		return models.ErrVersionConflict
	}
	if err := l.checkGuard(guard); err != nil {
		return err
	}

	stored := b.Clone()
	stored.BusID = current.BusID
	stored.RouteID = current.RouteID
	stored.BookingDate = current.BookingDate
	stored.CreatedAt = current.CreatedAt
	stored.Version = current.Version + 1

	oldKey, newKey := current.SeatKey(), stored.SeatKey()
	if oldKey != newKey {
		l.byKey[oldKey] = removeID(l.byKey[oldKey], b.ID)
		l.byKey[newKey] = append(l.byKey[newKey], b.ID)
		l.versions[oldKey]++
	}
	l.versions[newKey]++
	l.bookings[b.ID] = stored

	b.Version = stored.Version
	return nil
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// GetByID returns a copy of the booking
func (l *MemoryLedger) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, ok := l.bookings[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return b.Clone(), nil
}

func (l *MemoryLedger) listLocked(key models.SeatKey) []models.Booking {
	ids := l.byKey[key]
	out := make([]models.Booking, 0, len(ids))
	for _, id := range ids {
		out = append(out, *l.bookings[id].Clone())
	}
	return out
}

// ListByBusAndDate returns copies of every booking of the inventory
func (l *MemoryLedger) ListByBusAndDate(ctx context.Context, busID string, date models.TravelDate) ([]models.Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.listLocked(models.SeatKey{BusID: busID, TravelDate: date}), nil
}

// Snapshot returns the inventory's bookings and version under one read lock
func (l *MemoryLedger) Snapshot(ctx context.Context, key models.SeatKey) (*Snapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Snapshot{Key: key, Bookings: l.listLocked(key), Version: l.versions[key]}, nil
}

// ListByFilter returns bookings matching filter, newest first
func (l *MemoryLedger) ListByFilter(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	l.mu.RLock()
	out := []models.Booking{}
	for _, b := range l.bookings {
		if filter.Matches(b) {
			out = append(out, *b.Clone())
		}
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].BookingDate.Equal(out[j].BookingDate) {
			return out[i].BookingDate.After(out[j].BookingDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
