package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/config"
	"github.com/smarttransit/seat-reservation/internal/database"
	"github.com/smarttransit/seat-reservation/internal/lock"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/policy"
	"github.com/smarttransit/seat-reservation/internal/queue"
	"github.com/smarttransit/seat-reservation/internal/seatmap"
	"github.com/smarttransit/seat-reservation/pkg/validator"
)

const eventPublishTimeout = 5 * time.Second

// CoordinatorConfig holds configuration for the reservation coordinator
type CoordinatorConfig struct {
	Strategy         string        // pessimistic (keyed locks) or optimistic (versioned commits)
	MaxCommitRetries int           // attempts before a lost race is reported as a seat conflict
	LockWait         time.Duration // how long to wait for a lock; zero waits for the request context
	Now              func() time.Time

	InternationalPhones bool
}

// DefaultCoordinatorConfig returns default configuration
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		Strategy:         config.StrategyPessimistic,
		MaxCommitRetries: 5,
		LockWait:         5 * time.Second,
		Now:              time.Now,

		InternationalPhones: true,
	}
}

// ReservationCoordinator owns every booking mutation. Each one runs the
// read occupancy, validate, write sequence atomically per seat inventory.
type ReservationCoordinator struct {
	ledger    database.Ledger
	catalog   database.Catalog
	policy    *policy.Engine
	locker    lock.Locker
	publisher queue.Publisher
	inventory *InventoryService
	phones    *validator.PhoneValidator
	config    CoordinatorConfig
	logger    *logrus.Logger
}

// NewReservationCoordinator creates a new coordinator. A nil locker falls back to
// an in-process locker and a nil publisher drops events.
func NewReservationCoordinator(
	ledger database.Ledger,
	catalog database.Catalog,
	policyEngine *policy.Engine,
	locker lock.Locker,
	publisher queue.Publisher,
	cfg CoordinatorConfig,
	logger *logrus.Logger,
) *ReservationCoordinator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxCommitRetries < 1 {
		cfg.MaxCommitRetries = 1
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	if policyEngine == nil {
		policyEngine = policy.NewEngine(0)
	}

	return &ReservationCoordinator{
		ledger:    ledger,
		catalog:   catalog,
		policy:    policyEngine,
		locker:    locker,
		publisher: publisher,
		inventory: NewInventoryService(ledger, catalog, logger),
		phones:    validator.NewPhoneValidator(cfg.InternationalPhones),
		config:    cfg,
		logger:    logger,
	}
}

// ============================================================================
// CREATE
// ============================================================================

// CreateBooking reserves the requested seats and records a new booking.
// Either every seat is taken or none is.
func (c *ReservationCoordinator) CreateBooking(ctx context.Context, req *models.CreateBookingRequest) (*models.Booking, error) {
	if req == nil {
		return nil, models.NewValidationError("", "request body is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	phone, err := c.normalizePhone(req.PassengerPhone)
	if err != nil {
		return nil, err
	}

	bus, err := c.catalog.GetBus(ctx, req.BusID)
	if err != nil {
		return nil, err
	}
	route, err := c.catalog.GetRoute(ctx, req.RouteID)
	if err != nil {
		return nil, err
	}
	if err := checkPickup(route, req.PickupLocation); err != nil {
		return nil, err
	}
	if err := seatmap.ValidateSelection(bus.TotalSeats, req.SeatNumbers); err != nil {
		return nil, err
	}

	now := c.config.Now().UTC()
	draft := &models.Booking{
		ID:             uuid.New(),
		BusID:          bus.ID,
		RouteID:        route.ID,
		TravelDate:     req.TravelDate,
		SeatNumbers:    models.SortedSeats(req.SeatNumbers),
		PassengerName:  strings.TrimSpace(req.PassengerName),
		PassengerPhone: phone,
		PassengerEmail: trimmed(req.PassengerEmail),
		PickupLocation: trimmed(req.PickupLocation),
		BookingDate:    now,
		Status:         models.BookingStatusConfirmed,
		PaymentStatus:  models.PaymentStatusPending,
		TotalAmount:    models.CalculateTotal(route.Price, len(req.SeatNumbers)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.PayLater {
		draft.Status = models.BookingStatusPending
	}
	if req.Paid {
		draft.PaymentStatus = models.PaymentStatusPaid
	}

	created, err := c.run(ctx, "create booking", func(tx *inventoryTx) (*models.Booking, error) {
		if err := tx.lockInventories(ctx, draft.SeatKey()); err != nil {
			return nil, err
		}
		if err := tx.claim(ctx, draft.SeatKey(), bus.TotalSeats, draft.SeatNumbers, nil); err != nil {
			return nil, err
		}
		b := draft.Clone()
		if err := c.ledger.Insert(ctx, b, tx.guard); err != nil {
			return nil, err
		}
		return b, nil
	})
	if err != nil {
		c.logFailure(err, "create", logrus.Fields{
			"bus_id":      draft.BusID,
			"travel_date": draft.TravelDate.String(),
			"seats":       draft.SeatNumbers,
		})
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"booking_id":  created.ID,
		"bus_id":      created.BusID,
		"travel_date": created.TravelDate.String(),
		"seats":       created.SeatNumbers,
	}).Info("Booking created")

	c.publish(ctx, queue.EventBookingCreated, created)
	return created, nil
}

// ============================================================================
// EDIT
// ============================================================================

// EditBooking applies a partial update. Seat or date changes are checked against
// the target inventory with this booking's own seats treated as free.
func (c *ReservationCoordinator) EditBooking(ctx context.Context, id uuid.UUID, req *models.EditBookingRequest) (*models.Booking, error) {
	if req == nil {
		return nil, models.NewValidationError("", "request body is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var phone string
	if req.PassengerPhone != nil {
		p, err := c.normalizePhone(*req.PassengerPhone)
		if err != nil {
			return nil, err
		}
		phone = p
	}

	updated, err := c.run(ctx, "edit booking", func(tx *inventoryTx) (*models.Booking, error) {
		if err := tx.lockBooking(ctx, id); err != nil {
			return nil, err
		}
		current, err := c.ledger.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		now := c.config.Now().UTC()
		if !c.policy.IsEditable(current, now) {
			return nil, models.ErrNotEditable
		}

		next := current.Clone()
		if req.Status != nil {
			if !policy.CanTransitionStatus(current.Status, *req.Status) {
				return nil, models.NewValidationError("status", "cannot change from %s to %s", current.Status, *req.Status)
			}
			next.Status = *req.Status
			if next.Status == models.BookingStatusCancelled && next.CancelledAt == nil {
				next.CancelledAt = &now
			}
		}
		if req.PaymentStatus != nil {
			if !policy.CanTransitionPayment(current.PaymentStatus, *req.PaymentStatus) {
				return nil, models.NewValidationError("payment_status", "cannot change from %s to %s", current.PaymentStatus, *req.PaymentStatus)
			}
			next.PaymentStatus = *req.PaymentStatus
		}
		if req.TravelDate != nil {
			next.TravelDate = *req.TravelDate
		}
		if req.SeatNumbers != nil {
			next.SeatNumbers = models.SortedSeats(req.SeatNumbers)
		}
		if req.PassengerName != nil {
			next.PassengerName = strings.TrimSpace(*req.PassengerName)
		}
		if req.PassengerPhone != nil {
			next.PassengerPhone = phone
		}
		if req.PassengerEmail != nil {
			next.PassengerEmail = trimmed(req.PassengerEmail)
		}
		if req.PickupLocation != nil {
			next.PickupLocation = trimmed(req.PickupLocation)
		}

		route, err := c.catalog.GetRoute(ctx, next.RouteID)
		if err != nil {
			return nil, err
		}
		if req.PickupLocation != nil {
			if err := checkPickup(route, next.PickupLocation); err != nil {
				return nil, err
			}
		}

		if req.ChangesSeats() {
			bus, err := c.catalog.GetBus(ctx, next.BusID)
			if err != nil {
				return nil, err
			}
			if err := seatmap.ValidateSelection(bus.TotalSeats, next.SeatNumbers); err != nil {
				return nil, err
			}
			if err := tx.lockInventories(ctx, current.SeatKey(), next.SeatKey()); err != nil {
				return nil, err
			}
			if next.HoldsSeats() {
				if err := tx.claim(ctx, next.SeatKey(), bus.TotalSeats, next.SeatNumbers, &next.ID); err != nil {
					return nil, err
				}
			}
		}

		next.TotalAmount = models.CalculateTotal(route.Price, len(next.SeatNumbers))
		next.UpdatedAt = now
		if err := c.ledger.Update(ctx, next, tx.guard); err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		c.logFailure(err, "edit", logrus.Fields{"booking_id": id})
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"booking_id":  updated.ID,
		"travel_date": updated.TravelDate.String(),
		"seats":       updated.SeatNumbers,
		"status":      updated.Status,
	}).Info("Booking updated")

	c.publish(ctx, queue.EventBookingUpdated, updated)
	return updated, nil
}

// ============================================================================
// CANCEL / REFUND / COMPLETE
// ============================================================================

// CancelBooking cancels a booking and thereby frees its seats. Cancelling an
// already cancelled booking returns it unchanged.
func (c *ReservationCoordinator) CancelBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	changed := false
	b, err := c.run(ctx, "cancel booking", func(tx *inventoryTx) (*models.Booking, error) {
		changed = false
		if err := tx.lockBooking(ctx, id); err != nil {
			return nil, err
		}
		current, err := c.ledger.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == models.BookingStatusCancelled {
			return current, nil
		}
		if !c.policy.IsCancellable(current) {
			return nil, models.ErrNotEligible
		}
		if err := tx.lockInventories(ctx, current.SeatKey()); err != nil {
			return nil, err
		}
		if err := tx.watch(ctx, current.SeatKey()); err != nil {
			return nil, err
		}

		now := c.config.Now().UTC()
		next := current.Clone()
		next.Status = models.BookingStatusCancelled
		next.CancelledAt = &now
		next.UpdatedAt = now
		if err := c.ledger.Update(ctx, next, tx.guard); err != nil {
			return nil, err
		}
		changed = true
		return next, nil
	})
	if err != nil {
		c.logFailure(err, "cancel", logrus.Fields{"booking_id": id})
		return nil, err
	}
	if !changed {
		c.logger.WithField("booking_id", id).Debug("Booking already cancelled")
		return b, nil
	}

	c.logger.WithFields(logrus.Fields{
		"booking_id":  b.ID,
		"bus_id":      b.BusID,
		"travel_date": b.TravelDate.String(),
	}).Info("Booking cancelled")

	c.publish(ctx, queue.EventBookingCancelled, b)
	return b, nil
}

// RefundBooking refunds a paid booking inside the modification window.
// A refund always cancels the booking in the same write.
func (c *ReservationCoordinator) RefundBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, err := c.run(ctx, "refund booking", func(tx *inventoryTx) (*models.Booking, error) {
		if err := tx.lockBooking(ctx, id); err != nil {
			return nil, err
		}
		current, err := c.ledger.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		now := c.config.Now().UTC()
		if !c.policy.IsRefundEligible(current, now) {
			return nil, models.ErrNotEligible
		}
		if err := tx.lockInventories(ctx, current.SeatKey()); err != nil {
			return nil, err
		}
		if err := tx.watch(ctx, current.SeatKey()); err != nil {
			return nil, err
		}

		next := current.Clone()
		next.PaymentStatus = models.PaymentStatusRefunded
		next.Status = models.BookingStatusCancelled
		next.RefundedAt = &now
		if next.CancelledAt == nil {
			next.CancelledAt = &now
		}
		next.UpdatedAt = now
		if err := c.ledger.Update(ctx, next, tx.guard); err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		c.logFailure(err, "refund", logrus.Fields{"booking_id": id})
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"booking_id":   b.ID,
		"total_amount": b.TotalAmount,
	}).Info("Booking refunded")

	c.publish(ctx, queue.EventBookingRefunded, b)
	return b, nil
}

// CompleteBooking marks a confirmed booking whose travel date has passed as completed
func (c *ReservationCoordinator) CompleteBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, err := c.run(ctx, "complete booking", func(tx *inventoryTx) (*models.Booking, error) {
		if err := tx.lockBooking(ctx, id); err != nil {
			return nil, err
		}
		current, err := c.ledger.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		now := c.config.Now().UTC()
		if current.Status != models.BookingStatusConfirmed || !current.TravelDate.Before(models.TravelDateOf(now)) {
			return nil, models.ErrNotEligible
		}

		next := current.Clone()
		next.Status = models.BookingStatusCompleted
		next.UpdatedAt = now
		if err := c.ledger.Update(ctx, next, nil); err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.WithField("booking_id", b.ID).Debug("Booking completed")
	c.publish(ctx, queue.EventBookingCompleted, b)
	return b, nil
}

// QueryAvailability returns the seat map of one bus on one travel date
func (c *ReservationCoordinator) QueryAvailability(ctx context.Context, busID string, date models.TravelDate, excludeID *uuid.UUID) (*models.SeatAvailability, error) {
	return c.inventory.GetAvailableSeats(ctx, busID, date, excludeID)
}

// ============================================================================
// CRITICAL SECTION
// ============================================================================

// run executes op until it commits or fails with something other than a lost
// race. Locks taken by an attempt are released before the next one starts.
func (c *ReservationCoordinator) run(ctx context.Context, op string, fn func(tx *inventoryTx) (*models.Booking, error)) (*models.Booking, error) {
	var last *inventoryTx
	for attempt := 1; attempt <= c.config.MaxCommitRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, models.NewStorageError(op, err)
		}

		tx := &inventoryTx{c: c}
		b, err := fn(tx)
		tx.release()
		if !errors.Is(err, models.ErrVersionConflict) {
			return b, err
		}

		last = tx
		c.logger.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
		}).Debug("Seat inventory changed during commit, retrying")
	}
	return nil, c.exhausted(ctx, op, last)
}

// exhausted reports a commit that kept losing races. Claims are reported as a seat
// conflict naming the seats taken on a final read, or all requested seats when the
// final read shows none taken.
func (c *ReservationCoordinator) exhausted(ctx context.Context, op string, tx *inventoryTx) error {
	if tx == nil || tx.claimed == nil {
		return models.NewStorageError(op, models.ErrVersionConflict)
	}

	cl := tx.claimed
	snap, err := c.ledger.Snapshot(ctx, cl.key)
	if err != nil {
		return err
	}
	conflicts := seatmap.Conflicts(cl.seats, seatmap.Compute(cl.capacity, snap.Bookings, cl.exclude))
	if len(conflicts) == 0 {
		conflicts = cl.seats
	}

	c.logger.WithFields(logrus.Fields{
		"op":          op,
		"bus_id":      cl.key.BusID,
		"travel_date": cl.key.TravelDate.String(),
		"retries":     c.config.MaxCommitRetries,
	}).Warn("Commit retries exhausted")
	return models.NewSeatConflictError(conflicts)
}

// inventoryTx is the state of one attempt at a booking mutation: the locks it
// holds and the occupancy version its write is guarded by.
type inventoryTx struct {
	c        *ReservationCoordinator
	releases []func()
	guard    *database.VersionGuard
	claimed  *seatClaim
}

type seatClaim struct {
	key      models.SeatKey
	capacity int
	seats    []int
	exclude  *uuid.UUID
}

func (t *inventoryTx) pessimistic() bool {
	return t.c.config.Strategy != config.StrategyOptimistic
}

func (t *inventoryTx) acquire(ctx context.Context, key string) error {
	if t.c.config.LockWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.c.config.LockWait)
		defer cancel()
	}
	release, err := t.c.locker.Acquire(ctx, key)
	if err != nil {
		return models.NewStorageError("acquire lock", err)
	}
	t.releases = append(t.releases, release)
	return nil
}

// lockBooking serializes mutations of one booking. It is always taken before any seat lock.
func (t *inventoryTx) lockBooking(ctx context.Context, id uuid.UUID) error {
	if !t.pessimistic() {
		return nil
	}
	return t.acquire(ctx, "booking:"+id.String())
}

// lockInventories takes the seat locks of keys in a fixed order
func (t *inventoryTx) lockInventories(ctx context.Context, keys ...models.SeatKey) error {
	if !t.pessimistic() {
		return nil
	}
	names := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		name := "seats:" + k.String()
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if err := t.acquire(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// watch reads key and, under the optimistic strategy, guards the write on its version
func (t *inventoryTx) watch(ctx context.Context, key models.SeatKey) error {
	if t.pessimistic() {
		return nil
	}
	_, err := t.snapshot(ctx, key)
	return err
}

func (t *inventoryTx) snapshot(ctx context.Context, key models.SeatKey) (*database.Snapshot, error) {
	snap, err := t.c.ledger.Snapshot(ctx, key)
	if err != nil {
		return nil, err
	}
	// Guarded under both strategies: a lock whose TTL lapsed mid-write must not
	// let a second holder commit over the same occupancy.
	t.guard = &database.VersionGuard{Key: key, Expected: snap.Version}
	return snap, nil
}

// claim checks that seats are free on key, treating the booking exclude as absent
func (t *inventoryTx) claim(ctx context.Context, key models.SeatKey, capacity int, seats []int, exclude *uuid.UUID) error {
	t.claimed = &seatClaim{key: key, capacity: capacity, seats: seats, exclude: exclude}

	snap, err := t.snapshot(ctx, key)
	if err != nil {
		return err
	}
	res := seatmap.Compute(capacity, snap.Bookings, exclude)
	if !res.Consistent() {
		t.c.logger.WithFields(logrus.Fields{
			"bus_id":       key.BusID,
			"travel_date":  key.TravelDate.String(),
			"duplicates":   res.Duplicates,
			"out_of_range": res.OutOfRange,
		}).Error("Seat inventory is inconsistent")
	}
	if conflicts := seatmap.Conflicts(seats, res); len(conflicts) > 0 {
		return models.NewSeatConflictError(conflicts)
	}
	return nil
}

// release drops the locks in reverse acquisition order
func (t *inventoryTx) release() {
	for i := len(t.releases) - 1; i >= 0; i-- {
		t.releases[i]()
	}
	t.releases = nil
}

// ============================================================================
// HELPERS
// ============================================================================

func (c *ReservationCoordinator) normalizePhone(phone string) (string, error) {
	local, err := c.phones.Validate(phone)
	if err != nil {
		return "", models.NewValidationError("passenger_phone", "%v", err)
	}
	return local, nil
}

func checkPickup(route *models.Route, pickup *string) error {
	if pickup == nil || *pickup == "" {
		return nil
	}
	if !route.AcceptsPickup(*pickup) {
		return models.NewValidationError("pickup_location", "%q is not a pickup point of route %s", *pickup, route.ID)
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// publish sends a lifecycle event after commit. The booking is already durable,
// so a broker failure is logged and not returned.
func (c *ReservationCoordinator) publish(ctx context.Context, t queue.EventType, b *models.Booking) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()

	if err := c.publisher.Publish(pubCtx, queue.NewBookingEvent(t, b, c.config.Now())); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"event":      t,
			"booking_id": b.ID,
		}).Warn("Failed to publish booking event")
	}
}

// logFailure logs unexpected failures. Rejections the caller caused are logged at debug.
func (c *ReservationCoordinator) logFailure(err error, op string, fields logrus.Fields) {
	entry := c.logger.WithError(err).WithFields(fields).WithField("op", op)
	if models.IsStorageError(err) {
		entry.Error("Booking operation failed")
		return
	}
	entry.Debug("Booking operation rejected")
}
