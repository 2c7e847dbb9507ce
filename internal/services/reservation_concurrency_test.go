package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/smarttransit/seat-reservation/internal/config"
	"github.com/smarttransit/seat-reservation/internal/database"
	"github.com/smarttransit/seat-reservation/internal/lock"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/seatmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stallingLedger parks the first insert until resume is closed
type stallingLedger struct {
	*database.MemoryLedger
	inserts int32
	entered chan struct{}
	resume  chan struct{}
}

func (l *stallingLedger) Insert(ctx context.Context, b *models.Booking, guard *database.VersionGuard) error {
	if atomic.AddInt32(&l.inserts, 1) == 1 {
		close(l.entered)
		<-l.resume
	}
	return l.MemoryLedger.Insert(ctx, b, guard)
}

func TestCreateBooking_ExpiredRedisLockCannotDoubleBook(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	locker := lock.NewRedisLocker(client, time.Second, "seatlock:", testLogger())

	ledger := &stallingLedger{
		MemoryLedger: database.NewMemoryLedger(),
		entered:      make(chan struct{}),
		resume:       make(chan struct{}),
	}
	clock := &testClock{now: clockStart}
	cfg := DefaultCoordinatorConfig()
	cfg.Strategy = config.StrategyPessimistic
	cfg.Now = clock.Now

	// two server instances sharing redis and the ledger
	first := NewReservationCoordinator(ledger, testCatalog(), nil, locker, nil, cfg, testLogger())
	second := NewReservationCoordinator(ledger, testCatalog(), nil, locker, nil, cfg, testLogger())
	ctx := context.Background()

	firstErr := make(chan error, 1)
	go func() {
		_, err := first.CreateBooking(ctx, bookingRequest(5))
		firstErr <- err
	}()

	<-ledger.entered
	mr.FastForward(2 * time.Second)

	_, err := second.CreateBooking(ctx, bookingRequest(5))
	require.NoError(t, err)

	close(ledger.resume)
	err = <-firstErr
	sc, ok := models.AsSeatConflict(err)
	require.True(t, ok, "expected SeatConflictError, got %v", err)
	assert.Equal(t, []int{5}, sc.ConflictingSeats)

	bookings, err := ledger.ListByBusAndDate(ctx, "bus-1", travelDate)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
	assert.Empty(t, seatmap.Compute(40, bookings, nil).Duplicates)
}

func TestMixedConcurrentMutations_NeverDoubleBook(t *testing.T) {
	const (
		workers = 16
		ops     = 60
		hotSeat = 10
	)
	dates := []models.TravelDate{travelDate, travelDate.AddDays(1)}

	for _, strategy := range strategies {
		t.Run(strategy, func(t *testing.T) {
			f := setupCoordinatorTest(t, strategy, func(c *CoordinatorConfig) { c.MaxCommitRetries = workers })
			ctx := context.Background()

			var (
				mu  sync.Mutex
				ids []uuid.UUID
			)
			pick := func(rng *rand.Rand) (uuid.UUID, bool) {
				mu.Lock()
				defer mu.Unlock()
				if len(ids) == 0 {
					return uuid.Nil, false
				}
				return ids[rng.Intn(len(ids))], true
			}
			seats := func(rng *rand.Rand) []int {
				a := rng.Intn(hotSeat) + 1
				if rng.Intn(2) == 0 {
					return []int{a}
				}
				return []int{a, a%hotSeat + 1}
			}

			var wg sync.WaitGroup
			unexpected := make(chan error, workers*ops)
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func(seed int64) {
					defer wg.Done()
					rng := rand.New(rand.NewSource(seed))
					for i := 0; i < ops; i++ {
						var err error
						switch op := rng.Intn(4); {
						case op == 0:
							req := bookingRequest(seats(rng)...)
							req.TravelDate = dates[rng.Intn(len(dates))]
							var b *models.Booking
							if b, err = f.coordinator.CreateBooking(ctx, req); err == nil {
								mu.Lock()
								ids = append(ids, b.ID)
								mu.Unlock()
							}
						case op == 1:
							if id, ok := pick(rng); ok {
								_, err = f.coordinator.EditBooking(ctx, id, &models.EditBookingRequest{SeatNumbers: seats(rng)})
							}
						case op == 2:
							if id, ok := pick(rng); ok {
								d := dates[rng.Intn(len(dates))]
								_, err = f.coordinator.EditBooking(ctx, id, &models.EditBookingRequest{TravelDate: &d})
							}
						default:
							if id, ok := pick(rng); ok {
								_, err = f.coordinator.CancelBooking(ctx, id)
							}
						}
						if err == nil || errors.Is(err, models.ErrVersionConflict) {
							continue
						}
						if _, ok := models.AsSeatConflict(err); ok {
							continue
						}
						unexpected <- err
					}
				}(int64(w + 1))
			}
			wg.Wait()
			close(unexpected)

			for err := range unexpected {
				t.Errorf("unexpected error: %v", err)
			}
			for _, d := range dates {
				bookings, err := f.ledger.ListByBusAndDate(ctx, "bus-1", d)
				require.NoError(t, err)
				assert.Empty(t, seatmap.Compute(40, bookings, nil).Duplicates, "travel date %s", d)
			}
			assert.Equal(t, 0, f.locker.Active())
		})
	}
}
