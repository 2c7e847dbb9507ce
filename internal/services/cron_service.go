package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/database"
	"github.com/smarttransit/seat-reservation/internal/models"
)

const completionJobTimeout = 10 * time.Minute

// bookingCompleter is the part of ReservationCoordinator the completion job needs
type bookingCompleter interface {
	CompleteBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}

// CronService manages scheduled background jobs
type CronService struct {
	cron      *cron.Cron
	ledger    database.Ledger
	completer bookingCompleter
	schedule  string
	now       func() time.Time
	logger    *logrus.Logger
}

// NewCronService creates a new CronService. schedule uses the six field
// form: second minute hour day month weekday.
func NewCronService(ledger database.Ledger, completer bookingCompleter, schedule string, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:      cron.New(cron.WithSeconds()),
		ledger:    ledger,
		completer: completer,
		schedule:  schedule,
		now:       time.Now,
		logger:    logger,
	}
}

// Start schedules the jobs and starts the scheduler
func (s *CronService) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.completeBookingsJob)
	if err != nil {
		return fmt.Errorf("failed to schedule booking completion job: %w", err)
	}

	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) completeBookingsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), completionJobTimeout)
	defer cancel()

	if _, err := s.RunCompletionNow(ctx); err != nil {
		s.logger.WithError(err).Error("Booking completion job failed")
	}
}

// RunCompletionNow completes every confirmed booking whose travel date is before
// today. It returns how many bookings were completed. Bookings changed by someone
// else in the meantime are skipped.
func (s *CronService) RunCompletionNow(ctx context.Context) (int, error) {
	start := time.Now()
	today := models.TravelDateOf(s.now().UTC())
	confirmed := models.BookingStatusConfirmed

	due, err := s.ledger.ListByFilter(ctx, models.BookingFilter{
		Status:           &confirmed,
		TravelDateBefore: &today,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list bookings due for completion: %w", err)
	}

	completed := 0
	var errs []error
	for i := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, err := s.completer.CompleteBooking(ctx, due[i].ID)
		switch {
		case err == nil:
			completed++
		case errors.Is(err, models.ErrNotEligible), errors.Is(err, models.ErrNotFound):
			// cancelled or completed since the listing
		default:
			errs = append(errs, fmt.Errorf("booking %s: %w", due[i].ID, err))
		}
	}

	s.logger.WithFields(logrus.Fields{
		"due":       len(due),
		"completed": completed,
		"failed":    len(errs),
		"duration":  time.Since(start).String(),
	}).Info("Booking completion job finished")

	return completed, errors.Join(errs...)
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
