package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CronService manages scheduled background jobs
type CronService struct {
	cron     *cron.Cron
	bookings BookingStore
	booking  *BookingService
	schedule string
	grace    time.Duration
	logger   *logrus.Logger
	now      func() time.Time
}

// NewCronService creates a new CronService
// schedule uses the six-field format: second minute hour day month weekday
func NewCronService(bookings BookingStore, booking *BookingService, schedule string, grace time.Duration, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:     cron.New(cron.WithSeconds()),
		bookings: bookings,
		booking:  booking,
		schedule: schedule,
		grace:    grace,
		logger:   logger,
		now:      time.Now,
	}
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	if _, err := s.cron.AddFunc(s.schedule, s.completeBookingsJob); err != nil {
		return fmt.Errorf("failed to schedule booking completion job: %w", err)
	}
	s.logger.WithField("schedule", s.schedule).Info("Scheduled: complete bookings of departed trips")

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops all cron jobs and waits for a running job to finish
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) completeBookingsJob() {
	s.RunCompletionNow(context.Background())
}

// RunCompletionNow completes every paid booking whose trip started more than grace ago
func (s *CronService) RunCompletionNow(ctx context.Context) int {
	startTime := time.Now()
	cutoff := s.now().Add(-s.grace)

	completed := 0
	for {
		batch, err := s.bookings.ListCompletable(ctx, cutoff, 100)
		if err != nil {
			s.logger.WithError(err).Error("[CRON ERROR] Failed to list completable bookings")
			break
		}
		if len(batch) == 0 {
			break
		}

		progressed := 0
		for _, b := range batch {
			if _, err := s.booking.CompleteBooking(ctx, b); err != nil {
				s.logger.WithError(err).WithField("booking_id", b.ID).Warn("[CRON] Failed to complete booking")
				continue
			}
			progressed++
		}
		completed += progressed

		// Rows that keep failing would otherwise be listed forever
		if progressed == 0 || len(batch) < 100 {
			break
		}
	}

	s.logger.WithFields(logrus.Fields{
		"completed": completed,
		"duration":  time.Since(startTime).String(),
	}).Info("[CRON] Booking completion job finished")
	return completed
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
