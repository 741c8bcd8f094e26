package services

import (
	"context"
	"sync"
	"time"

	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// HoldExpirationService rejects unpaid bookings whose seat hold has lapsed and returns the seats
type HoldExpirationService struct {
	bookings  BookingStore
	inventory *InventoryService
	machine   *BookingStateMachine
	audit     *AuditService
	logger    *logrus.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewHoldExpirationService creates a new hold expiration service
func NewHoldExpirationService(
	bookings BookingStore,
	inventory *InventoryService,
	machine *BookingStateMachine,
	audit *AuditService,
	interval time.Duration,
	logger *logrus.Logger,
) *HoldExpirationService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HoldExpirationService{
		bookings:  bookings,
		inventory: inventory,
		machine:   machine,
		audit:     audit,
		logger:    logger,
		stopCh:    make(chan struct{}),
		interval:  interval,
		batchSize: 100,
		now:       time.Now,
	}
}

// Start begins the background expiration job
func (s *HoldExpirationService) Start() {
	s.logger.WithField("interval", s.interval.String()).Info("Starting hold expiration service")
	go s.run()
}

// Stop stops the background expiration job; later calls are no-ops
func (s *HoldExpirationService) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping hold expiration service")
		close(s.stopCh)
	})
}

func (s *HoldExpirationService) run() {
	s.RunOnce(context.Background())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(context.Background())
		case <-s.stopCh:
			s.logger.Info("Hold expiration service stopped")
			return
		}
	}
}

// RunOnce runs a single expiration cycle and returns how many holds it expired
func (s *HoldExpirationService) RunOnce(ctx context.Context) int {
	expired, err := s.bookings.ListExpiredHolds(ctx, s.now(), s.batchSize)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list expired holds")
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	s.logger.WithField("count", len(expired)).Info("Processing expired holds")

	count := 0
	for _, booking := range expired {
		if err := s.expireHold(ctx, booking); err != nil {
			s.logger.WithError(err).WithField("booking_id", booking.ID).Warn("Failed to expire hold")
			continue
		}
		count++
	}
	return count
}

// expireHold rejects the booking; seats are released only if this call won the transition
func (s *HoldExpirationService) expireHold(ctx context.Context, booking *models.Booking) error {
	if booking.Payment.IsVerified() {
		return models.NewConflictError("booking %s is paid, hold not expired", booking.ID)
	}

	rejected, err := s.machine.Fire(ctx, booking, EventReject, func(b *models.Booking) {
		b.Payment.FailureReason = "seat hold expired before payment"
		b.HoldExpiresAt = nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventHoldExpired, models.PaymentSourceSystem).
		SetBooking(rejected))

	// A release failure is logged and audited; the booking stays rejected
	_ = releaseBookingSeats(ctx, s.inventory, s.audit, s.logger, rejected, models.PaymentSourceSystem)

	s.logger.WithFields(logrus.Fields{
		"booking_id": rejected.ID,
		"seats":      rejected.PartySize,
	}).Info("Hold expired and seats released")
	return nil
}
