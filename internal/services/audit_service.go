package services

import (
	"context"

	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// AuditService writes the payment audit ledger and lifecycle notifications
// Both are best-effort: a failure is logged and never undoes a committed transition
type AuditService struct {
	ledger   AuditLogger
	notifier Notifier
	logger   *logrus.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(ledger AuditLogger, notifier Notifier, logger *logrus.Logger) *AuditService {
	return &AuditService{
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
	}
}

// Record appends audit to the ledger, stamping it with the request metadata in ctx
func (s *AuditService) Record(ctx context.Context, audit *models.PaymentAudit) {
	if s == nil || s.ledger == nil || audit == nil {
		return
	}
	audit.SetMetadata(models.RequestMetaFrom(ctx))

	if err := s.ledger.Log(ctx, audit); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"booking_id": audit.BookingID,
		}).Error("AUDIT ERROR: failed to record payment audit")
	}
}

// Notify publishes a lifecycle notification
func (s *AuditService) Notify(ctx context.Context, eventType models.BookingEventType, booking *models.Booking, reason string) {
	if s == nil || s.notifier == nil {
		return
	}
	notification := models.NewBookingNotification(eventType, booking)
	notification.Reason = reason

	if err := s.notifier.Publish(ctx, notification); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": eventType,
			"booking_id": booking.ID,
		}).Warn("Failed to publish booking notification")
	}
}
