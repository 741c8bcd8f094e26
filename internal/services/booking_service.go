package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// AuditReader reads a booking's audit trail
type AuditReader interface {
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*models.PaymentAudit, error)
}

// BookingService handles operator transitions and booking reads
type BookingService struct {
	bookings  BookingStore
	inventory *InventoryService
	machine   *BookingStateMachine
	audit     *AuditService
	trail     AuditReader
	logger    *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	bookings BookingStore,
	inventory *InventoryService,
	machine *BookingStateMachine,
	audit *AuditService,
	trail AuditReader,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookings:  bookings,
		inventory: inventory,
		machine:   machine,
		audit:     audit,
		trail:     trail,
		logger:    logger,
	}
}

// GetBooking returns a booking to its owner or to an operator
func (s *BookingService) GetBooking(ctx context.Context, requesterID, bookingID uuid.UUID, isOperator bool) (*models.Booking, error) {
	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isOperator && booking.UserID != requesterID {
		return nil, models.NewForbiddenError("booking belongs to another user")
	}
	return booking, nil
}

// ApproveBooking moves a PENDING booking to APPROVED
func (s *BookingService) ApproveBooking(ctx context.Context, bookingID, operatorID uuid.UUID) (*models.Booking, error) {
	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	approved, err := s.machine.Fire(ctx, booking, EventApprove, nil)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  approved.ID,
		"operator_id": operatorID,
	}).Info("Booking approved")
	return approved, nil
}

// RejectBooking turns down a PENDING or APPROVED booking and releases its seats
func (s *BookingService) RejectBooking(ctx context.Context, bookingID, operatorID uuid.UUID, reason string) (*models.Booking, error) {
	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Payment.IsVerified() {
		return nil, models.NewConflictError("booking %s is paid; cancel it instead", booking.ID)
	}

	if reason == "" {
		reason = "rejected by operator"
	}
	rejected, err := s.machine.Fire(ctx, booking, EventReject, func(b *models.Booking) {
		b.Payment.FailureReason = reason
		b.HoldExpiresAt = nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  rejected.ID,
		"operator_id": operatorID,
		"reason":      reason,
	}).Info("Booking rejected")

	releaseBookingSeats(ctx, s.inventory, s.audit, s.logger, rejected, models.PaymentSourceOperator)
	return rejected, nil
}

// ConfirmBooking moves a PAID booking to CONFIRMED
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID, operatorID uuid.UUID) (*models.Booking, error) {
	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	confirmed, err := s.machine.Fire(ctx, booking, EventConfirm, nil)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  confirmed.ID,
		"operator_id": operatorID,
	}).Info("Booking confirmed")
	return confirmed, nil
}

// CompleteBooking marks a paid booking COMPLETED once its trip has run
func (s *BookingService) CompleteBooking(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	if !booking.Payment.IsVerified() {
		return nil, models.NewConflictError("booking %s was never paid and cannot be completed", booking.ID)
	}

	completed, err := s.machine.Fire(ctx, booking, EventComplete, nil)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventBookingCompleted, models.PaymentSourceSystem).
		SetBooking(completed))
	return completed, nil
}

// AuditTrail returns every ledger entry for a booking, oldest first
func (s *BookingService) AuditTrail(ctx context.Context, bookingID uuid.UUID) ([]*models.PaymentAudit, error) {
	if _, err := s.load(ctx, bookingID); err != nil {
		return nil, err
	}
	entries, err := s.trail.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit trail: %w", err)
	}
	return entries, nil
}

func (s *BookingService) load(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, models.NewNotFoundError("booking", bookingID)
	}
	return booking, nil
}
