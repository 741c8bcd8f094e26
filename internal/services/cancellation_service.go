package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samsara/booking-engine/internal/gateway"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
)

const refundNotRecorded = "refund outcome could not be recorded; retry once the refund has been pending past the gateway timeout"

// CancellationService coordinates request → quote → approve → refund → release
type CancellationService struct {
	bookings       BookingStore
	inventory      *InventoryService
	machine        *BookingStateMachine
	gateway        gateway.Gateway
	audit          *AuditService
	gatewayTimeout time.Duration
	logger         *logrus.Logger
	now            func() time.Time
}

// NewCancellationService creates a new CancellationService
func NewCancellationService(
	bookings BookingStore,
	inventory *InventoryService,
	machine *BookingStateMachine,
	gw gateway.Gateway,
	audit *AuditService,
	gatewayTimeout time.Duration,
	logger *logrus.Logger,
) *CancellationService {
	return &CancellationService{
		bookings:       bookings,
		inventory:      inventory,
		machine:        machine,
		gateway:        gw,
		audit:          audit,
		gatewayTimeout: gatewayTimeout,
		logger:         logger,
		now:            time.Now,
	}
}

// RequestCancellation records the owner's request and quotes the refund
// The quote is frozen on the booking and honored at approval
func (s *CancellationService) RequestCancellation(ctx context.Context, userID, bookingID uuid.UUID, reason string) (*models.CancellationQuoteResponse, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("a cancellation reason is required")
	}

	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, models.NewForbiddenError("booking belongs to another user")
	}
	if booking.Status.IsTerminal() {
		return nil, models.NewConflictError("booking %s is already %s", booking.ID, booking.Status)
	}
	if booking.Status == models.BookingStatusCancellationRequested {
		return nil, models.NewConflictError("cancellation already requested for booking %s", booking.ID)
	}

	trip, err := s.inventory.Availability(ctx, booking.TripID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	quote := QuoteRefund(trip.StartDate, now, booking.Payment.PaidTotal())

	requested, err := s.machine.Fire(ctx, booking, EventRequestCancellation, func(b *models.Booking) {
		b.Cancellation = &models.CancellationRecord{
			Reason:         reason,
			RequestedBy:    userID,
			RequestedAt:    now,
			PreviousStatus: booking.Status,
			Quote:          &quote,
		}
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":        requested.ID,
		"refund_amount":     quote.Amount,
		"refund_percentage": quote.Percentage,
	}).Info("Cancellation requested")

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventCancellationRequested, models.PaymentSourceUser).
		SetBooking(requested).
		SetActor(userID).
		SetDetails(map[string]interface{}{
			"reason":            reason,
			"refund_amount":     quote.Amount,
			"refund_percentage": quote.Percentage,
			"days_until_trip":   DaysUntilTrip(trip.StartDate, now),
		}))
	s.audit.Notify(ctx, models.BookingEventCancellationRequested, requested, reason)

	return &models.CancellationQuoteResponse{
		Status:  requested.Status,
		Quote:   quote,
		Booking: requested,
	}, nil
}

// ApproveCancellation cancels the booking, refunds the quoted amount and releases its seats
// The CANCELLED transition is committed first, so of two concurrent approvals only one refunds
func (s *CancellationService) ApproveCancellation(ctx context.Context, bookingID, operatorID uuid.UUID) (*models.CancellationResult, error) {
	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusCancellationRequested {
		return nil, models.NewConflictError("booking %s has no pending cancellation request (status %s)", booking.ID, booking.Status)
	}

	quote := models.RefundQuote{}
	if booking.Cancellation != nil && booking.Cancellation.Quote != nil {
		quote = *booking.Cancellation.Quote
	}
	eligible := quote.Amount > 0 && booking.Payment.GatewayPaymentID != ""

	now := s.now()
	cancelled, err := s.machine.Fire(ctx, booking, EventApproveCancellation, func(b *models.Booking) {
		if b.Cancellation == nil {
			b.Cancellation = &models.CancellationRecord{}
		}
		b.Cancellation.ApprovedBy = &operatorID
		b.Cancellation.ApprovedAt = &now
		b.Cancellation.Refund = &models.RefundOutcome{
			Amount:     quote.Amount,
			Percentage: quote.Percentage,
			Status:     models.RefundStatusNotApplicable,
		}
		if eligible {
			b.Cancellation.Refund.Status = models.RefundStatusPending
			b.Cancellation.Refund.PendingSince = &now
		}
		b.HoldExpiresAt = nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  cancelled.ID,
		"operator_id": operatorID,
		"eligible":    eligible,
		"amount":      quote.Amount,
	}).Info("Cancellation approved")

	result := &models.CancellationResult{
		Refund: models.RefundResult{
			Eligible:   eligible,
			Amount:     quote.Amount,
			Percentage: quote.Percentage,
			Status:     models.RefundStatusNotApplicable,
		},
	}

	if eligible {
		var recorded bool
		cancelled, recorded = s.executeRefund(ctx, cancelled, operatorID)
		fillRefundResult(&result.Refund, cancelled.RefundOutcome())
		if !recorded {
			result.Refund.Error = refundNotRecorded
		}
		if !recorded || result.Refund.Status != models.RefundStatusProcessed {
			result.Degraded = true
		}
	}

	if err := releaseBookingSeats(ctx, s.inventory, s.audit, s.logger, cancelled, models.PaymentSourceOperator); err != nil {
		result.Degraded = true
	}

	result.Status = cancelled.Status
	result.Booking = cancelled

	s.audit.Notify(ctx, models.BookingEventCancellationApproved, cancelled, "")
	if eligible && !result.Refund.Processed {
		s.audit.Notify(ctx, models.BookingEventRefundFailed, cancelled, result.Refund.Error)
	}

	return result, nil
}

// RejectCancellation turns the request down and returns the booking to APPROVED
// The payment record is left intact
func (s *CancellationService) RejectCancellation(ctx context.Context, bookingID, operatorID uuid.UUID, reason string) (*models.Booking, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("a rejection reason is required")
	}

	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rejected, err := s.machine.Fire(ctx, booking, EventRejectCancellation, func(b *models.Booking) {
		if b.Cancellation == nil {
			b.Cancellation = &models.CancellationRecord{}
		}
		b.Cancellation.Quote = nil
		b.Cancellation.RejectionReason = reason
		b.Cancellation.RejectedBy = &operatorID
		b.Cancellation.RejectedAt = &now
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  rejected.ID,
		"operator_id": operatorID,
	}).Info("Cancellation rejected")

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventCancellationRejected, models.PaymentSourceOperator).
		SetBooking(rejected).
		SetActor(operatorID).
		SetDetails(map[string]interface{}{"rejection_reason": reason}))
	s.audit.Notify(ctx, models.BookingEventCancellationRejected, rejected, reason)

	return rejected, nil
}

// RetryRefund re-executes a FAILED refund on a cancelled booking
// A PENDING refund is also retried once it has been pending longer than the gateway timeout,
// which covers an outcome that was never recorded
func (s *CancellationService) RetryRefund(ctx context.Context, bookingID, operatorID uuid.UUID) (*models.CancellationResult, error) {
	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	outcome := booking.RefundOutcome()
	if booking.Status != models.BookingStatusCancelled || outcome == nil || !s.retryable(outcome, now) {
		return nil, models.NewConflictError("booking %s has no retryable refund", booking.ID)
	}

	// Claim the retry so concurrent retries cannot both reach the gateway
	claimed, err := s.machine.Amend(ctx, booking, func(b *models.Booking) {
		b.Cancellation.Refund.Status = models.RefundStatusPending
		b.Cancellation.Refund.PendingSince = &now
		b.Cancellation.Refund.Error = ""
	})
	if err != nil {
		return nil, err
	}

	updated, recorded := s.executeRefund(ctx, claimed, operatorID)

	result := &models.CancellationResult{
		Status:  updated.Status,
		Booking: updated,
		Refund:  models.RefundResult{Eligible: true},
	}
	fillRefundResult(&result.Refund, updated.RefundOutcome())
	if !recorded {
		result.Refund.Error = refundNotRecorded
	}
	result.Degraded = !recorded || !result.Refund.Processed

	if result.Degraded {
		s.audit.Notify(ctx, models.BookingEventRefundFailed, updated, result.Refund.Error)
	}
	return result, nil
}

// ListRefunds returns cancelled bookings whose refund is in status
func (s *CancellationService) ListRefunds(ctx context.Context, status models.RefundStatus, limit int) ([]*models.Booking, error) {
	switch status {
	case models.RefundStatusPending, models.RefundStatusProcessed, models.RefundStatusFailed:
	default:
		return nil, models.NewValidationError("invalid refund status %q", status)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	bookings, err := s.bookings.ListByRefundStatus(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	return bookings, nil
}

func (s *CancellationService) retryable(outcome *models.RefundOutcome, now time.Time) bool {
	switch outcome.Status {
	case models.RefundStatusFailed:
		return true
	case models.RefundStatusPending:
		return outcome.PendingSince == nil || now.Sub(*outcome.PendingSince) > s.gatewayTimeout
	}
	return false
}

// executeRefund calls the gateway for a booking whose refund is PENDING and records the outcome
// The returned booking is the latest persisted copy; recorded is false when the outcome write failed
func (s *CancellationService) executeRefund(ctx context.Context, booking *models.Booking, operatorID uuid.UUID) (*models.Booking, bool) {
	outcome := booking.RefundOutcome()

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventRefundInitiated, models.PaymentSourceOperator).
		SetBooking(booking).
		SetActor(operatorID).
		SetDetails(map[string]interface{}{
			"amount":     outcome.Amount,
			"percentage": outcome.Percentage,
			"attempt":    outcome.Attempts + 1,
		}))

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	refund, refundErr := s.gateway.Refund(gwCtx, gateway.RefundRequest{
		PaymentID: booking.Payment.GatewayPaymentID,
		Amount:    outcome.Amount,
		Currency:  booking.Payment.Currency,
		Notes: map[string]string{
			"booking_id": booking.ID.String(),
			"reason":     "booking cancelled",
		},
	})
	cancel()

	processedAt := s.now()
	updated, err := s.machine.Amend(ctx, booking, func(b *models.Booking) {
		r := b.Cancellation.Refund
		r.Attempts++
		r.PendingSince = nil
		if refundErr != nil {
			r.Status = models.RefundStatusFailed
			r.Error = refundErr.Error()
			return
		}
		r.Status = models.RefundStatusProcessed
		r.GatewayRefundID = refund.ID
		r.ProcessedAt = &processedAt
		r.Error = ""
	})
	recorded := err == nil
	if !recorded {
		// The gateway call happened; the ledger below is the record of it
		fields := logrus.Fields{"booking_id": booking.ID}
		if refund != nil {
			fields["refund_id"] = refund.ID
		}
		s.logger.WithError(err).WithFields(fields).Error("CRITICAL: failed to persist refund outcome")
		updated = s.stored(ctx, booking)
	}

	if refundErr != nil {
		s.logger.WithError(refundErr).WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"payment_id": booking.Payment.GatewayPaymentID,
			"amount":     outcome.Amount,
			"retryable":  gateway.IsRetryable(refundErr),
		}).Error("Refund failed")
		s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventRefundFailed, models.PaymentSourceGateway).
			SetBooking(updated).
			SetActor(operatorID).
			SetError(refundErr.Error(), nil))
		return updated, recorded
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"refund_id":  refund.ID,
		"amount":     refund.Amount,
	}).Info("Refund processed")

	audit := models.NewPaymentAudit(models.PaymentEventRefundProcessed, models.PaymentSourceGateway).
		SetBooking(updated).
		SetActor(operatorID).
		SetRefundID(refund.ID)
	audit.SetAmounts(outcome.Amount, refund.Amount, booking.Payment.Currency)
	s.audit.Record(ctx, audit)

	return updated, recorded
}

// stored re-reads booking after a failed write, falling back to the copy the caller holds
func (s *CancellationService) stored(ctx context.Context, booking *models.Booking) *models.Booking {
	current, err := s.bookings.GetBookingByID(ctx, booking.ID)
	if err != nil || current == nil {
		return booking.Clone()
	}
	return current
}

func fillRefundResult(result *models.RefundResult, outcome *models.RefundOutcome) {
	if outcome == nil {
		return
	}
	result.Status = outcome.Status
	result.Processed = outcome.Status == models.RefundStatusProcessed
	result.GatewayRefundID = outcome.GatewayRefundID
	result.Error = outcome.Error
	result.Amount = outcome.Amount
	result.Percentage = outcome.Percentage
}

func (s *CancellationService) load(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, models.NewNotFoundError("booking", bookingID)
	}
	return booking, nil
}
