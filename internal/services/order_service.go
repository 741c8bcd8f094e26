package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samsara/booking-engine/internal/cache"
	"github.com/samsara/booking-engine/internal/database"
	"github.com/samsara/booking-engine/internal/gateway"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// amountTolerance absorbs float noise when comparing money in major units
const amountTolerance = 0.005

// OrderServiceConfig holds timings and secrets for the purchase flow
type OrderServiceConfig struct {
	HoldTTL        time.Duration // how long unpaid seats stay reserved
	IdempotencyTTL time.Duration // how long an in-flight idempotency claim is held
	SigningSecret  string        // HMAC secret for payment confirmations
	GatewayTimeout time.Duration
}

// OrderService handles the Reserve → Order → Verify purchase flow
type OrderService struct {
	bookings  BookingStore
	inventory *InventoryService
	machine   *BookingStateMachine
	gateway   gateway.Gateway
	claims    cache.Store
	audit     *AuditService
	config    OrderServiceConfig
	logger    *logrus.Logger
	now       func() time.Time
}

// NewOrderService creates a new OrderService
// claims may be nil, in which case idempotency relies on the booking store alone
func NewOrderService(
	bookings BookingStore,
	inventory *InventoryService,
	machine *BookingStateMachine,
	gw gateway.Gateway,
	claims cache.Store,
	audit *AuditService,
	config OrderServiceConfig,
	logger *logrus.Logger,
) *OrderService {
	return &OrderService{
		bookings:  bookings,
		inventory: inventory,
		machine:   machine,
		gateway:   gw,
		claims:    claims,
		audit:     audit,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// ============================================================================
// RESERVE
// ============================================================================

// ReserveBooking reserves seats and opens a PENDING booking holding them
// Returns replayed=true when the idempotency key matched an earlier reservation
func (s *OrderService) ReserveBooking(ctx context.Context, userID uuid.UUID, req *models.ReserveBookingRequest) (*models.Booking, bool, error) {
	if err := validateReserveRequest(req); err != nil {
		return nil, false, err
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		existing, err := s.bookings.GetBookingByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return nil, false, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if existing != nil {
			return s.replayReservation(existing, req)
		}

		claimed, err := s.claimKey(ctx, userID, key)
		if err != nil {
			return nil, false, err
		}
		if !claimed {
			return nil, false, models.NewConflictError("a reservation with this idempotency key is already in progress")
		}
	}

	booking, err := s.reserve(ctx, userID, req, key)
	if err != nil {
		s.releaseKey(ctx, userID, key)

		// A concurrent request with the same key won the insert
		if key != "" && database.IsUniqueViolation(err) {
			existing, lookupErr := s.bookings.GetBookingByIdempotencyKey(ctx, userID, key)
			if lookupErr == nil && existing != nil {
				return s.replayReservation(existing, req)
			}
		}
		return nil, false, err
	}
	return booking, false, nil
}

func (s *OrderService) reserve(ctx context.Context, userID uuid.UUID, req *models.ReserveBookingRequest, key string) (*models.Booking, error) {
	now := s.now()

	trip, err := s.inventory.Availability(ctx, req.TripID)
	if err != nil {
		return nil, err
	}
	if trip.HasDeparted(now) {
		return nil, models.NewValidationError("trip %s has already departed", trip.ID)
	}

	if err := s.inventory.Reserve(ctx, req.TripID, req.Count); err != nil {
		return nil, err
	}

	holdExpiresAt := now.Add(s.config.HoldTTL)
	booking := &models.Booking{
		TripID:    req.TripID,
		UserID:    userID,
		PartySize: req.Count,
		Status:    models.BookingStatusPending,
		Payment: models.PaymentRecord{
			Currency:   strings.ToUpper(req.Currency),
			Subtotal:   req.Subtotal,
			Taxes:      req.Taxes,
			Fees:       req.Fees,
			GrandTotal: req.GrandTotal,
		},
		HoldExpiresAt: &holdExpiresAt,
	}
	if key != "" {
		booking.IdempotencyKey = &key
	}

	if err := s.bookings.CreateBooking(ctx, booking); err != nil {
		// Give the seats back; nothing references them
		if relErr := s.inventory.Release(ctx, req.TripID, req.Count); relErr != nil {
			s.logger.WithError(relErr).WithField("trip_id", req.TripID).Error("Failed to release seats after booking insert failed")
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":      booking.ID,
		"trip_id":         booking.TripID,
		"user_id":         userID,
		"count":           req.Count,
		"hold_expires_at": holdExpiresAt,
	}).Info("Seats reserved")

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventSeatsReserved, models.PaymentSourceUser).
		SetBooking(booking).
		SetActor(userID).
		SetIdempotencyKey(key))

	return booking, nil
}

func (s *OrderService) replayReservation(existing *models.Booking, req *models.ReserveBookingRequest) (*models.Booking, bool, error) {
	if existing.TripID != req.TripID || existing.PartySize != req.Count {
		return nil, false, models.NewConflictError("idempotency key was already used for a different reservation")
	}
	s.logger.WithField("booking_id", existing.ID).Info("Reservation replayed from idempotency key")
	return existing, true, nil
}

func (s *OrderService) claimKey(ctx context.Context, userID uuid.UUID, key string) (bool, error) {
	if s.claims == nil {
		return true, nil
	}
	ok, err := s.claims.SetNX(ctx, idempotencyClaimKey(userID, key), "reserving", s.config.IdempotencyTTL)
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return ok, nil
}

func (s *OrderService) releaseKey(ctx context.Context, userID uuid.UUID, key string) {
	if s.claims == nil || key == "" {
		return
	}
	if err := s.claims.Delete(ctx, idempotencyClaimKey(userID, key)); err != nil {
		s.logger.WithError(err).Warn("Failed to release idempotency claim")
	}
}

func idempotencyClaimKey(userID uuid.UUID, key string) string {
	return "reserve:" + userID.String() + ":" + key
}

func validateReserveRequest(req *models.ReserveBookingRequest) error {
	if req.TripID == uuid.Nil {
		return models.NewValidationError("trip_id is required")
	}
	if req.Count <= 0 {
		return models.NewValidationError("count must be positive, got %d", req.Count)
	}
	if req.GrandTotal <= 0 {
		return models.NewValidationError("grand_total must be positive")
	}
	if req.Subtotal < 0 || req.Taxes < 0 || req.Fees < 0 {
		return models.NewValidationError("subtotal, taxes and fees cannot be negative")
	}
	if len(req.Currency) != 3 {
		return models.NewValidationError("currency must be a 3-letter ISO code")
	}
	if parts := req.Subtotal + req.Taxes + req.Fees; parts > 0 && math.Abs(parts-req.GrandTotal) > amountTolerance {
		return models.NewValidationError("grand_total %.2f does not equal subtotal + taxes + fees (%.2f)", req.GrandTotal, parts)
	}
	return nil
}

// ============================================================================
// PAYMENT ORDER
// ============================================================================

// CreatePaymentOrder opens a gateway order for the booking's grand total
// A gateway failure rejects the booking and releases its seats
func (s *OrderService) CreatePaymentOrder(ctx context.Context, userID uuid.UUID, req *models.CreatePaymentOrderRequest) (*models.PaymentOrderResponse, error) {
	booking, err := s.loadOwned(ctx, userID, req.BookingID)
	if err != nil {
		return nil, err
	}

	if booking.Payment.IsVerified() {
		return nil, models.NewConflictError("booking %s is already paid", booking.ID)
	}
	if booking.Status != models.BookingStatusPending && booking.Status != models.BookingStatusApproved {
		return nil, models.NewConflictError("cannot create a payment order for a booking in status %s", booking.Status)
	}
	if !strings.EqualFold(req.Currency, booking.Payment.Currency) {
		return nil, models.NewValidationError("currency %s does not match booking currency %s", req.Currency, booking.Payment.Currency)
	}
	if math.Abs(req.Amount-booking.Payment.GrandTotal) > amountTolerance {
		return nil, models.NewValidationError("amount %.2f does not match booking grand total %.2f", req.Amount, booking.Payment.GrandTotal)
	}

	// One order per booking
	if booking.Payment.GatewayOrderID != "" {
		return s.orderResponse(booking), nil
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
	defer cancel()

	order, err := s.gateway.CreateOrder(gwCtx, gateway.OrderRequest{
		Amount:   booking.Payment.GrandTotal,
		Currency: booking.Payment.Currency,
		Receipt:  receiptFor(booking),
		Notes: map[string]string{
			"booking_id": booking.ID.String(),
			"trip_id":    booking.TripID.String(),
			"user_id":    booking.UserID.String(),
		},
	})
	if err != nil {
		return nil, s.failOrder(ctx, booking, err)
	}

	updated, err := s.machine.Amend(ctx, booking, func(b *models.Booking) {
		b.Payment.Gateway = s.gateway.Name()
		b.Payment.GatewayOrderID = order.ID
	})
	if err != nil {
		// A concurrent request may have recorded its own order first
		if models.IsKind(err, models.KindConflict) {
			if current, loadErr := s.bookings.GetBookingByID(ctx, booking.ID); loadErr == nil && current != nil && current.Payment.GatewayOrderID != "" {
				s.logger.WithFields(logrus.Fields{
					"booking_id":     booking.ID,
					"orphan_order":   order.ID,
					"recorded_order": current.Payment.GatewayOrderID,
				}).Warn("Concurrent payment order detected, returning recorded order")
				return s.orderResponse(current), nil
			}
		}
		return nil, err
	}

	audit := models.NewPaymentAudit(models.PaymentEventOrderCreated, models.PaymentSourceGateway).
		SetBooking(updated).
		SetActor(userID)
	if !audit.SetAmounts(updated.Payment.GrandTotal, order.Amount, updated.Payment.Currency) {
		s.logger.WithFields(logrus.Fields{
			"booking_id": updated.ID,
			"expected":   updated.Payment.GrandTotal,
			"ordered":    order.Amount,
		}).Error("Gateway order amount differs from booking grand total")
	}
	s.audit.Record(ctx, audit)

	s.logger.WithFields(logrus.Fields{
		"booking_id": updated.ID,
		"order_id":   order.ID,
		"gateway":    s.gateway.Name(),
	}).Info("Payment order created")

	return s.orderResponse(updated), nil
}

// failOrder rejects the booking, releases its seats and returns the gateway error
func (s *OrderService) failOrder(ctx context.Context, booking *models.Booking, cause error) error {
	retryable := gateway.IsRetryable(cause) || errors.Is(cause, context.DeadlineExceeded)

	s.logger.WithError(cause).WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"retryable":  retryable,
	}).Error("Failed to create payment order")

	rejected, err := s.machine.Fire(ctx, booking, EventReject, func(b *models.Booking) {
		b.Payment.FailureReason = "payment order failed: " + cause.Error()
		b.HoldExpiresAt = nil
	})
	if err != nil {
		// Someone else already moved the booking on and owns the seats' fate
		s.logger.WithError(err).WithField("booking_id", booking.ID).Warn("Could not reject booking after order failure")
	} else {
		s.releaseSeats(ctx, rejected, models.PaymentSourceGateway)
		booking = rejected
	}

	code := ""
	var gwErr *gateway.Error
	if errors.As(cause, &gwErr) {
		code = gwErr.Code
	}
	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventOrderFailed, models.PaymentSourceGateway).
		SetBooking(booking).
		SetError(cause.Error(), stringPtr(code)))

	return models.NewGatewayError("payment gateway could not create an order", retryable, cause)
}

func (s *OrderService) orderResponse(booking *models.Booking) *models.PaymentOrderResponse {
	return &models.PaymentOrderResponse{
		OrderID:   booking.Payment.GatewayOrderID,
		Amount:    booking.Payment.GrandTotal,
		Currency:  booking.Payment.Currency,
		BookingID: booking.ID,
		KeyID:     s.gateway.KeyID(),
		Receipt:   receiptFor(booking),
		Gateway:   s.gateway.Name(),
	}
}

// receiptFor derives a stable receipt id (max 40 chars at Razorpay)
func receiptFor(booking *models.Booking) string {
	return "bk_" + strings.ReplaceAll(booking.ID.String(), "-", "")
}

// ============================================================================
// VERIFY
// ============================================================================

// VerifyPayment checks the gateway confirmation and marks the booking PAID
// Replaying an accepted confirmation is a no-op success
func (s *OrderService) VerifyPayment(ctx context.Context, userID uuid.UUID, req *models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error) {
	if req.OrderID == "" || req.PaymentID == "" {
		return nil, models.NewValidationError("order_id and payment_id are required")
	}
	if _, confirms := s.gateway.(gateway.PaymentConfirmer); !confirms && req.Signature == "" {
		return nil, models.NewValidationError("signature is required")
	}

	booking, err := s.loadOwned(ctx, userID, req.BookingID)
	if err != nil {
		return nil, err
	}

	if booking.Payment.IsVerified() {
		valid, err := s.authenticate(ctx, booking, req)
		if err != nil {
			return nil, err
		}
		return s.replayVerification(ctx, booking, req, valid)
	}

	if booking.Payment.GatewayOrderID == "" {
		return nil, models.NewValidationError("no payment order exists for booking %s", booking.ID)
	}
	if req.OrderID != booking.Payment.GatewayOrderID {
		return nil, models.NewValidationError("order_id does not match the booking's payment order")
	}

	valid, err := s.authenticate(ctx, booking, req)
	if err != nil {
		return nil, err
	}

	if booking.Status != models.BookingStatusPending && booking.Status != models.BookingStatusApproved {
		if valid {
			s.logger.WithFields(logrus.Fields{
				"booking_id": booking.ID,
				"status":     booking.Status,
				"payment_id": req.PaymentID,
			}).Error("Valid payment received for a booking that can no longer be paid - manual refund required")
			s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventVerified, models.PaymentSourceGateway).
				SetBooking(booking).
				SetActor(userID).
				SetGatewayRefs(booking.Payment.Gateway, req.OrderID, req.PaymentID).
				SetError("payment captured after booking left a payable status", nil))
		}
		return nil, models.NewConflictError("booking %s cannot be paid in status %s", booking.ID, booking.Status)
	}

	if !valid {
		return nil, s.rejectForSignature(ctx, booking, userID, req)
	}

	verifiedAt := s.now()
	paid, err := s.machine.Fire(ctx, booking, EventMarkPaid, func(b *models.Booking) {
		b.Payment.GatewayPaymentID = req.PaymentID
		b.Payment.Signature = req.Signature
		b.Payment.VerifiedAt = &verifiedAt
		b.Payment.FailureReason = ""
		b.HoldExpiresAt = nil
	})
	if err != nil {
		if models.IsKind(err, models.KindConflict) {
			// A concurrent verification of the same payment may have won
			current, loadErr := s.bookings.GetBookingByID(ctx, booking.ID)
			if loadErr == nil && current != nil && current.Payment.IsVerified() && current.Payment.GatewayPaymentID == req.PaymentID {
				return &models.VerifyPaymentResponse{Status: current.Status, AlreadyPaid: true, Booking: current}, nil
			}
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": paid.ID,
		"order_id":   req.OrderID,
		"payment_id": req.PaymentID,
	}).Info("Payment verified")

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventVerified, models.PaymentSourceUser).
		SetBooking(paid).
		SetActor(userID))
	s.audit.Notify(ctx, models.BookingEventConfirmed, paid, "")

	return &models.VerifyPaymentResponse{Status: paid.Status, Booking: paid}, nil
}

// authenticate reports whether the confirmation really comes from the gateway
// Signature providers are checked locally; confirming providers are asked for the payment
func (s *OrderService) authenticate(ctx context.Context, booking *models.Booking, req *models.VerifyPaymentRequest) (bool, error) {
	confirmer, ok := s.gateway.(gateway.PaymentConfirmer)
	if !ok {
		return VerifyConfirmation(req.OrderID, req.PaymentID, req.Signature, s.config.SigningSecret), nil
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
	defer cancel()

	payment, err := confirmer.ConfirmPayment(gwCtx, req.OrderID)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to confirm payment with gateway")
		return false, models.NewGatewayError("payment gateway could not confirm the payment", gateway.IsRetryable(err), err)
	}
	if !payment.Succeeded {
		incomplete := models.NewConflictError("payment %s is not complete (status %s)", payment.ID, payment.Status)
		incomplete.Retryable = true
		return false, incomplete
	}

	return payment.ID == req.PaymentID &&
		gateway.ToMinorUnits(payment.Amount) == gateway.ToMinorUnits(booking.Payment.GrandTotal) &&
		strings.EqualFold(payment.Currency, booking.Payment.Currency), nil
}

func (s *OrderService) replayVerification(ctx context.Context, booking *models.Booking, req *models.VerifyPaymentRequest, valid bool) (*models.VerifyPaymentResponse, error) {
	if !valid {
		s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventSignatureMismatch, models.PaymentSourceUser).
			SetBooking(booking).
			SetError("invalid signature replayed against a paid booking", nil))
		return nil, models.NewSignatureMismatchError(booking.Status)
	}
	if req.OrderID != booking.Payment.GatewayOrderID || req.PaymentID != booking.Payment.GatewayPaymentID {
		return nil, models.NewConflictError("booking %s is already paid by a different payment", booking.ID)
	}

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventVerified, models.PaymentSourceUser).
		SetBooking(booking).
		MarkAsDuplicate())

	return &models.VerifyPaymentResponse{Status: booking.Status, AlreadyPaid: true, Booking: booking}, nil
}

// rejectForSignature treats a bad signature as a security event: reject and release
func (s *OrderService) rejectForSignature(ctx context.Context, booking *models.Booking, userID uuid.UUID, req *models.VerifyPaymentRequest) error {
	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"order_id":   req.OrderID,
		"payment_id": req.PaymentID,
	}).Warn("SECURITY: payment signature mismatch")

	var status models.BookingStatus
	rejected, err := s.machine.Fire(ctx, booking, EventReject, func(b *models.Booking) {
		b.Payment.FailureReason = "payment signature verification failed"
		b.HoldExpiresAt = nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Warn("Could not reject booking after signature mismatch")
	} else {
		s.releaseSeats(ctx, rejected, models.PaymentSourceSystem)
		booking = rejected
		status = rejected.Status
	}

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventSignatureMismatch, models.PaymentSourceUser).
		SetBooking(booking).
		SetActor(userID).
		SetGatewayRefs("", req.OrderID, req.PaymentID))

	return models.NewSignatureMismatchError(status)
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *OrderService) loadOwned(ctx context.Context, userID, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, models.NewNotFoundError("booking", bookingID)
	}
	if booking.UserID != userID {
		return nil, models.NewForbiddenError("booking belongs to another user")
	}
	return booking, nil
}

// releaseSeats returns a booking's seats after this caller won its terminal transition
func (s *OrderService) releaseSeats(ctx context.Context, booking *models.Booking, source models.PaymentEventSource) {
	releaseBookingSeats(ctx, s.inventory, s.audit, s.logger, booking, source)
}

func releaseBookingSeats(ctx context.Context, inventory *InventoryService, audit *AuditService, logger *logrus.Logger, booking *models.Booking, source models.PaymentEventSource) error {
	entry := models.NewPaymentAudit(models.PaymentEventSeatsReleased, source).SetBooking(booking)

	if err := inventory.Release(ctx, booking.TripID, booking.PartySize); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"trip_id":    booking.TripID,
			"count":      booking.PartySize,
		}).Error("Failed to release seats")
		audit.Record(ctx, entry.SetError(err.Error(), nil))
		return err
	}

	audit.Record(ctx, entry)
	return nil
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
