package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/samsara/booking-engine/internal/models"
)

// TripInventory is the inventory surface the trip endpoints need
type TripInventory interface {
	CreateTrip(ctx context.Context, req *models.CreateTripRequest) (*models.Trip, error)
	Availability(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
}

// PurchaseFlow is the reserve, order and verify surface
type PurchaseFlow interface {
	ReserveBooking(ctx context.Context, userID uuid.UUID, req *models.ReserveBookingRequest) (*models.Booking, bool, error)
	CreatePaymentOrder(ctx context.Context, userID uuid.UUID, req *models.CreatePaymentOrderRequest) (*models.PaymentOrderResponse, error)
	VerifyPayment(ctx context.Context, userID uuid.UUID, req *models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error)
}

// BookingReview is the read and operator review surface
type BookingReview interface {
	GetBooking(ctx context.Context, requesterID, bookingID uuid.UUID, isOperator bool) (*models.Booking, error)
	ApproveBooking(ctx context.Context, bookingID, operatorID uuid.UUID) (*models.Booking, error)
	RejectBooking(ctx context.Context, bookingID, operatorID uuid.UUID, reason string) (*models.Booking, error)
	ConfirmBooking(ctx context.Context, bookingID, operatorID uuid.UUID) (*models.Booking, error)
	AuditTrail(ctx context.Context, bookingID uuid.UUID) ([]*models.PaymentAudit, error)
}

// CancellationWorkflow is the cancellation and refund queue surface
type CancellationWorkflow interface {
	RequestCancellation(ctx context.Context, userID, bookingID uuid.UUID, reason string) (*models.CancellationQuoteResponse, error)
	ApproveCancellation(ctx context.Context, bookingID, operatorID uuid.UUID) (*models.CancellationResult, error)
	RejectCancellation(ctx context.Context, bookingID, operatorID uuid.UUID, reason string) (*models.Booking, error)
	RetryRefund(ctx context.Context, bookingID, operatorID uuid.UUID) (*models.CancellationResult, error)
	ListRefunds(ctx context.Context, status models.RefundStatus, limit int) ([]*models.Booking, error)
}

// CompletionJob is the scheduled completion surface
type CompletionJob interface {
	RunCompletionNow(ctx context.Context) int
	GetJobStatus() map[string]interface{}
}

// HoldSweeper is the hold expiration surface
type HoldSweeper interface {
	RunOnce(ctx context.Context) int
}
