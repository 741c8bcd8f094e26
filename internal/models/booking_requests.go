package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// REQUEST DTOs
// ============================================================================

// ReserveBookingRequest reserves seats on a trip and opens a PENDING booking
type ReserveBookingRequest struct {
	TripID         uuid.UUID `json:"trip_id" binding:"required"`
	Count          int       `json:"count" binding:"required,gt=0,lte=50"`
	Subtotal       float64   `json:"subtotal" binding:"gte=0,money"`
	Taxes          float64   `json:"taxes" binding:"gte=0,money"`
	Fees           float64   `json:"fees" binding:"gte=0,money"`
	GrandTotal     float64   `json:"grand_total" binding:"required,gt=0,money"`
	Currency       string    `json:"currency" binding:"required,iso4217"`
	IdempotencyKey string    `json:"idempotency_key" binding:"omitempty,max=128"`
}

// CreatePaymentOrderRequest asks the gateway for an order on a booking
type CreatePaymentOrderRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
	Amount    float64   `json:"amount" binding:"required,gt=0,money"`
	Currency  string    `json:"currency" binding:"required,iso4217"`
}

// VerifyPaymentRequest carries the gateway confirmation triple
type VerifyPaymentRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
	OrderID   string    `json:"order_id" binding:"required"`
	PaymentID string    `json:"payment_id" binding:"required"`
	// Signature is empty for gateways confirmed server-side
	Signature string    `json:"signature"`
}

// RequestCancellationRequest is submitted by the booking owner
type RequestCancellationRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
	Reason    string    `json:"reason" binding:"required,max=500"`
}

// ApproveCancellationRequest is submitted by an operator
type ApproveCancellationRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
}

// RejectCancellationRequest is submitted by an operator
type RejectCancellationRequest struct {
	BookingID       uuid.UUID `json:"booking_id" binding:"required"`
	RejectionReason string    `json:"rejection_reason" binding:"required,max=500"`
}

// RejectBookingRequest is used by operators to turn a booking down
type RejectBookingRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// ============================================================================
// RESPONSE DTOs
// ============================================================================

// PaymentOrderResponse is the checkout handle returned to the client
type PaymentOrderResponse struct {
	OrderID   string    `json:"order_id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	BookingID uuid.UUID `json:"booking_id"`
	KeyID     string    `json:"key_id,omitempty"`
	Receipt   string    `json:"receipt"`
	Gateway   string    `json:"gateway"`
}

// VerifyPaymentResponse reports the outcome of a payment confirmation
type VerifyPaymentResponse struct {
	Status      BookingStatus `json:"status"`
	AlreadyPaid bool          `json:"already_paid"`
	Booking     *Booking      `json:"booking"`
}

// CancellationQuoteResponse is returned when a cancellation is requested
type CancellationQuoteResponse struct {
	Status  BookingStatus `json:"status"`
	Quote   RefundQuote   `json:"quote"`
	Booking *Booking      `json:"booking"`
}

// RefundResult summarizes the refund leg of an approved cancellation
type RefundResult struct {
	Eligible        bool         `json:"eligible"`
	Amount          float64      `json:"amount"`
	Percentage      int          `json:"percentage"`
	Processed       bool         `json:"processed"`
	GatewayRefundID string       `json:"gateway_refund_id,omitempty"`
	Status          RefundStatus `json:"status"`
	Error           string       `json:"error,omitempty"`
}

// CancellationResult is the outcome of approving a cancellation or retrying its refund
// Degraded is set when the booking was cancelled but the refund or seat release failed
type CancellationResult struct {
	Status   BookingStatus `json:"status"`
	Refund   RefundResult  `json:"refund"`
	Degraded bool          `json:"degraded"`
	Booking  *Booking      `json:"booking"`
}

// ============================================================================
// NOTIFICATIONS
// ============================================================================

// BookingEventType names a lifecycle notification
type BookingEventType string

const (
	BookingEventConfirmed             BookingEventType = "booking.confirmed"
	BookingEventCancellationRequested BookingEventType = "cancellation.requested"
	BookingEventCancellationApproved  BookingEventType = "cancellation.approved"
	BookingEventCancellationRejected  BookingEventType = "cancellation.rejected"
	BookingEventRefundFailed          BookingEventType = "refund.failed"
)

// BookingNotification is published to the message broker after a transition
type BookingNotification struct {
	EventID    uuid.UUID        `json:"event_id"`
	EventType  BookingEventType `json:"event_type"`
	BookingID  uuid.UUID        `json:"booking_id"`
	TripID     uuid.UUID        `json:"trip_id"`
	UserID     uuid.UUID        `json:"user_id"`
	Status     BookingStatus    `json:"status"`
	Amount     float64          `json:"amount,omitempty"`
	Currency   string           `json:"currency,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewBookingNotification builds a notification from the booking's current state
func NewBookingNotification(eventType BookingEventType, booking *Booking) BookingNotification {
	return BookingNotification{
		EventID:    uuid.New(),
		EventType:  eventType,
		BookingID:  booking.ID,
		TripID:     booking.TripID,
		UserID:     booking.UserID,
		Status:     booking.Status,
		Amount:     booking.Payment.GrandTotal,
		Currency:   booking.Payment.Currency,
		OccurredAt: time.Now(),
	}
}
