package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// BOOKING STATUSES (matches DB ENUM booking_status)
// ============================================================================

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusPending               BookingStatus = "PENDING"                // Seats reserved, awaiting payment
	BookingStatusApproved              BookingStatus = "APPROVED"               // Operator approved (or cancellation rejected)
	BookingStatusPaid                  BookingStatus = "PAID"                   // Payment verified
	BookingStatusConfirmed             BookingStatus = "CONFIRMED"              // Operator confirmed a paid booking
	BookingStatusRejected              BookingStatus = "REJECTED"               // Payment failed, hold expired or operator rejected
	BookingStatusCancellationRequested BookingStatus = "CANCELLATION_REQUESTED" // Customer asked to cancel
	BookingStatusCancelled             BookingStatus = "CANCELLED"              // Cancellation approved, seats released
	BookingStatusCompleted             BookingStatus = "COMPLETED"              // Trip took place
)

// IsTerminal reports whether no further transition is possible
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCancelled, BookingStatusCompleted, BookingStatusRejected:
		return true
	}
	return false
}

// RefundStatus represents the outcome of a refund attempt
type RefundStatus string

const (
	RefundStatusNotApplicable RefundStatus = "NOT_APPLICABLE"
	RefundStatusPending       RefundStatus = "PENDING"
	RefundStatusProcessed     RefundStatus = "PROCESSED"
	RefundStatusFailed        RefundStatus = "FAILED"
)

// ============================================================================
// SUB-RECORDS (stored as JSONB)
// ============================================================================

// PaymentRecord holds the gateway payment details of a booking
type PaymentRecord struct {
	Currency         string     `json:"currency"`
	Subtotal         float64    `json:"subtotal"`
	Taxes            float64    `json:"taxes"`
	Fees             float64    `json:"fees"`
	GrandTotal       float64    `json:"grand_total"`
	Gateway          string     `json:"gateway,omitempty"`
	GatewayOrderID   string     `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string     `json:"gateway_payment_id,omitempty"`
	Signature        string     `json:"signature,omitempty"`
	VerifiedAt       *time.Time `json:"verified_at,omitempty"`
	FailureReason    string     `json:"failure_reason,omitempty"`
}

// IsVerified reports whether a payment confirmation has been accepted
func (p PaymentRecord) IsVerified() bool {
	return p.VerifiedAt != nil
}

// PaidTotal is the amount actually collected, zero until verified
func (p PaymentRecord) PaidTotal() float64 {
	if !p.IsVerified() {
		return 0
	}
	return p.GrandTotal
}

// Value implements the driver.Valuer interface
func (p PaymentRecord) Value() (driver.Value, error) {
	return marshalJSONColumn(p)
}

// Scan implements the sql.Scanner interface
func (p *PaymentRecord) Scan(value interface{}) error {
	return unmarshalJSONColumn(value, p)
}

// RefundQuote is the amount and percentage refundable for a cancellation
type RefundQuote struct {
	Amount     float64 `json:"amount"`
	Percentage int     `json:"percentage"`
}

// RefundOutcome records what happened when the refund was executed
type RefundOutcome struct {
	Amount          float64      `json:"amount"`
	Percentage      int          `json:"percentage"`
	GatewayRefundID string       `json:"gateway_refund_id,omitempty"`
	Status          RefundStatus `json:"status"`
	ProcessedAt     *time.Time   `json:"processed_at,omitempty"`
	PendingSince    *time.Time   `json:"pending_since,omitempty"`
	Error           string       `json:"error,omitempty"`
	Attempts        int          `json:"attempts"`
}

// CancellationRecord holds the cancellation request and its resolution
type CancellationRecord struct {
	Reason          string         `json:"reason"`
	RequestedBy     uuid.UUID      `json:"requested_by"`
	RequestedAt     time.Time      `json:"requested_at"`
	PreviousStatus  BookingStatus  `json:"previous_status"`
	Quote           *RefundQuote   `json:"quote,omitempty"` // cleared when the request is rejected
	ApprovedBy      *uuid.UUID     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	RejectedBy      *uuid.UUID     `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time     `json:"rejected_at,omitempty"`
	Refund          *RefundOutcome `json:"refund,omitempty"`
}

// Value implements the driver.Valuer interface
func (c CancellationRecord) Value() (driver.Value, error) {
	return marshalJSONColumn(c)
}

// Scan implements the sql.Scanner interface
func (c *CancellationRecord) Scan(value interface{}) error {
	return unmarshalJSONColumn(value, c)
}

// ============================================================================
// BOOKING MODEL (bookings table)
// ============================================================================

// Booking is a reservation of PartySize seats on a trip
type Booking struct {
	ID             uuid.UUID           `json:"id" db:"id"`
	TripID         uuid.UUID           `json:"trip_id" db:"trip_id"`
	UserID         uuid.UUID           `json:"user_id" db:"user_id"`
	PartySize      int                 `json:"party_size" db:"party_size"`
	Status         BookingStatus       `json:"status" db:"status"`
	Payment        PaymentRecord       `json:"payment" db:"payment"`
	Cancellation   *CancellationRecord `json:"cancellation,omitempty" db:"cancellation"`
	HoldExpiresAt  *time.Time          `json:"hold_expires_at,omitempty" db:"hold_expires_at"`
	IdempotencyKey *string             `json:"-" db:"idempotency_key"`
	Version        int                 `json:"version" db:"version"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy so mutations can be discarded when a write loses a race
func (b *Booking) Clone() *Booking {
	c := *b
	if b.Cancellation != nil {
		cancellation := *b.Cancellation
		if cancellation.Quote != nil {
			quote := *cancellation.Quote
			cancellation.Quote = &quote
		}
		if cancellation.Refund != nil {
			refund := *cancellation.Refund
			cancellation.Refund = &refund
		}
		c.Cancellation = &cancellation
	}
	return &c
}

// RefundOutcome returns the recorded refund, if any
func (b *Booking) RefundOutcome() *RefundOutcome {
	if b.Cancellation == nil {
		return nil
	}
	return b.Cancellation.Refund
}

func marshalJSONColumn(v interface{}) (driver.Value, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	// Returned as string for compatibility with pgx simple protocol mode
	return string(bytes), nil
}

func unmarshalJSONColumn(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
}
