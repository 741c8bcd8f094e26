package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventSeatsReserved         PaymentEventType = "seats_reserved"
	PaymentEventSeatsReleased         PaymentEventType = "seats_released"
	PaymentEventOrderCreated          PaymentEventType = "order_created"
	PaymentEventOrderFailed           PaymentEventType = "order_failed"
	PaymentEventVerified              PaymentEventType = "payment_verified"
	PaymentEventSignatureMismatch     PaymentEventType = "signature_mismatch"
	PaymentEventCancellationRequested PaymentEventType = "cancellation_requested"
	PaymentEventCancellationRejected  PaymentEventType = "cancellation_rejected"
	PaymentEventRefundInitiated       PaymentEventType = "refund_initiated"
	PaymentEventRefundProcessed       PaymentEventType = "refund_processed"
	PaymentEventRefundFailed          PaymentEventType = "refund_failed"
	PaymentEventHoldExpired           PaymentEventType = "hold_expired"
	PaymentEventBookingCompleted      PaymentEventType = "booking_completed"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceUser     PaymentEventSource = "user"
	PaymentSourceOperator PaymentEventSource = "operator"
	PaymentSourceGateway  PaymentEventSource = "gateway"
	PaymentSourceSystem   PaymentEventSource = "system"
)

// JSONB is a free-form JSON object column
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
// Returns JSON as string for compatibility with pgx simple protocol mode
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	return unmarshalJSONColumn(value, j)
}

// PaymentAudit represents an immutable audit log entry for a booking payment event
type PaymentAudit struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	BookingID *uuid.UUID `json:"booking_id,omitempty" db:"booking_id"`
	TripID    *uuid.UUID `json:"trip_id,omitempty" db:"trip_id"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty" db:"actor_id"`

	// Event info
	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	// Gateway references
	Gateway          *string `json:"gateway,omitempty" db:"gateway"`
	GatewayOrderID   *string `json:"gateway_order_id,omitempty" db:"gateway_order_id"`
	GatewayPaymentID *string `json:"gateway_payment_id,omitempty" db:"gateway_payment_id"`
	GatewayRefundID  *string `json:"gateway_refund_id,omitempty" db:"gateway_refund_id"`

	// Amount tracking
	ExpectedAmount *float64 `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *float64 `json:"received_amount,omitempty" db:"received_amount"`
	Currency       *string  `json:"currency,omitempty" db:"currency"`
	AmountsMatch   *bool    `json:"amounts_match,omitempty" db:"amounts_match"`
	SeatCount      *int     `json:"seat_count,omitempty" db:"seat_count"`

	// Status
	BookingStatus *string `json:"booking_status,omitempty" db:"booking_status"`

	Details JSONB `json:"details,omitempty" db:"details"`

	// Error tracking
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`
	ErrorCode    *string `json:"error_code,omitempty" db:"error_code"`

	IsDuplicate    bool    `json:"is_duplicate" db:"is_duplicate"`
	IdempotencyKey *string `json:"idempotency_key,omitempty" db:"idempotency_key"`

	// Metadata
	IPAddress     *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent     *string `json:"user_agent,omitempty" db:"user_agent"`
	DeviceType    *string `json:"device_type,omitempty" db:"device_type"`
	CorrelationID *string `json:"correlation_id,omitempty" db:"correlation_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetBooking sets the booking, trip and current status for the audit
func (pa *PaymentAudit) SetBooking(booking *Booking) *PaymentAudit {
	bookingID := booking.ID
	tripID := booking.TripID
	status := string(booking.Status)
	seats := booking.PartySize
	pa.BookingID = &bookingID
	pa.TripID = &tripID
	pa.BookingStatus = &status
	pa.SeatCount = &seats
	if booking.Payment.Currency != "" {
		currency := booking.Payment.Currency
		pa.Currency = &currency
	}
	if booking.Payment.Gateway != "" {
		pa.SetGatewayRefs(booking.Payment.Gateway, booking.Payment.GatewayOrderID, booking.Payment.GatewayPaymentID)
	}
	return pa
}

// SetActor sets the user or operator that triggered the event
func (pa *PaymentAudit) SetActor(actorID uuid.UUID) *PaymentAudit {
	if actorID != uuid.Nil {
		pa.ActorID = &actorID
	}
	return pa
}

// SetGatewayRefs sets the provider name and its order/payment ids
func (pa *PaymentAudit) SetGatewayRefs(gateway, orderID, paymentID string) *PaymentAudit {
	if gateway != "" {
		pa.Gateway = &gateway
	}
	if orderID != "" {
		pa.GatewayOrderID = &orderID
	}
	if paymentID != "" {
		pa.GatewayPaymentID = &paymentID
	}
	return pa
}

// SetRefundID sets the gateway refund id
func (pa *PaymentAudit) SetRefundID(refundID string) *PaymentAudit {
	if refundID != "" {
		pa.GatewayRefundID = &refundID
	}
	return pa
}

// SetAmounts sets and verifies amounts - returns whether they match
func (pa *PaymentAudit) SetAmounts(expected, received float64, currency string) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	pa.Currency = &currency

	// Compare with tolerance for floating point
	const tolerance = 0.01
	match := abs(expected-received) < tolerance
	pa.AmountsMatch = &match
	return match
}

// SetDetails stores extra event data
func (pa *PaymentAudit) SetDetails(details map[string]interface{}) *PaymentAudit {
	pa.Details = JSONB(details)
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string, code *string) *PaymentAudit {
	pa.ErrorMessage = &message
	pa.ErrorCode = code
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(meta RequestMeta) *PaymentAudit {
	if meta.IP != "" {
		pa.IPAddress = &meta.IP
	}
	if meta.UserAgent != "" {
		pa.UserAgent = &meta.UserAgent
	}
	if meta.DeviceType != "" {
		pa.DeviceType = &meta.DeviceType
	}
	if meta.CorrelationID != "" {
		pa.CorrelationID = &meta.CorrelationID
	}
	return pa
}

// MarkAsDuplicate marks this event as a replay of an earlier one
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}

// SetIdempotencyKey sets the idempotency key
func (pa *PaymentAudit) SetIdempotencyKey(key string) *PaymentAudit {
	if key != "" {
		pa.IdempotencyKey = &key
	}
	return pa
}

// abs returns absolute value of float64
func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
