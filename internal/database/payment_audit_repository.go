package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log appends an audit entry; rows are never updated
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, booking_id, trip_id, actor_id,
			event_type, event_source,
			gateway, gateway_order_id, gateway_payment_id, gateway_refund_id,
			expected_amount, received_amount, currency, amounts_match, seat_count,
			booking_status, details,
			error_message, error_code,
			is_duplicate, idempotency_key,
			ip_address, user_agent, device_type, correlation_id,
			created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17,
			$18, $19,
			$20, $21,
			$22, $23, $24, $25,
			$26
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.BookingID, audit.TripID, audit.ActorID,
		audit.EventType, audit.EventSource,
		audit.Gateway, audit.GatewayOrderID, audit.GatewayPaymentID, audit.GatewayRefundID,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.Currency, audit.AmountsMatch, audit.SeatCount,
		audit.BookingStatus, audit.Details,
		audit.ErrorMessage, audit.ErrorCode,
		audit.IsDuplicate, audit.IdempotencyKey,
		audit.IPAddress, audit.UserAgent, audit.DeviceType, audit.CorrelationID,
		audit.CreatedAt,
	)

	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"booking_id": audit.BookingID,
		}).Error("CRITICAL: Failed to log payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
		"booking_id": audit.BookingID,
	}).Debug("Payment audit logged")

	return nil
}

// GetByBookingID retrieves the audit trail of a booking in order
func (r *PaymentAuditRepository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT * FROM payment_audits
		WHERE booking_id = $1
		ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &audits, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audits by booking ID: %w", err)
	}

	return audits, nil
}
