package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/samsara/booking-engine/internal/models"
)

const bookingColumns = `
	id, trip_id, user_id, party_size, status, payment, cancellation,
	hold_expires_at, idempotency_key, version, created_at, updated_at`

// BookingRepository handles booking database operations
// Bookings are never deleted, only transitioned through CompareAndSwap
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// ============================================================================
// BOOKING CRUD OPERATIONS
// ============================================================================

// CreateBooking inserts a new booking at version 1
func (r *BookingRepository) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	now := time.Now()
	booking.Version = 1
	booking.CreatedAt = now
	booking.UpdatedAt = now

	query := `
		INSERT INTO bookings (` + bookingColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		booking.ID, booking.TripID, booking.UserID, booking.PartySize, booking.Status,
		booking.Payment, booking.Cancellation,
		booking.HoldExpiresAt, booking.IdempotencyKey, booking.Version,
		booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetBookingByID retrieves a booking, returning nil if it does not exist
func (r *BookingRepository) GetBookingByID(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	err := r.db.GetContext(ctx, &booking, query, bookingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// GetBookingByIdempotencyKey finds the booking a user created with the given key
func (r *BookingRepository) GetBookingByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 AND idempotency_key = $2`

	err := r.db.GetContext(ctx, &booking, query, userID, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get booking by idempotency key: %w", err)
	}
	return &booking, nil
}

// CompareAndSwap writes the booking only if the stored row still has the expected status and version
// Returns false when another writer got there first
func (r *BookingRepository) CompareAndSwap(ctx context.Context, booking *models.Booking, expectedStatus models.BookingStatus, expectedVersion int) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $4,
			payment = $5,
			cancellation = $6,
			hold_expires_at = $7,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND status = $2 AND version = $3`

	result, err := r.db.ExecContext(ctx, query,
		booking.ID, expectedStatus, expectedVersion,
		booking.Status, booking.Payment, booking.Cancellation, booking.HoldExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update booking: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// ============================================================================
// SWEEPS & OPERATOR QUEUES
// ============================================================================

// ListExpiredHolds returns unpaid bookings whose seat hold ran out before now
func (r *BookingRepository) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*models.Booking, error) {
	var bookings []*models.Booking
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status IN ('PENDING', 'APPROVED')
		AND hold_expires_at IS NOT NULL
		AND hold_expires_at <= $1
		ORDER BY hold_expires_at ASC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &bookings, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list expired holds: %w", err)
	}
	return bookings, nil
}

// ListByRefundStatus returns cancelled bookings whose refund is in the given state
func (r *BookingRepository) ListByRefundStatus(ctx context.Context, status models.RefundStatus, limit int) ([]*models.Booking, error) {
	var bookings []*models.Booking
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'CANCELLED'
		AND cancellation->'refund'->>'status' = $1
		ORDER BY updated_at ASC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &bookings, query, string(status), limit); err != nil {
		return nil, fmt.Errorf("failed to list bookings by refund status: %w", err)
	}
	return bookings, nil
}

// ListCompletable returns paid bookings whose trip started at or before the cutoff
// A paid booking whose cancellation was rejected sits in APPROVED and is included
func (r *BookingRepository) ListCompletable(ctx context.Context, startedBefore time.Time, limit int) ([]*models.Booking, error) {
	var bookings []*models.Booking
	query := `
		SELECT b.id, b.trip_id, b.user_id, b.party_size, b.status, b.payment, b.cancellation,
			b.hold_expires_at, b.idempotency_key, b.version, b.created_at, b.updated_at
		FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		WHERE (b.status IN ('PAID', 'CONFIRMED')
			OR (b.status = 'APPROVED' AND b.payment->>'verified_at' IS NOT NULL))
		AND t.start_date <= $1
		ORDER BY t.start_date ASC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &bookings, query, startedBefore, limit); err != nil {
		return nil, fmt.Errorf("failed to list completable bookings: %w", err)
	}
	return bookings, nil
}
