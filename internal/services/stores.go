package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samsara/booking-engine/internal/models"
)

// TripStore is the persistence the inventory manager needs
type TripStore interface {
	CreateTrip(ctx context.Context, trip *models.Trip) error
	GetTripByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
	DecrementAvailable(ctx context.Context, tripID uuid.UUID, count int) (bool, error)
	IncrementAvailable(ctx context.Context, tripID uuid.UUID, count int) (bool, error)
}

// BookingStore is the persistence the booking workflows need
type BookingStore interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBookingByID(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
	GetBookingByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.Booking, error)
	CompareAndSwap(ctx context.Context, booking *models.Booking, expectedStatus models.BookingStatus, expectedVersion int) (bool, error)
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*models.Booking, error)
	ListByRefundStatus(ctx context.Context, status models.RefundStatus, limit int) ([]*models.Booking, error)
	ListCompletable(ctx context.Context, startedBefore time.Time, limit int) ([]*models.Booking, error)
}

// AuditLogger appends to the payment audit ledger
type AuditLogger interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
}

// Notifier publishes lifecycle notifications
type Notifier interface {
	Publish(ctx context.Context, notification models.BookingNotification) error
}
