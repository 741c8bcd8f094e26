package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingRowColumns = []string{
	"id", "trip_id", "user_id", "party_size", "status", "payment", "cancellation",
	"hold_expires_at", "idempotency_key", "version", "created_at", "updated_at",
}

func TestCreateBooking(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		hold := time.Now().Add(15 * time.Minute)
		key := "checkout-7781"
		booking := &models.Booking{
			TripID:         uuid.New(),
			UserID:         uuid.New(),
			PartySize:      4,
			Status:         models.BookingStatusPending,
			Payment:        models.PaymentRecord{Currency: "INR", GrandTotal: 5000},
			HoldExpiresAt:  &hold,
			IdempotencyKey: &key,
		}

		mock.ExpectExec(`INSERT INTO bookings`).
			WithArgs(
				sqlmock.AnyArg(), booking.TripID, booking.UserID, 4, "PENDING",
				sqlmock.AnyArg(), nil,
				hold, key, 1,
				sqlmock.AnyArg(), sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.CreateBooking(ctx, booking)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, booking.ID)
		assert.Equal(t, 1, booking.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		booking := &models.Booking{TripID: uuid.New(), UserID: uuid.New(), PartySize: 1, Status: models.BookingStatusPending}

		mock.ExpectExec(`INSERT INTO bookings`).
			WillReturnError(fmt.Errorf("duplicate key value violates unique constraint"))

		err := repo.CreateBooking(ctx, booking)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create booking")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetBookingByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()

	t.Run("Found With Cancellation", func(t *testing.T) {
		bookingID := uuid.New()
		tripID := uuid.New()
		userID := uuid.New()
		now := time.Now()

		payment := []byte(`{"currency":"INR","grand_total":5000,"gateway_order_id":"order_1","gateway_payment_id":"pay_1","verified_at":"2026-01-02T10:00:00Z"}`)
		cancellation := []byte(`{"reason":"plans changed","previous_status":"PAID","quote":{"amount":5000,"percentage":100}}`)

		mock.ExpectQuery(`SELECT .* FROM bookings WHERE id = \$1`).
			WithArgs(bookingID).
			WillReturnRows(sqlmock.NewRows(bookingRowColumns).AddRow(
				bookingID.String(), tripID.String(), userID.String(), 4, "CANCELLATION_REQUESTED",
				payment, cancellation, nil, nil, 3, now, now,
			))

		booking, err := repo.GetBookingByID(ctx, bookingID)
		require.NoError(t, err)
		require.NotNil(t, booking)
		assert.Equal(t, models.BookingStatusCancellationRequested, booking.Status)
		assert.Equal(t, 3, booking.Version)
		assert.Equal(t, "pay_1", booking.Payment.GatewayPaymentID)
		assert.True(t, booking.Payment.IsVerified())
		require.NotNil(t, booking.Cancellation)
		assert.Equal(t, models.BookingStatusPaid, booking.Cancellation.PreviousStatus)
		require.NotNil(t, booking.Cancellation.Quote)
		assert.Equal(t, 100, booking.Cancellation.Quote.Percentage)
		assert.Nil(t, booking.HoldExpiresAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		bookingID := uuid.New()

		mock.ExpectQuery(`SELECT .* FROM bookings WHERE id = \$1`).
			WithArgs(bookingID).
			WillReturnRows(sqlmock.NewRows(bookingRowColumns))

		booking, err := repo.GetBookingByID(ctx, bookingID)
		assert.NoError(t, err)
		assert.Nil(t, booking)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetBookingByIdempotencyKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM bookings WHERE user_id = \$1 AND idempotency_key = \$2`).
		WithArgs(userID, "checkout-1").
		WillReturnRows(sqlmock.NewRows(bookingRowColumns))

	booking, err := repo.GetBookingByIdempotencyKey(ctx, userID, "checkout-1")
	assert.NoError(t, err)
	assert.Nil(t, booking)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompareAndSwap(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()

	booking := &models.Booking{
		ID:      uuid.New(),
		Status:  models.BookingStatusPaid,
		Payment: models.PaymentRecord{GrandTotal: 5000},
		Version: 2,
	}

	t.Run("Won", func(t *testing.T) {
		mock.ExpectExec(`UPDATE bookings .* WHERE id = \$1 AND status = \$2 AND version = \$3`).
			WithArgs(booking.ID, "PENDING", 2, "PAID", sqlmock.AnyArg(), nil, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.CompareAndSwap(ctx, booking, models.BookingStatusPending, 2)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Lost", func(t *testing.T) {
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(booking.ID, "PENDING", 2, "PAID", sqlmock.AnyArg(), nil, nil).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.CompareAndSwap(ctx, booking, models.BookingStatusPending, 2)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListExpiredHolds(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()
	now := time.Now()
	expired := now.Add(-time.Minute)

	mock.ExpectQuery(`SELECT .* FROM bookings WHERE status IN \('PENDING', 'APPROVED'\)`).
		WithArgs(now, 50).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns).AddRow(
			uuid.New().String(), uuid.New().String(), uuid.New().String(), 2, "PENDING",
			[]byte(`{"currency":"INR","grand_total":1200}`), nil, expired, nil, 1, now, now,
		))

	bookings, err := repo.ListExpiredHolds(ctx, now, 50)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, 2, bookings[0].PartySize)
	assert.Nil(t, bookings[0].Cancellation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByRefundStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`cancellation->'refund'->>'status' = \$1`).
		WithArgs("FAILED", 100).
		WillReturnError(fmt.Errorf("timeout"))

	bookings, err := repo.ListByRefundStatus(ctx, models.RefundStatusFailed, 100)
	assert.Error(t, err)
	assert.Nil(t, bookings)
	assert.Contains(t, err.Error(), "failed to list bookings by refund status")
	assert.NoError(t, mock.ExpectationsWereMet())
}
