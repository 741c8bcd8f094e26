package services

import (
	"context"
	"fmt"

	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// BookingEvent is a lifecycle trigger
type BookingEvent string

const (
	EventApprove             BookingEvent = "approve"
	EventMarkPaid            BookingEvent = "mark_paid"
	EventConfirm             BookingEvent = "confirm"
	EventReject              BookingEvent = "reject"
	EventRequestCancellation BookingEvent = "request_cancellation"
	EventApproveCancellation BookingEvent = "approve_cancellation"
	EventRejectCancellation  BookingEvent = "reject_cancellation"
	EventComplete            BookingEvent = "complete"
)

type transition struct {
	from []models.BookingStatus
	to   models.BookingStatus
}

var transitions = map[BookingEvent]transition{
	EventApprove: {
		from: []models.BookingStatus{models.BookingStatusPending},
		to:   models.BookingStatusApproved,
	},
	EventMarkPaid: {
		from: []models.BookingStatus{models.BookingStatusPending, models.BookingStatusApproved},
		to:   models.BookingStatusPaid,
	},
	EventConfirm: {
		from: []models.BookingStatus{models.BookingStatusPaid},
		to:   models.BookingStatusConfirmed,
	},
	EventReject: {
		from: []models.BookingStatus{models.BookingStatusPending, models.BookingStatusApproved},
		to:   models.BookingStatusRejected,
	},
	EventRequestCancellation: {
		from: []models.BookingStatus{
			models.BookingStatusPending, models.BookingStatusApproved,
			models.BookingStatusPaid, models.BookingStatusConfirmed,
		},
		to: models.BookingStatusCancellationRequested,
	},
	EventApproveCancellation: {
		from: []models.BookingStatus{models.BookingStatusCancellationRequested},
		to:   models.BookingStatusCancelled,
	},
	EventRejectCancellation: {
		from: []models.BookingStatus{models.BookingStatusCancellationRequested},
		to:   models.BookingStatusApproved,
	},
	// APPROVED covers a paid booking whose cancellation was turned down
	EventComplete: {
		from: []models.BookingStatus{models.BookingStatusApproved, models.BookingStatusPaid, models.BookingStatusConfirmed},
		to:   models.BookingStatusCompleted,
	},
}

// NextStatus returns the status event leads to from current, or a ConflictError
func NextStatus(current models.BookingStatus, event BookingEvent) (models.BookingStatus, error) {
	t, ok := transitions[event]
	if !ok {
		return "", models.NewConflictError("unknown booking event %q", event)
	}
	for _, from := range t.from {
		if from == current {
			return t.to, nil
		}
	}
	return "", models.NewConflictError("cannot %s a booking in status %s", event, current)
}

// BookingStateMachine persists transitions with a status+version compare-and-swap
// It never calls the gateway or touches inventory
type BookingStateMachine struct {
	bookings BookingStore
	logger   *logrus.Logger
}

// NewBookingStateMachine creates a new BookingStateMachine
func NewBookingStateMachine(bookings BookingStore, logger *logrus.Logger) *BookingStateMachine {
	return &BookingStateMachine{
		bookings: bookings,
		logger:   logger,
	}
}

// Fire moves booking to the status event leads to, applying mutate to the copy being written
// The input booking is left untouched; the persisted copy is returned
func (m *BookingStateMachine) Fire(ctx context.Context, booking *models.Booking, event BookingEvent, mutate func(*models.Booking)) (*models.Booking, error) {
	next, err := NextStatus(booking.Status, event)
	if err != nil {
		return nil, err
	}

	updated := booking.Clone()
	updated.Status = next
	if mutate != nil {
		mutate(updated)
	}

	if err := m.swap(ctx, booking, updated); err != nil {
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"event":      event,
		"from":       booking.Status,
		"to":         next,
	}).Info("Booking transitioned")

	return updated, nil
}

// Amend persists sub-record changes without changing status, under the same guard
func (m *BookingStateMachine) Amend(ctx context.Context, booking *models.Booking, mutate func(*models.Booking)) (*models.Booking, error) {
	updated := booking.Clone()
	mutate(updated)
	updated.Status = booking.Status

	if err := m.swap(ctx, booking, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (m *BookingStateMachine) swap(ctx context.Context, current, updated *models.Booking) error {
	ok, err := m.bookings.CompareAndSwap(ctx, updated, current.Status, current.Version)
	if err != nil {
		return fmt.Errorf("failed to persist booking: %w", err)
	}
	if !ok {
		m.logger.WithFields(logrus.Fields{
			"booking_id": current.ID,
			"status":     current.Status,
			"version":    current.Version,
		}).Warn("Booking changed concurrently, update rejected")
		return models.NewConflictError("booking %s was modified concurrently", current.ID)
	}
	updated.Version = current.Version + 1
	return nil
}
