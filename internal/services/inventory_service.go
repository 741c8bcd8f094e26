package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// InventoryService reserves and releases trip seats
// Capacity is guarded only by the store's conditional update, never by an in-process lock
type InventoryService struct {
	trips  TripStore
	logger *logrus.Logger
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(trips TripStore, logger *logrus.Logger) *InventoryService {
	return &InventoryService{
		trips:  trips,
		logger: logger,
	}
}

// CreateTrip publishes a trip with every seat available
func (s *InventoryService) CreateTrip(ctx context.Context, req *models.CreateTripRequest) (*models.Trip, error) {
	if req.TotalCapacity <= 0 {
		return nil, models.NewValidationError("total_capacity must be positive")
	}
	if req.StartDate.IsZero() {
		return nil, models.NewValidationError("start_date is required")
	}

	trip := &models.Trip{
		Title:         req.Title,
		TotalCapacity: req.TotalCapacity,
		StartDate:     req.StartDate,
	}
	if err := s.trips.CreateTrip(ctx, trip); err != nil {
		return nil, fmt.Errorf("failed to create trip: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":  trip.ID,
		"capacity": trip.TotalCapacity,
	}).Info("Trip created")

	return trip, nil
}

// Availability returns a fresh read of the trip
func (s *InventoryService) Availability(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	trip, err := s.trips.GetTripByID(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	if trip == nil {
		return nil, models.NewNotFoundError("trip", tripID)
	}
	return trip, nil
}

// Reserve takes count seats in one conditional update
// Of two concurrent reservations that together exceed capacity, exactly one wins
func (s *InventoryService) Reserve(ctx context.Context, tripID uuid.UUID, count int) error {
	if count <= 0 {
		return models.NewValidationError("seat count must be positive, got %d", count)
	}

	ok, err := s.trips.DecrementAvailable(ctx, tripID, count)
	if err != nil {
		return fmt.Errorf("failed to reserve seats: %w", err)
	}
	if ok {
		s.logger.WithFields(logrus.Fields{
			"trip_id": tripID,
			"count":   count,
		}).Debug("Seats reserved")
		return nil
	}

	// Guard failed: tell a missing trip apart from a full one
	trip, err := s.trips.GetTripByID(ctx, tripID)
	if err != nil {
		return fmt.Errorf("failed to get trip: %w", err)
	}
	if trip == nil {
		return models.NewNotFoundError("trip", tripID)
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":   tripID,
		"requested": count,
		"available": trip.AvailableCapacity,
	}).Info("Reservation rejected: insufficient inventory")

	return models.NewInsufficientInventoryError(count, trip.AvailableCapacity)
}

// Release gives count seats back
// Callers release only what they reserved; the store's CHECK constraint is the only backstop
func (s *InventoryService) Release(ctx context.Context, tripID uuid.UUID, count int) error {
	if count <= 0 {
		return models.NewValidationError("seat count must be positive, got %d", count)
	}

	ok, err := s.trips.IncrementAvailable(ctx, tripID, count)
	if err != nil {
		return fmt.Errorf("failed to release seats: %w", err)
	}
	if !ok {
		return models.NewNotFoundError("trip", tripID)
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id": tripID,
		"count":   count,
	}).Debug("Seats released")
	return nil
}
