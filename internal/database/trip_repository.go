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

// TripRepository handles trip database operations
type TripRepository struct {
	db *sqlx.DB
}

// NewTripRepository creates a new TripRepository
func NewTripRepository(db *sqlx.DB) *TripRepository {
	return &TripRepository{db: db}
}

// CreateTrip inserts a trip with all seats available
func (r *TripRepository) CreateTrip(ctx context.Context, trip *models.Trip) error {
	if trip.ID == uuid.Nil {
		trip.ID = uuid.New()
	}
	now := time.Now()
	trip.AvailableCapacity = trip.TotalCapacity
	trip.CreatedAt = now
	trip.UpdatedAt = now

	query := `
		INSERT INTO trips (
			id, title, total_capacity, available_capacity, start_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		trip.ID, trip.Title, trip.TotalCapacity, trip.AvailableCapacity,
		trip.StartDate, trip.CreatedAt, trip.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	return nil
}

// GetTripByID retrieves a trip, returning nil if it does not exist
func (r *TripRepository) GetTripByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	var trip models.Trip
	query := `
		SELECT id, title, total_capacity, available_capacity, start_date, created_at, updated_at
		FROM trips
		WHERE id = $1`

	err := r.db.GetContext(ctx, &trip, query, tripID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return &trip, nil
}

// ============================================================================
// CAPACITY (single-statement conditional updates)
// ============================================================================

// DecrementAvailable takes count seats only if that many are still available
// Returns false when the guard did not match (not enough seats or no such trip)
func (r *TripRepository) DecrementAvailable(ctx context.Context, tripID uuid.UUID, count int) (bool, error) {
	query := `
		UPDATE trips
		SET available_capacity = available_capacity - $2, updated_at = NOW()
		WHERE id = $1 AND available_capacity >= $2`

	result, err := r.db.ExecContext(ctx, query, tripID, count)
	if err != nil {
		return false, fmt.Errorf("failed to decrement available capacity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// IncrementAvailable gives count seats back to the trip
// The table CHECK constraint rejects a release above total_capacity
func (r *TripRepository) IncrementAvailable(ctx context.Context, tripID uuid.UUID, count int) (bool, error) {
	query := `
		UPDATE trips
		SET available_capacity = available_capacity + $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, tripID, count)
	if err != nil {
		return false, fmt.Errorf("failed to increment available capacity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}
