package models

import (
	"time"

	"github.com/google/uuid"
)

// Trip is a departure with a finite number of seats
// available_capacity is only ever changed by conditional updates
type Trip struct {
	ID                uuid.UUID `json:"id" db:"id"`
	Title             string    `json:"title" db:"title"`
	TotalCapacity     int       `json:"total_capacity" db:"total_capacity"`
	AvailableCapacity int       `json:"available_capacity" db:"available_capacity"`
	StartDate         time.Time `json:"start_date" db:"start_date"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// HasDeparted reports whether the trip start is at or before now
func (t *Trip) HasDeparted(now time.Time) bool {
	return !t.StartDate.IsZero() && !t.StartDate.After(now)
}

// CreateTripRequest is used by operators to publish a trip
type CreateTripRequest struct {
	Title         string    `json:"title" binding:"required,max=200"`
	TotalCapacity int       `json:"total_capacity" binding:"required,gt=0,lte=10000"`
	StartDate     time.Time `json:"start_date" binding:"required"`
}

// TripAvailabilityResponse is returned by the availability endpoint
type TripAvailabilityResponse struct {
	TripID            uuid.UUID `json:"trip_id"`
	Title             string    `json:"title"`
	TotalCapacity     int       `json:"total_capacity"`
	AvailableCapacity int       `json:"available_capacity"`
	StartDate         time.Time `json:"start_date"`
	SoldOut           bool      `json:"sold_out"`
}

// NewTripAvailabilityResponse builds the availability view of a trip
func NewTripAvailabilityResponse(trip *Trip) TripAvailabilityResponse {
	return TripAvailabilityResponse{
		TripID:            trip.ID,
		Title:             trip.Title,
		TotalCapacity:     trip.TotalCapacity,
		AvailableCapacity: trip.AvailableCapacity,
		StartDate:         trip.StartDate,
		SoldOut:           trip.AvailableCapacity == 0,
	}
}
