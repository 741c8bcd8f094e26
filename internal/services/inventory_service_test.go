package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInventory(t *testing.T, capacity int) (*InventoryService, *fakeTripStore, uuid.UUID) {
	t.Helper()
	store := newFakeTripStore()
	svc := NewInventoryService(store, quietLogger())
	trip, err := svc.CreateTrip(context.Background(), &models.CreateTripRequest{
		Title:         "Hill Country",
		TotalCapacity: capacity,
		StartDate:     time.Now().Add(72 * time.Hour),
	})
	require.NoError(t, err)
	return svc, store, trip.ID
}

func TestCreateTrip_AllSeatsAvailable(t *testing.T) {
	svc, _, tripID := newInventory(t, 12)

	trip, err := svc.Availability(context.Background(), tripID)
	require.NoError(t, err)
	assert.Equal(t, 12, trip.TotalCapacity)
	assert.Equal(t, 12, trip.AvailableCapacity)
}

func TestCreateTrip_Validation(t *testing.T) {
	svc := NewInventoryService(newFakeTripStore(), quietLogger())

	_, err := svc.CreateTrip(context.Background(), &models.CreateTripRequest{Title: "x", TotalCapacity: 0, StartDate: time.Now()})
	assert.True(t, models.IsKind(err, models.KindValidation))

	_, err = svc.CreateTrip(context.Background(), &models.CreateTripRequest{Title: "x", TotalCapacity: 5})
	assert.True(t, models.IsKind(err, models.KindValidation))
}

func TestReserve(t *testing.T) {
	svc, store, tripID := newInventory(t, 10)

	require.NoError(t, svc.Reserve(context.Background(), tripID, 4))
	assert.Equal(t, 6, store.available(tripID))
}

func TestReserve_Insufficient(t *testing.T) {
	svc, store, tripID := newInventory(t, 3)

	err := svc.Reserve(context.Background(), tripID, 4)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindInsufficientInventory))
	assert.Equal(t, 3, store.available(tripID))
}

func TestReserve_ExactlyAllSeats(t *testing.T) {
	svc, store, tripID := newInventory(t, 5)

	require.NoError(t, svc.Reserve(context.Background(), tripID, 5))
	assert.Equal(t, 0, store.available(tripID))

	err := svc.Reserve(context.Background(), tripID, 1)
	assert.True(t, models.IsKind(err, models.KindInsufficientInventory))
}

func TestReserve_NonPositiveCount(t *testing.T) {
	svc, _, tripID := newInventory(t, 5)

	for _, count := range []int{0, -2} {
		err := svc.Reserve(context.Background(), tripID, count)
		assert.True(t, models.IsKind(err, models.KindValidation))
	}
}

func TestReserve_UnknownTrip(t *testing.T) {
	svc, _, _ := newInventory(t, 5)

	err := svc.Reserve(context.Background(), uuid.New(), 1)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestReserve_ConcurrentOnlyOneWins(t *testing.T) {
	svc, store, tripID := newInventory(t, 5)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Reserve(context.Background(), tripID, 3)
		}(i)
	}
	wg.Wait()

	wins, losses := 0, 0
	for _, err := range results {
		if err == nil {
			wins++
		} else if models.IsKind(err, models.KindInsufficientInventory) {
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
	assert.Equal(t, 2, store.available(tripID))
}

func TestReserve_ManyConcurrentNeverOversell(t *testing.T) {
	svc, store, tripID := newInventory(t, 20)

	var wg sync.WaitGroup
	var mu sync.Mutex
	reserved := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.Reserve(context.Background(), tripID, 1) == nil {
				mu.Lock()
				reserved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, reserved)
	assert.Equal(t, 0, store.available(tripID))
}

func TestRelease(t *testing.T) {
	svc, store, tripID := newInventory(t, 10)
	ctx := context.Background()

	require.NoError(t, svc.Reserve(ctx, tripID, 4))
	require.NoError(t, svc.Release(ctx, tripID, 4))
	assert.Equal(t, 10, store.available(tripID))

	err := svc.Release(ctx, uuid.New(), 1)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}
