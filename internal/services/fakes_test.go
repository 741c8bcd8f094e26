package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/samsara/booking-engine/internal/cache"
	"github.com/samsara/booking-engine/internal/gateway"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const testSigningSecret = "test_signing_secret"

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// ============================================================================
// FAKE STORES
// ============================================================================

// fakeTripStore applies the conditional capacity update under a mutex, like a row lock
type fakeTripStore struct {
	mu    sync.Mutex
	trips map[uuid.UUID]*models.Trip
}

func newFakeTripStore() *fakeTripStore {
	return &fakeTripStore{trips: make(map[uuid.UUID]*models.Trip)}
}

func (s *fakeTripStore) CreateTrip(ctx context.Context, trip *models.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if trip.ID == uuid.Nil {
		trip.ID = uuid.New()
	}
	trip.AvailableCapacity = trip.TotalCapacity
	c := *trip
	s.trips[trip.ID] = &c
	return nil
}

func (s *fakeTripStore) GetTripByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trip, ok := s.trips[tripID]
	if !ok {
		return nil, nil
	}
	c := *trip
	return &c, nil
}

func (s *fakeTripStore) DecrementAvailable(ctx context.Context, tripID uuid.UUID, count int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trip, ok := s.trips[tripID]
	if !ok || trip.AvailableCapacity < count {
		return false, nil
	}
	trip.AvailableCapacity -= count
	return true, nil
}

func (s *fakeTripStore) IncrementAvailable(ctx context.Context, tripID uuid.UUID, count int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trip, ok := s.trips[tripID]
	if !ok {
		return false, nil
	}
	trip.AvailableCapacity += count
	return true, nil
}

func (s *fakeTripStore) available(tripID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trips[tripID].AvailableCapacity
}

// fakeBookingStore keeps copies so callers cannot mutate stored rows
type fakeBookingStore struct {
	mu       sync.Mutex
	trips    *fakeTripStore
	bookings map[uuid.UUID]*models.Booking
	swaps    int
	attempts int
	failAt   int
}

func newFakeBookingStore(trips *fakeTripStore) *fakeBookingStore {
	return &fakeBookingStore{trips: trips, bookings: make(map[uuid.UUID]*models.Booking)}
}

func (s *fakeBookingStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if booking.IdempotencyKey != nil {
		for _, b := range s.bookings {
			if b.UserID == booking.UserID && b.IdempotencyKey != nil && *b.IdempotencyKey == *booking.IdempotencyKey {
				return &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}
			}
		}
	}
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	booking.Version = 1
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt
	s.bookings[booking.ID] = booking.Clone()
	return nil
}

func (s *fakeBookingStore) GetBookingByID(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, nil
	}
	return b.Clone(), nil
}

func (s *fakeBookingStore) GetBookingByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.UserID == userID && b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			return b.Clone(), nil
		}
	}
	return nil, nil
}

func (s *fakeBookingStore) CompareAndSwap(ctx context.Context, booking *models.Booking, expectedStatus models.BookingStatus, expectedVersion int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failAt == s.attempts {
		return false, errors.New("connection reset by peer")
	}
	current, ok := s.bookings[booking.ID]
	if !ok || current.Status != expectedStatus || current.Version != expectedVersion {
		return false, nil
	}
	next := booking.Clone()
	next.Version = expectedVersion + 1
	next.UpdatedAt = time.Now()
	s.bookings[booking.ID] = next
	s.swaps++
	return true, nil
}

func (s *fakeBookingStore) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Booking
	for _, b := range s.bookings {
		if (b.Status == models.BookingStatusPending || b.Status == models.BookingStatusApproved) &&
			b.HoldExpiresAt != nil && !b.HoldExpiresAt.After(now) && len(out) < limit {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (s *fakeBookingStore) ListByRefundStatus(ctx context.Context, status models.RefundStatus, limit int) ([]*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Booking
	for _, b := range s.bookings {
		if b.Status == models.BookingStatusCancelled && b.RefundOutcome() != nil && b.RefundOutcome().Status == status && len(out) < limit {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (s *fakeBookingStore) ListCompletable(ctx context.Context, startedBefore time.Time, limit int) ([]*models.Booking, error) {
	var candidates []*models.Booking
	s.mu.Lock()
	for _, b := range s.bookings {
		paid := b.Status == models.BookingStatusPaid || b.Status == models.BookingStatusConfirmed
		if paid || (b.Status == models.BookingStatusApproved && b.Payment.IsVerified()) {
			candidates = append(candidates, b.Clone())
		}
	}
	s.mu.Unlock()

	var out []*models.Booking
	for _, b := range candidates {
		trip, _ := s.trips.GetTripByID(ctx, b.TripID)
		if trip != nil && !trip.StartDate.After(startedBefore) && len(out) < limit {
			out = append(out, b)
		}
	}
	return out, nil
}

// failSwap makes the nth compare-and-swap from now return an error
func (s *fakeBookingStore) failSwap(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt = s.attempts + n
}

func (s *fakeBookingStore) get(id uuid.UUID) *models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id].Clone()
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []*models.PaymentAudit
	err     error
}

func (l *fakeLedger) Log(ctx context.Context, audit *models.PaymentAudit) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, audit)
	return nil
}

func (l *fakeLedger) GetByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*models.PaymentAudit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.PaymentAudit
	for _, e := range l.entries {
		if e.BookingID != nil && *e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *fakeLedger) count(eventType models.PaymentEventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.BookingNotification
}

func (n *fakeNotifier) Publish(ctx context.Context, notification models.BookingNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *fakeNotifier) types() []models.BookingEventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.BookingEventType, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.EventType)
	}
	return out
}

// ============================================================================
// ENGINE HARNESS
// ============================================================================

type testEngine struct {
	trips    *fakeTripStore
	bookings *fakeBookingStore
	ledger   *fakeLedger
	notifier *fakeNotifier
	gateway  *gateway.SandboxGateway

	inventory     *InventoryService
	machine       *BookingStateMachine
	audit         *AuditService
	orders        *OrderService
	bookingSvc    *BookingService
	cancellations *CancellationService

	now time.Time
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	logger := quietLogger()

	e := &testEngine{
		trips:    newFakeTripStore(),
		ledger:   &fakeLedger{},
		notifier: &fakeNotifier{},
		gateway:  gateway.NewSandboxGateway(logger),
		now:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	e.bookings = newFakeBookingStore(e.trips)
	e.inventory = NewInventoryService(e.trips, logger)
	e.machine = NewBookingStateMachine(e.bookings, logger)
	e.audit = NewAuditService(e.ledger, e.notifier, logger)
	e.orders = NewOrderService(e.bookings, e.inventory, e.machine, e.gateway, cache.NewMemoryStore(), e.audit, OrderServiceConfig{
		HoldTTL:        15 * time.Minute,
		IdempotencyTTL: time.Hour,
		SigningSecret:  testSigningSecret,
		GatewayTimeout: 5 * time.Second,
	}, logger)
	e.orders.now = e.clock
	e.bookingSvc = NewBookingService(e.bookings, e.inventory, e.machine, e.audit, e.ledger, logger)
	e.cancellations = NewCancellationService(e.bookings, e.inventory, e.machine, e.gateway, e.audit, 5*time.Second, logger)
	e.cancellations.now = e.clock
	return e
}

func (e *testEngine) clock() time.Time {
	return e.now
}

func (e *testEngine) addTrip(t *testing.T, capacity int, startsIn time.Duration) *models.Trip {
	t.Helper()
	trip, err := e.inventory.CreateTrip(context.Background(), &models.CreateTripRequest{
		Title:         "Coastal Express",
		TotalCapacity: capacity,
		StartDate:     e.now.Add(startsIn),
	})
	require.NoError(t, err)
	return trip
}

func (e *testEngine) reserve(t *testing.T, userID uuid.UUID, tripID uuid.UUID, count int, total float64) *models.Booking {
	t.Helper()
	booking, _, err := e.orders.ReserveBooking(context.Background(), userID, &models.ReserveBookingRequest{
		TripID:     tripID,
		Count:      count,
		GrandTotal: total,
		Currency:   "INR",
	})
	require.NoError(t, err)
	return booking
}

// pay runs order creation and a correctly signed verification
func (e *testEngine) pay(t *testing.T, userID uuid.UUID, booking *models.Booking) *models.Booking {
	t.Helper()
	ctx := context.Background()
	order, err := e.orders.CreatePaymentOrder(ctx, userID, &models.CreatePaymentOrderRequest{
		BookingID: booking.ID,
		Amount:    booking.Payment.GrandTotal,
		Currency:  booking.Payment.Currency,
	})
	require.NoError(t, err)

	paymentID := "pay_" + uuid.NewString()[:8]
	resp, err := e.orders.VerifyPayment(ctx, userID, &models.VerifyPaymentRequest{
		BookingID: booking.ID,
		OrderID:   order.OrderID,
		PaymentID: paymentID,
		Signature: SignPayment(order.OrderID, paymentID, testSigningSecret),
	})
	require.NoError(t, err)
	return resp.Booking
}
