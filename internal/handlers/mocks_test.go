package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samsara/booking-engine/internal/middleware"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/samsara/booking-engine/pkg/jwt"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestRouter returns a router that authenticates every request as user
func newTestRouter(user *middleware.UserContext) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if user != nil {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.UserContextKey, *user)
			c.Next()
		})
	}
	return router
}

func traveler() *middleware.UserContext {
	return &middleware.UserContext{UserID: uuid.New(), Roles: []string{jwt.RoleTraveler}}
}

func operator() *middleware.UserContext {
	return &middleware.UserContext{UserID: uuid.New(), Roles: []string{jwt.RoleOperator}}
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func errorField(t *testing.T, body map[string]interface{}, field string) interface{} {
	t.Helper()
	inner, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "missing error envelope in %v", body)
	return inner[field]
}

// ============================================================================
// MOCKS
// ============================================================================

type mockInventory struct{ mock.Mock }

func (m *mockInventory) CreateTrip(ctx context.Context, req *models.CreateTripRequest) (*models.Trip, error) {
	args := m.Called(ctx, req)
	trip, _ := args.Get(0).(*models.Trip)
	return trip, args.Error(1)
}

func (m *mockInventory) Availability(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	args := m.Called(ctx, tripID)
	trip, _ := args.Get(0).(*models.Trip)
	return trip, args.Error(1)
}

type mockPurchases struct{ mock.Mock }

func (m *mockPurchases) ReserveBooking(ctx context.Context, userID uuid.UUID, req *models.ReserveBookingRequest) (*models.Booking, bool, error) {
	args := m.Called(ctx, userID, req)
	booking, _ := args.Get(0).(*models.Booking)
	return booking, args.Bool(1), args.Error(2)
}

func (m *mockPurchases) CreatePaymentOrder(ctx context.Context, userID uuid.UUID, req *models.CreatePaymentOrderRequest) (*models.PaymentOrderResponse, error) {
	args := m.Called(ctx, userID, req)
	order, _ := args.Get(0).(*models.PaymentOrderResponse)
	return order, args.Error(1)
}

func (m *mockPurchases) VerifyPayment(ctx context.Context, userID uuid.UUID, req *models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error) {
	args := m.Called(ctx, userID, req)
	resp, _ := args.Get(0).(*models.VerifyPaymentResponse)
	return resp, args.Error(1)
}

type mockReview struct{ mock.Mock }

func (m *mockReview) GetBooking(ctx context.Context, requesterID, bookingID uuid.UUID, isOperator bool) (*models.Booking, error) {
	args := m.Called(ctx, requesterID, bookingID, isOperator)
	booking, _ := args.Get(0).(*models.Booking)
	return booking, args.Error(1)
}

func (m *mockReview) ApproveBooking(ctx context.Context, bookingID, operatorID uuid.UUID) (*models.Booking, error) {
	args := m.Called(ctx, bookingID, operatorID)
	booking, _ := args.Get(0).(*models.Booking)
	return booking, args.Error(1)
}

func (m *mockReview) RejectBooking(ctx context.Context, bookingID, operatorID uuid.UUID, reason string) (*models.Booking, error) {
	args := m.Called(ctx, bookingID, operatorID, reason)
	booking, _ := args.Get(0).(*models.Booking)
	return booking, args.Error(1)
}

func (m *mockReview) ConfirmBooking(ctx context.Context, bookingID, operatorID uuid.UUID) (*models.Booking, error) {
	args := m.Called(ctx, bookingID, operatorID)
	booking, _ := args.Get(0).(*models.Booking)
	return booking, args.Error(1)
}

func (m *mockReview) AuditTrail(ctx context.Context, bookingID uuid.UUID) ([]*models.PaymentAudit, error) {
	args := m.Called(ctx, bookingID)
	entries, _ := args.Get(0).([]*models.PaymentAudit)
	return entries, args.Error(1)
}

type mockCancellations struct{ mock.Mock }

func (m *mockCancellations) RequestCancellation(ctx context.Context, userID, bookingID uuid.UUID, reason string) (*models.CancellationQuoteResponse, error) {
	args := m.Called(ctx, userID, bookingID, reason)
	resp, _ := args.Get(0).(*models.CancellationQuoteResponse)
	return resp, args.Error(1)
}

func (m *mockCancellations) ApproveCancellation(ctx context.Context, bookingID, operatorID uuid.UUID) (*models.CancellationResult, error) {
	args := m.Called(ctx, bookingID, operatorID)
	result, _ := args.Get(0).(*models.CancellationResult)
	return result, args.Error(1)
}

func (m *mockCancellations) RejectCancellation(ctx context.Context, bookingID, operatorID uuid.UUID, reason string) (*models.Booking, error) {
	args := m.Called(ctx, bookingID, operatorID, reason)
	booking, _ := args.Get(0).(*models.Booking)
	return booking, args.Error(1)
}

func (m *mockCancellations) RetryRefund(ctx context.Context, bookingID, operatorID uuid.UUID) (*models.CancellationResult, error) {
	args := m.Called(ctx, bookingID, operatorID)
	result, _ := args.Get(0).(*models.CancellationResult)
	return result, args.Error(1)
}

func (m *mockCancellations) ListRefunds(ctx context.Context, status models.RefundStatus, limit int) ([]*models.Booking, error) {
	args := m.Called(ctx, status, limit)
	bookings, _ := args.Get(0).([]*models.Booking)
	return bookings, args.Error(1)
}

type mockJobs struct{ mock.Mock }

func (m *mockJobs) RunCompletionNow(ctx context.Context) int {
	return m.Called(ctx).Int(0)
}

func (m *mockJobs) GetJobStatus() map[string]interface{} {
	status, _ := m.Called().Get(0).(map[string]interface{})
	return status
}

func (m *mockJobs) RunOnce(ctx context.Context) int {
	return m.Called(ctx).Int(0)
}
