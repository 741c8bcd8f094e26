package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// BookingHandler handles reservation and operator review endpoints
type BookingHandler struct {
	purchases PurchaseFlow
	review    BookingReview
	logger    *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(purchases PurchaseFlow, review BookingReview, logger *logrus.Logger) *BookingHandler {
	RegisterValidators()
	return &BookingHandler{
		purchases: purchases,
		review:    review,
		logger:    logger,
	}
}

// ============================================================================
// RESERVE - POST /api/v1/bookings/reserve
// ============================================================================

// Reserve holds seats on a trip and opens a PENDING booking
// A repeated idempotency key returns the original booking with 200
// @Summary Reserve seats
// @Tags Bookings
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body models.ReserveBookingRequest true "Reservation"
// @Success 201 {object} map[string]interface{} "booking"
// @Success 200 {object} map[string]interface{} "replayed booking"
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 409 {object} map[string]interface{} "Insufficient inventory or idempotency conflict"
// @Router /bookings/reserve [post]
func (h *BookingHandler) Reserve(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.ReserveBookingRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	if key := c.GetHeader("Idempotency-Key"); req.IdempotencyKey == "" && key != "" {
		req.IdempotencyKey = key
	}

	booking, replayed, err := h.purchases.ReserveBooking(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"booking":  booking,
		"replayed": replayed,
	})
}

// ============================================================================
// GET BOOKING - GET /api/v1/bookings/:id
// ============================================================================

// GetBooking returns a booking to its owner or to an operator
// @Summary Get booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} map[string]interface{} "booking"
// @Failure 403 {object} map[string]interface{} "Not the owner"
// @Failure 404 {object} map[string]interface{} "Booking not found"
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}
	bookingID, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}

	booking, err := h.review.GetBooking(c.Request.Context(), userCtx.UserID, bookingID, userCtx.IsOperator())
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// ============================================================================
// OPERATOR REVIEW - POST /api/v1/admin/bookings/:id/{approve,reject,confirm}
// ============================================================================

// ApproveBooking moves a PENDING booking to APPROVED
func (h *BookingHandler) ApproveBooking(c *gin.Context) {
	h.operatorAction(c, func(bookingID, operatorID uuid.UUID) (*models.Booking, error) {
		return h.review.ApproveBooking(c.Request.Context(), bookingID, operatorID)
	})
}

// RejectBooking rejects an unpaid booking and releases its seats
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	h.operatorAction(c, func(bookingID, operatorID uuid.UUID) (*models.Booking, error) {
		var req models.RejectBookingRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				return nil, bindingError(err)
			}
		}
		return h.review.RejectBooking(c.Request.Context(), bookingID, operatorID, req.Reason)
	})
}

// ConfirmBooking moves a PAID booking to CONFIRMED
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	h.operatorAction(c, func(bookingID, operatorID uuid.UUID) (*models.Booking, error) {
		return h.review.ConfirmBooking(c.Request.Context(), bookingID, operatorID)
	})
}

// operatorAction resolves the operator and path booking id, runs action and
// writes the resulting booking
func (h *BookingHandler) operatorAction(c *gin.Context, action func(bookingID, operatorID uuid.UUID) (*models.Booking, error)) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}
	bookingID, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}

	booking, err := action(bookingID, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  booking.Status,
		"booking": booking,
	})
}

// ============================================================================
// AUDIT TRAIL - GET /api/v1/admin/bookings/:id/audit
// ============================================================================

// AuditTrail lists the payment audit entries of a booking, oldest first
func (h *BookingHandler) AuditTrail(c *gin.Context) {
	bookingID, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}

	entries, err := h.review.AuditTrail(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}
	if entries == nil {
		entries = []*models.PaymentAudit{}
	}

	c.JSON(http.StatusOK, gin.H{
		"booking_id": bookingID,
		"entries":    entries,
		"count":      len(entries),
	})
}
