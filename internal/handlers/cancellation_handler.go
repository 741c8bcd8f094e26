package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// CancellationHandler handles the cancellation workflow and the refund queue
type CancellationHandler struct {
	cancellations CancellationWorkflow
	logger        *logrus.Logger
}

// NewCancellationHandler creates a new CancellationHandler
func NewCancellationHandler(cancellations CancellationWorkflow, logger *logrus.Logger) *CancellationHandler {
	RegisterValidators()
	return &CancellationHandler{
		cancellations: cancellations,
		logger:        logger,
	}
}

// ============================================================================
// REQUEST - POST /api/v1/cancellations/request
// ============================================================================

// Request asks for a cancellation and freezes the refund quote
// @Summary Request cancellation
// @Tags Cancellations
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body models.RequestCancellationRequest true "Cancellation"
// @Success 200 {object} models.CancellationQuoteResponse
// @Failure 409 {object} map[string]interface{} "Booking cannot be cancelled"
// @Router /cancellations/request [post]
func (h *CancellationHandler) Request(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.RequestCancellationRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	quote, err := h.cancellations.RequestCancellation(c.Request.Context(), userCtx.UserID, req.BookingID, req.Reason)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// ============================================================================
// APPROVE - POST /api/v1/admin/cancellations/approve
// ============================================================================

// Approve cancels the booking, refunds the frozen quote and releases seats
// A cancellation whose refund or release failed answers 207
// @Summary Approve cancellation
// @Tags Cancellations
// @Accept json
// @Produce json
// @Param request body models.ApproveCancellationRequest true "Cancellation"
// @Success 200 {object} models.CancellationResult
// @Success 207 {object} models.CancellationResult "Cancelled with a failed refund or release"
// @Failure 409 {object} map[string]interface{} "No pending cancellation"
// @Router /admin/cancellations/approve [post]
func (h *CancellationHandler) Approve(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.ApproveCancellationRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	result, err := h.cancellations.ApproveCancellation(c.Request.Context(), req.BookingID, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	c.JSON(resultStatus(result), result)
}

// ============================================================================
// REJECT - POST /api/v1/admin/cancellations/reject
// ============================================================================

// Reject declines a cancellation request and keeps the booking APPROVED
func (h *CancellationHandler) Reject(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.RejectCancellationRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	booking, err := h.cancellations.RejectCancellation(c.Request.Context(), req.BookingID, userCtx.UserID, req.RejectionReason)
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
// REFUND QUEUE - /api/v1/admin/refunds
// ============================================================================

// ListRefunds lists cancelled bookings by refund status, FAILED by default
func (h *CancellationHandler) ListRefunds(c *gin.Context) {
	status := models.RefundStatus(strings.ToUpper(c.DefaultQuery("status", string(models.RefundStatusFailed))))

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(c, h.logger, models.NewValidationError("limit must be a non-negative integer"), nil)
			return
		}
		limit = parsed
	}

	bookings, err := h.cancellations.ListRefunds(c.Request.Context(), status, limit)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"bookings": bookings,
		"count":    len(bookings),
	})
}

// RetryRefund retries a FAILED or stale PENDING refund on a cancelled booking
func (h *CancellationHandler) RetryRefund(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}
	bookingID, ok := uuidParam(c, h.logger, "booking_id")
	if !ok {
		return
	}

	result, err := h.cancellations.RetryRefund(c.Request.Context(), bookingID, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	c.JSON(resultStatus(result), result)
}

func resultStatus(result *models.CancellationResult) int {
	if result.Degraded {
		return http.StatusMultiStatus
	}
	return http.StatusOK
}
