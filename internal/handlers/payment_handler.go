package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// PaymentHandler handles gateway order creation and payment verification
type PaymentHandler struct {
	purchases PurchaseFlow
	logger    *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(purchases PurchaseFlow, logger *logrus.Logger) *PaymentHandler {
	RegisterValidators()
	return &PaymentHandler{
		purchases: purchases,
		logger:    logger,
	}
}

// ============================================================================
// CREATE ORDER - POST /api/v1/payments/order
// ============================================================================

// CreateOrder opens a gateway order for a PENDING or APPROVED booking
// @Summary Create payment order
// @Tags Payments
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body models.CreatePaymentOrderRequest true "Order"
// @Success 200 {object} models.PaymentOrderResponse
// @Failure 400 {object} map[string]interface{} "Amount or currency mismatch"
// @Failure 409 {object} map[string]interface{} "Booking not payable"
// @Failure 502 {object} map[string]interface{} "Gateway failure"
// @Router /payments/order [post]
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.CreatePaymentOrderRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	order, err := h.purchases.CreatePaymentOrder(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	c.JSON(http.StatusOK, order)
}

// ============================================================================
// VERIFY - POST /api/v1/payments/verify
// ============================================================================

// Verify checks the gateway signature and marks the booking PAID
// A bad signature answers 400 with the status the booking was left in, REJECTED unless it was already paid
// @Summary Verify payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body models.VerifyPaymentRequest true "Gateway confirmation"
// @Success 200 {object} models.VerifyPaymentResponse
// @Failure 400 {object} map[string]interface{} "Signature mismatch"
// @Failure 409 {object} map[string]interface{} "Booking not payable"
// @Router /payments/verify [post]
func (h *PaymentHandler) Verify(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.VerifyPaymentRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	result, err := h.purchases.VerifyPayment(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		var extra gin.H
		if status := models.BookingStatusOf(err); status != "" && models.IsKind(err, models.KindSignatureMismatch) {
			extra = gin.H{"status": status}
		}
		respondError(c, h.logger, err, extra)
		return
	}

	c.JSON(http.StatusOK, result)
}
