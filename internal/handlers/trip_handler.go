package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// TripHandler handles trip publication and availability endpoints
type TripHandler struct {
	inventory TripInventory
	logger    *logrus.Logger
}

// NewTripHandler creates a new TripHandler
func NewTripHandler(inventory TripInventory, logger *logrus.Logger) *TripHandler {
	RegisterValidators()
	return &TripHandler{
		inventory: inventory,
		logger:    logger,
	}
}

// ============================================================================
// CREATE TRIP - POST /api/v1/admin/trips
// ============================================================================

// CreateTrip publishes a trip with its full capacity available
// @Summary Create trip
// @Tags Trips
// @Accept json
// @Produce json
// @Param request body models.CreateTripRequest true "Trip"
// @Success 201 {object} models.TripAvailabilityResponse
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Router /admin/trips [post]
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req models.CreateTripRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	trip, err := h.inventory.CreateTrip(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	c.JSON(http.StatusCreated, models.NewTripAvailabilityResponse(trip))
}

// ============================================================================
// GET TRIP - GET /api/v1/trips/:id
// ============================================================================

// GetTrip returns the current seat availability of a trip
// @Summary Trip availability
// @Tags Trips
// @Produce json
// @Param id path string true "Trip ID"
// @Success 200 {object} models.TripAvailabilityResponse
// @Failure 404 {object} map[string]interface{} "Trip not found"
// @Router /trips/{id} [get]
func (h *TripHandler) GetTrip(c *gin.Context) {
	tripID, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}

	trip, err := h.inventory.Availability(c.Request.Context(), tripID)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	c.JSON(http.StatusOK, models.NewTripAvailabilityResponse(trip))
}
