package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samsara/booking-engine/internal/middleware"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// requireUser returns the authenticated caller or writes a 401
func requireUser(c *gin.Context) (middleware.UserContext, bool) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "user not authenticated",
			"code":    "MISSING_USER_CONTEXT",
		})
		return middleware.UserContext{}, false
	}
	return userCtx, true
}

// uuidParam parses the named path parameter or writes a validation error
func uuidParam(c *gin.Context, logger *logrus.Logger, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, logger, models.NewValidationError("%s must be a valid UUID", name), nil)
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds the request body into req or writes a validation error
func bindJSON(c *gin.Context, logger *logrus.Logger, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, logger, bindingError(err), nil)
		return false
	}
	return true
}
