package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// statusForKind maps an error kind to its HTTP status
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation, models.KindSignatureMismatch:
		return http.StatusBadRequest
	case models.KindInsufficientInventory, models.KindConflict:
		return http.StatusConflict
	case models.KindGateway:
		return http.StatusBadGateway
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// errorBody builds the {"error": {kind, message, retryable}} envelope
func errorBody(err error) gin.H {
	var engineErr *models.EngineError
	if errors.As(err, &engineErr) {
		return gin.H{"error": gin.H{
			"kind":      engineErr.Kind,
			"message":   engineErr.Message,
			"retryable": engineErr.Retryable,
		}}
	}
	return gin.H{"error": gin.H{
		"kind":      models.KindInternal,
		"message":   "internal server error",
		"retryable": false,
	}}
}

// respondError writes err with its mapped status, merging extra into the body
// Unclassified errors are logged and reported as 500 without leaking details
func respondError(c *gin.Context, logger *logrus.Logger, err error, extra gin.H) {
	kind := models.KindOf(err)
	status := statusForKind(kind)

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"path": c.Request.URL.Path,
		"kind": kind,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	body := errorBody(err)
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

// bindingError converts a gin binding failure into a ValidationError
func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, describeFieldError(fe))
		}
		return models.NewValidationError("%s", strings.Join(parts, "; "))
	}
	return models.NewValidationError("invalid request body: %v", err)
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "money":
		return fmt.Sprintf("%s must be a non-negative amount with at most 2 decimals", field)
	case "iso4217":
		return fmt.Sprintf("%s must be an ISO 4217 currency code", field)
	case "gt", "gte", "lt", "lte", "max", "min":
		return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
