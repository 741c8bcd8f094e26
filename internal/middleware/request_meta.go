package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/samsara/booking-engine/internal/utils"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries the correlation id in and out
const RequestIDHeader = "X-Request-ID"

// RequestMeta attaches client metadata to the request context for audit entries
func RequestMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(RequestIDHeader)
		if correlationID == "" || len(correlationID) > 64 {
			correlationID = uuid.NewString()
		}
		c.Header(RequestIDHeader, correlationID)

		userAgent := utils.GetUserAgent(c)
		meta := models.RequestMeta{
			IP:            utils.GetRealIP(c),
			UserAgent:     userAgent,
			DeviceType:    utils.ParseUserAgent(userAgent).DeviceType,
			CorrelationID: correlationID,
		}
		c.Request = c.Request.WithContext(models.WithRequestMeta(c.Request.Context(), meta))
		c.Next()
	}
}

// RequestLogger logs each request once it completes
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      c.Request.URL.RawQuery,
			"ip":         utils.GetRealIP(c),
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": c.Writer.Header().Get(RequestIDHeader),
			"has_auth":   c.GetHeader("Authorization") != "",
		}
		if userCtx, ok := GetUserContext(c); ok {
			fields["user_id"] = userCtx.UserID
		}

		entry := logger.WithFields(fields)
		for i, err := range c.Errors {
			entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
		}

		status := c.Writer.Status()
		switch {
		case status >= 500 || len(c.Errors) > 0:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed")
		}
	}
}
