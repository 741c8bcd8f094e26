package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// JobsHandler exposes manual triggers for the background jobs
type JobsHandler struct {
	completion CompletionJob
	holds      HoldSweeper
	logger     *logrus.Logger
}

// NewJobsHandler creates a new JobsHandler
func NewJobsHandler(completion CompletionJob, holds HoldSweeper, logger *logrus.Logger) *JobsHandler {
	return &JobsHandler{
		completion: completion,
		holds:      holds,
		logger:     logger,
	}
}

// Status reports the cron scheduler state
// GET /api/v1/admin/jobs/status
func (h *JobsHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.completion.GetJobStatus())
}

// RunCompletion completes departed PAID and CONFIRMED bookings now
// POST /api/v1/admin/jobs/complete-bookings
func (h *JobsHandler) RunCompletion(c *gin.Context) {
	started := time.Now()
	completed := h.completion.RunCompletionNow(c.Request.Context())

	h.logger.WithFields(logrus.Fields{
		"completed": completed,
		"duration":  time.Since(started).String(),
	}).Info("Manual booking completion run finished")

	c.JSON(http.StatusOK, gin.H{
		"message":   "booking completion run finished",
		"completed": completed,
	})
}

// RunHoldSweep expires lapsed seat holds now
// POST /api/v1/admin/jobs/expire-holds
func (h *JobsHandler) RunHoldSweep(c *gin.Context) {
	expired := h.holds.RunOnce(c.Request.Context())

	h.logger.WithField("expired", expired).Info("Manual hold sweep finished")

	c.JSON(http.StatusOK, gin.H{
		"message": "hold sweep finished",
		"expired": expired,
	})
}
