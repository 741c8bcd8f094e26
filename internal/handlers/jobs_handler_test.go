package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestJobsHandler(t *testing.T) {
	jobs := &mockJobs{}
	handler := NewJobsHandler(jobs, jobs, quietLogger())
	router := newTestRouter(operator())
	router.GET("/admin/jobs/status", handler.Status)
	router.POST("/admin/jobs/complete-bookings", handler.RunCompletion)
	router.POST("/admin/jobs/expire-holds", handler.RunHoldSweep)

	jobs.On("GetJobStatus").Return(map[string]interface{}{"running": true, "job_count": 1})
	jobs.On("RunCompletionNow", mock.Anything).Return(3)
	jobs.On("RunOnce", mock.Anything).Return(2)

	w := doJSON(t, router, http.MethodGet, "/admin/jobs/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["running"])

	w = doJSON(t, router, http.MethodPost, "/admin/jobs/complete-bookings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["completed"])

	w = doJSON(t, router, http.MethodPost, "/admin/jobs/expire-holds", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["expired"])
	jobs.AssertExpectations(t)
}
