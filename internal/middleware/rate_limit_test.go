package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2)

	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("b"), "clients have separate buckets")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	limiter.Allow("a")

	assert.Equal(t, 0, limiter.Cleanup())
	limiter.idle = -1
	assert.Equal(t, 1, limiter.Cleanup())
}

func TestRateLimiter_Middleware(t *testing.T) {
	router := setupTestRouter()
	router.Use(NewRateLimiter(0.001, 1).Middleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "RATE_LIMITED")
}

func TestRequestMeta(t *testing.T) {
	router := setupTestRouter()
	router.Use(RequestMeta())

	var captured models.RequestMeta
	router.GET("/", func(c *gin.Context) {
		captured = models.RequestMetaFrom(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Real-IP", "203.0.113.10")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set(RequestIDHeader, "req-abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "203.0.113.10", captured.IP)
	assert.Equal(t, "desktop", captured.DeviceType)
	assert.Equal(t, "req-abc", captured.CorrelationID)
	assert.Equal(t, "req-abc", w.Header().Get(RequestIDHeader))
}

func TestRequestMeta_GeneratesCorrelationID(t *testing.T) {
	router := setupTestRouter()
	router.Use(RequestMeta(), RequestLogger(quietLogger()))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	id := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
}
