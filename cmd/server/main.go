package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/samsara/booking-engine/internal/cache"
	"github.com/samsara/booking-engine/internal/config"
	"github.com/samsara/booking-engine/internal/database"
	"github.com/samsara/booking-engine/internal/gateway"
	"github.com/samsara/booking-engine/internal/handlers"
	"github.com/samsara/booking-engine/internal/kafka"
	"github.com/samsara/booking-engine/internal/middleware"
	"github.com/samsara/booking-engine/internal/services"
	"github.com/samsara/booking-engine/pkg/jwt"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting booking engine")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Repositories
	tripRepository := database.NewTripRepository(db.DB)
	bookingRepository := database.NewBookingRepository(db.DB)
	auditRepository := database.NewPaymentAuditRepository(db.DB, logger)

	// Payment gateway
	paymentGateway, err := gateway.New(cfg.Gateway, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize payment gateway: %v", err)
	}
	logger.WithField("gateway", paymentGateway.Name()).Info("Payment gateway initialized")

	// Idempotency claims live in Redis when it is enabled, in memory otherwise
	var claims cache.Store
	var memoryClaims *cache.MemoryStore
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		redisStore := cache.NewRedisStore(redisClient, "booking-engine:")
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisStore.Ping(pingCtx); err != nil {
			logger.WithError(err).Warn("Redis unavailable, continuing with database idempotency only")
		}
		cancel()
		claims = redisStore
		logger.WithField("addr", cfg.Redis.Addr).Info("Redis idempotency store enabled")
	} else {
		memoryClaims = cache.NewMemoryStore()
		claims = memoryClaims
		logger.Info("Using in-memory idempotency store")
	}

	// Notifications
	producer, err := kafka.NewProducer(cfg.Kafka, logger)
	if err != nil {
		logger.Fatalf("Failed to create Kafka producer: %v", err)
	}
	defer producer.Close()

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	auditService := services.NewAuditService(auditRepository, producer, logger)
	inventoryService := services.NewInventoryService(tripRepository, logger)
	stateMachine := services.NewBookingStateMachine(bookingRepository, logger)
	orderService := services.NewOrderService(
		bookingRepository,
		inventoryService,
		stateMachine,
		paymentGateway,
		claims,
		auditService,
		services.OrderServiceConfig{
			HoldTTL:        cfg.Booking.HoldTTL,
			IdempotencyTTL: cfg.Booking.IdempotencyTTL,
			SigningSecret:  cfg.Gateway.SigningSecret,
			GatewayTimeout: cfg.Gateway.Timeout,
		},
		logger,
	)
	bookingService := services.NewBookingService(bookingRepository, inventoryService, stateMachine, auditService, auditRepository, logger)
	cancellationService := services.NewCancellationService(
		bookingRepository,
		inventoryService,
		stateMachine,
		paymentGateway,
		auditService,
		cfg.Gateway.Timeout,
		logger,
	)

	// Background jobs
	holdExpirationService := services.NewHoldExpirationService(
		bookingRepository,
		inventoryService,
		stateMachine,
		auditService,
		cfg.Booking.HoldSweepInterval,
		logger,
	)
	holdExpirationService.Start()
	logger.Info("✓ Hold expiration service started")

	cronService := services.NewCronService(bookingRepository, bookingService, cfg.Booking.CompletionSchedule, cfg.Booking.CompletionGrace, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	logger.Info("✓ Cron service started - booking completion enabled")

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	stopMaintenance := startMaintenance(rateLimiter, memoryClaims, logger)

	// Handlers
	tripHandler := handlers.NewTripHandler(inventoryService, logger)
	bookingHandler := handlers.NewBookingHandler(orderService, bookingService, logger)
	paymentHandler := handlers.NewPaymentHandler(orderService, logger)
	cancellationHandler := handlers.NewCancellationHandler(cancellationService, logger)
	jobsHandler := handlers.NewJobsHandler(cronService, holdExpirationService, logger)

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestMeta())
	router.Use(middleware.RequestLogger(logger))

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		if err := db.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "unavailable"
		}
		c.JSON(status, gin.H{
			"status":   dbStatus,
			"version":  version,
			"gateway":  paymentGateway.Name(),
			"database": dbStatus,
			"time":     time.Now().UTC(),
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(rateLimiter.Middleware())
	v1.Use(middleware.AuthMiddleware(jwtService, logger))
	{
		v1.GET("/trips/:id", tripHandler.GetTrip)

		bookings := v1.Group("/bookings")
		{
			bookings.POST("/reserve", bookingHandler.Reserve)
			bookings.GET("/:id", bookingHandler.GetBooking)
		}

		payments := v1.Group("/payments")
		{
			payments.POST("/order", paymentHandler.CreateOrder)
			payments.POST("/verify", paymentHandler.Verify)
		}

		v1.POST("/cancellations/request", cancellationHandler.Request)

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireRole(jwt.RoleOperator, jwt.RoleAdmin))
		{
			admin.POST("/trips", tripHandler.CreateTrip)

			admin.POST("/bookings/:id/approve", bookingHandler.ApproveBooking)
			admin.POST("/bookings/:id/reject", bookingHandler.RejectBooking)
			admin.POST("/bookings/:id/confirm", bookingHandler.ConfirmBooking)
			admin.GET("/bookings/:id/audit", bookingHandler.AuditTrail)

			admin.POST("/cancellations/approve", cancellationHandler.Approve)
			admin.POST("/cancellations/reject", cancellationHandler.Reject)

			admin.GET("/refunds", cancellationHandler.ListRefunds)
			admin.POST("/refunds/:booking_id/retry", cancellationHandler.RetryRefund)

			admin.GET("/jobs/status", jobsHandler.Status)
			admin.POST("/jobs/complete-bookings", jobsHandler.RunCompletion)
			admin.POST("/jobs/expire-holds", jobsHandler.RunHoldSweep)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	stopMaintenance()
	holdExpirationService.Stop()
	cronService.Stop()

	logger.Info("Server exited")
}

// startMaintenance periodically evicts idle rate limiters and expired in-memory claims
func startMaintenance(limiter *middleware.RateLimiter, claims *cache.MemoryStore, logger *logrus.Logger) func() {
	ticker := time.NewTicker(5 * time.Minute)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				evicted := limiter.Cleanup()
				swept := 0
				if claims != nil {
					swept = claims.Sweep()
				}
				if evicted > 0 || swept > 0 {
					logger.WithFields(logrus.Fields{
						"limiters_evicted": evicted,
						"claims_swept":     swept,
					}).Debug("Maintenance sweep finished")
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}
