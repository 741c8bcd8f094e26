package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// Payment gateway configuration
	Gateway GatewayConfig

	// Booking lifecycle configuration
	Booking BookingConfig

	// Kafka notification configuration
	Kafka KafkaConfig

	// Redis configuration (TTL keyed store)
	Redis RedisConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// CORS configuration
	CORS CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver             string // "pgx" or "postgres" (lib/pq)
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// GatewayConfig holds payment gateway configuration
type GatewayConfig struct {
	Provider             string // "razorpay", "stripe" or "sandbox"
	KeyID                string // Razorpay key id (public, returned to checkout)
	KeySecret            string // Razorpay key secret (SECRET)
	BaseURL              string
	StripeSecretKey      string
	StripePublishableKey string
	SigningSecret        string // HMAC secret for razorpay/sandbox confirmations; defaults to KeySecret
	Timeout              time.Duration
	Currency             string
}

// BookingConfig holds reservation and lifecycle timings
type BookingConfig struct {
	HoldTTL            time.Duration // how long unpaid seats stay reserved
	HoldSweepInterval  time.Duration
	CompletionSchedule string // cron expression (with seconds) for the completion job
	CompletionGrace    time.Duration
	IdempotencyTTL     time.Duration
}

// KafkaConfig holds broker configuration for lifecycle notifications
type KafkaConfig struct {
	Brokers     []string
	MockMode    bool
	TopicPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig holds per-client rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Driver:             getEnv("DATABASE_DRIVER", "pgx"),
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		Gateway: GatewayConfig{
			Provider:             getEnv("GATEWAY_PROVIDER", "sandbox"),
			KeyID:                getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret:            getEnv("RAZORPAY_KEY_SECRET", ""),
			BaseURL:              getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
			StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
			StripePublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
			SigningSecret:        getEnv("GATEWAY_SIGNING_SECRET", ""),
			Timeout:              time.Duration(getEnvAsInt("GATEWAY_TIMEOUT_SECONDS", 15)) * time.Second,
			Currency:             getEnv("GATEWAY_CURRENCY", "INR"),
		},
		Booking: BookingConfig{
			HoldTTL:            time.Duration(getEnvAsInt("BOOKING_HOLD_TTL_MINUTES", 15)) * time.Minute,
			HoldSweepInterval:  time.Duration(getEnvAsInt("BOOKING_HOLD_SWEEP_SECONDS", 60)) * time.Second,
			CompletionSchedule: getEnv("BOOKING_COMPLETION_SCHEDULE", "0 30 2 * * *"),
			CompletionGrace:    time.Duration(getEnvAsInt("BOOKING_COMPLETION_GRACE_HOURS", 24)) * time.Hour,
			IdempotencyTTL:     time.Duration(getEnvAsInt("IDEMPOTENCY_TTL_MINUTES", 60)) * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			MockMode:    getEnvAsBool("KAFKA_MOCK_MODE", true),
			TopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "booking"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "Idempotency-Key"}),
		},
	}

	// Razorpay signs confirmations with the key secret
	if config.Gateway.SigningSecret == "" {
		config.Gateway.SigningSecret = config.Gateway.KeySecret
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Database.Driver != "pgx" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid DATABASE_DRIVER: %s (must be 'pgx' or 'postgres')", c.Database.Driver)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	// Stripe payments are confirmed against the API, not a signature
	if c.Gateway.SigningSecret == "" && c.Gateway.Provider != "stripe" {
		return fmt.Errorf("GATEWAY_SIGNING_SECRET (or RAZORPAY_KEY_SECRET) is required")
	}

	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT_SECONDS must be positive")
	}

	switch c.Gateway.Provider {
	case "razorpay":
		if c.Gateway.KeyID == "" || c.Gateway.KeySecret == "" {
			return fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required for razorpay provider")
		}
	case "stripe":
		if c.Gateway.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required for stripe provider")
		}
	case "sandbox":
		if c.Server.Environment == "production" {
			return fmt.Errorf("sandbox gateway cannot be used in production")
		}
	default:
		return fmt.Errorf("invalid GATEWAY_PROVIDER: %s (must be 'razorpay', 'stripe' or 'sandbox')", c.Gateway.Provider)
	}

	if c.Booking.HoldTTL <= 0 {
		return fmt.Errorf("BOOKING_HOLD_TTL_MINUTES must be positive")
	}

	if !c.Kafka.MockMode && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_MOCK_MODE is false")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %g", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
