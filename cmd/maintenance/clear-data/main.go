package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samsara/booking-engine/internal/config"
	"github.com/samsara/booking-engine/internal/database"
	"github.com/sirupsen/logrus"
)

// tables are truncated together so foreign keys never block the reset
var tables = []string{
	"payment_audits",
	"bookings",
	"trips",
}

func main() {
	var dbURLFlag string
	var driverFlag string
	var confirm bool
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.StringVar(&driverFlag, "driver", "pgx", "database driver: pgx or postgres")
	flag.BoolVar(&confirm, "yes", false, "confirm that all booking data should be deleted")
	flag.Parse()

	// .env is optional; it keeps secrets off the command line
	_ = godotenv.Load()

	if os.Getenv("ENVIRONMENT") == "production" {
		log.Fatal("refusing to clear data in production")
	}
	if !confirm {
		log.Fatal("pass -yes to delete all trips, bookings and payment audits")
	}

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	// Minimal database config without loading the full app config
	dbCfg := config.DatabaseConfig{
		Driver:             driverFlag,
		URL:                dbURL,
		MaxConnections:     5,
		MaxIdleConnections: 2,
		ConnMaxLifetime:    time.Minute,
	}

	db, err := database.NewConnection(dbCfg, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("Connected to database. Truncating tables...")

	truncateSQL := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE;", strings.Join(tables, ", "))
	if _, err := db.Exec(truncateSQL); err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	fmt.Println("All booking data cleared.")

	fmt.Println("Post-clear row counts:")
	for _, table := range tables {
		var count int
		if err := db.Get(&count, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)); err != nil {
			fmt.Printf("  %s: error: %v\n", table, err)
			continue
		}
		fmt.Printf("  %s: %d\n", table, count)
	}
}

