package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/samsara/booking-engine/internal/config"
	"github.com/samsara/booking-engine/internal/database"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// Prints the payment audit trail of one booking, oldest entry first
func main() {
	var bookingFlag string
	flag.StringVar(&bookingFlag, "booking", "", "booking id to inspect")
	flag.Parse()

	bookingID, err := uuid.Parse(bookingFlag)
	if err != nil {
		color.Red("-booking must be a valid UUID")
		os.Exit(2)
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		color.Red("Failed to load config: %v", err)
		os.Exit(1)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.NewConnection(cfg.Database, logger)
	if err != nil {
		color.Red("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	booking, err := database.NewBookingRepository(db.DB).GetBookingByID(ctx, bookingID)
	if err != nil {
		color.Red("Failed to load booking: %v", err)
		os.Exit(1)
	}
	if booking == nil {
		color.Yellow("Booking %s not found", bookingID)
		os.Exit(1)
	}

	entries, err := database.NewPaymentAuditRepository(db.DB, logger).GetByBookingID(ctx, bookingID)
	if err != nil {
		color.Red("Failed to load audit trail: %v", err)
		os.Exit(1)
	}

	header := color.New(color.FgCyan, color.Bold)
	header.Printf("Booking %s\n", booking.ID)
	fmt.Printf("  trip:    %s\n", booking.TripID)
	fmt.Printf("  status:  %s (version %d)\n", booking.Status, booking.Version)
	fmt.Printf("  seats:   %d\n", booking.PartySize)
	fmt.Printf("  total:   %.2f %s\n", booking.Payment.GrandTotal, booking.Payment.Currency)
	if refund := booking.RefundOutcome(); refund != nil {
		fmt.Printf("  refund:  %s %.2f (%d%%, %d attempts)\n", refund.Status, refund.Amount, refund.Percentage, refund.Attempts)
	}
	fmt.Println()

	header.Printf("%d audit entries\n", len(entries))
	for _, entry := range entries {
		printEntry(entry)
	}
}

func printEntry(entry *models.PaymentAudit) {
	line := color.New(color.FgGreen)
	switch entry.EventType {
	case models.PaymentEventSignatureMismatch, models.PaymentEventOrderFailed, models.PaymentEventRefundFailed:
		line = color.New(color.FgRed)
	case models.PaymentEventHoldExpired, models.PaymentEventCancellationRequested, models.PaymentEventCancellationRejected:
		line = color.New(color.FgYellow)
	}

	line.Printf("%s  %-24s %-9s", entry.CreatedAt.Format(time.RFC3339), entry.EventType, entry.EventSource)
	if entry.BookingStatus != nil {
		fmt.Printf(" status=%s", *entry.BookingStatus)
	}
	if entry.ExpectedAmount != nil {
		fmt.Printf(" amount=%.2f", *entry.ExpectedAmount)
	}
	if entry.GatewayPaymentID != nil {
		fmt.Printf(" payment=%s", *entry.GatewayPaymentID)
	}
	if entry.GatewayRefundID != nil {
		fmt.Printf(" refund=%s", *entry.GatewayRefundID)
	}
	if entry.ErrorMessage != nil {
		fmt.Printf(" error=%q", *entry.ErrorMessage)
	}
	if entry.IsDuplicate {
		fmt.Print(" duplicate")
	}
	fmt.Println()
}
