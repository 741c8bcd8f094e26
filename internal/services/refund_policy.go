package services

import (
	"math"
	"time"

	"github.com/samsara/booking-engine/internal/models"
)

// refundTier pays out Percentage when more than MinDays remain before the trip
type refundTier struct {
	MinDays    int
	Percentage int
}

// Tiers are checked in order; the first match wins
var refundTiers = []refundTier{
	{MinDays: 7, Percentage: 100},
	{MinDays: 6, Percentage: 75},
	{MinDays: 5, Percentage: 50},
	{MinDays: 4, Percentage: 25},
}

// DaysUntilTrip counts started days between now and the trip start, rounding up
func DaysUntilTrip(startDate, now time.Time) int {
	return int(math.Ceil(startDate.Sub(now).Hours() / 24))
}

// QuoteRefund computes the refundable amount for cancelling now
// It is pure: the same inputs always give the same quote
func QuoteRefund(startDate, now time.Time, grandTotal float64) models.RefundQuote {
	if startDate.IsZero() || grandTotal <= 0 {
		return models.RefundQuote{}
	}

	days := DaysUntilTrip(startDate, now)
	percentage := 0
	for _, tier := range refundTiers {
		if days > tier.MinDays {
			percentage = tier.Percentage
			break
		}
	}

	return models.RefundQuote{
		Amount:     math.Round(grandTotal * float64(percentage) / 100),
		Percentage: percentage,
	}
}
