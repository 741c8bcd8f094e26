package services

import (
	"testing"
	"time"

	"github.com/samsara/booking-engine/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestQuoteRefund(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name     string
		startsIn time.Duration
		total    float64
		want     models.RefundQuote
	}{
		{name: "more than a week out", startsIn: 8 * day, total: 2000, want: models.RefundQuote{Amount: 2000, Percentage: 100}},
		{name: "exactly seven days", startsIn: 7 * day, total: 2000, want: models.RefundQuote{Amount: 1500, Percentage: 75}},
		{name: "partial day rounds up", startsIn: 6*day + 12*time.Hour, total: 2000, want: models.RefundQuote{Amount: 1500, Percentage: 75}},
		{name: "exactly six days", startsIn: 6 * day, total: 2000, want: models.RefundQuote{Amount: 1000, Percentage: 50}},
		{name: "exactly five days", startsIn: 5 * day, total: 2000, want: models.RefundQuote{Amount: 500, Percentage: 25}},
		{name: "exactly four days", startsIn: 4 * day, total: 2000, want: models.RefundQuote{Amount: 0, Percentage: 0}},
		{name: "two days", startsIn: 2 * day, total: 2000, want: models.RefundQuote{Amount: 0, Percentage: 0}},
		{name: "already departed", startsIn: -day, total: 2000, want: models.RefundQuote{Amount: 0, Percentage: 0}},
		{name: "rounds to whole units", startsIn: 7 * day, total: 999.99, want: models.RefundQuote{Amount: 750, Percentage: 75}},
		{name: "nothing paid", startsIn: 10 * day, total: 0, want: models.RefundQuote{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuoteRefund(now.Add(tt.startsIn), now, tt.total)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuoteRefund_ZeroStartDate(t *testing.T) {
	assert.Equal(t, models.RefundQuote{}, QuoteRefund(time.Time{}, time.Now(), 1000))
}

func TestQuoteRefund_Deterministic(t *testing.T) {
	now := time.Now()
	start := now.Add(100 * time.Hour)
	assert.Equal(t, QuoteRefund(start, now, 1234.5), QuoteRefund(start, now, 1234.5))
}

func TestDaysUntilTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, DaysUntilTrip(now.Add(time.Hour), now))
	assert.Equal(t, 1, DaysUntilTrip(now.Add(24*time.Hour), now))
	assert.Equal(t, 2, DaysUntilTrip(now.Add(25*time.Hour), now))
	assert.Equal(t, 0, DaysUntilTrip(now, now))
	assert.Equal(t, -1, DaysUntilTrip(now.Add(-24*time.Hour), now))
}
