package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/samsara/booking-engine/internal/config"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testNotification(eventType models.BookingEventType) models.BookingNotification {
	booking := &models.Booking{
		ID:      uuid.New(),
		TripID:  uuid.New(),
		UserID:  uuid.New(),
		Status:  models.BookingStatusPaid,
		Payment: models.PaymentRecord{GrandTotal: 5000, Currency: "INR"},
	}
	return models.NewBookingNotification(eventType, booking)
}

func TestPublish(t *testing.T) {
	t.Run("Sends Keyed Message", func(t *testing.T) {
		mockProducer := mocks.NewSyncProducer(t, nil)
		notification := testNotification(models.BookingEventConfirmed)

		mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			var decoded models.BookingNotification
			if err := json.Unmarshal(val, &decoded); err != nil {
				return err
			}
			if decoded.BookingID != notification.BookingID {
				return errors.New("unexpected booking id")
			}
			return nil
		})

		producer := NewProducerWithClient(mockProducer, "booking", testLogger())
		require.NoError(t, producer.Publish(context.Background(), notification))
		require.NoError(t, producer.Close())
	})

	t.Run("Send Failure", func(t *testing.T) {
		mockProducer := mocks.NewSyncProducer(t, nil)
		mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		producer := NewProducerWithClient(mockProducer, "booking", testLogger())
		err := producer.Publish(context.Background(), testNotification(models.BookingEventRefundFailed))
		assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
		require.NoError(t, producer.Close())
	})

	t.Run("Mock Mode", func(t *testing.T) {
		producer, err := NewProducer(config.KafkaConfig{MockMode: true, TopicPrefix: "booking"}, testLogger())
		require.NoError(t, err)
		assert.NoError(t, producer.Publish(context.Background(), testNotification(models.BookingEventCancellationApproved)))
		assert.NoError(t, producer.Close())
	})
}

func TestTopicForEvent(t *testing.T) {
	producer := NewProducerWithClient(nil, "booking", testLogger())

	assert.Equal(t, "booking-confirmed", producer.TopicForEvent(models.BookingEventConfirmed))
	assert.Equal(t, "booking-cancellations", producer.TopicForEvent(models.BookingEventCancellationRequested))
	assert.Equal(t, "booking-cancellations", producer.TopicForEvent(models.BookingEventCancellationRejected))
	assert.Equal(t, "booking-refund-failures", producer.TopicForEvent(models.BookingEventRefundFailed))
	assert.Equal(t, "booking-events", producer.TopicForEvent("something.else"))
}
