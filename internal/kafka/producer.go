package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/samsara/booking-engine/internal/config"
	"github.com/samsara/booking-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// Producer publishes booking lifecycle notifications
type Producer struct {
	producer    sarama.SyncProducer
	mockMode    bool
	topicPrefix string
	logger      *logrus.Logger
}

// NewProducer connects to the brokers, or runs without a connection in mock mode
func NewProducer(cfg config.KafkaConfig, logger *logrus.Logger) (*Producer, error) {
	if cfg.MockMode {
		logger.Info("Kafka producer running in mock mode - no actual Kafka connection")
		return &Producer{
			mockMode:    true,
			topicPrefix: cfg.TopicPrefix,
			logger:      logger,
		}, nil
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	logger.WithField("brokers", cfg.Brokers).Info("Connected to Kafka brokers")
	return NewProducerWithClient(producer, cfg.TopicPrefix, logger), nil
}

// NewProducerWithClient wraps an existing sarama producer
func NewProducerWithClient(producer sarama.SyncProducer, topicPrefix string, logger *logrus.Logger) *Producer {
	return &Producer{
		producer:    producer,
		topicPrefix: topicPrefix,
		logger:      logger,
	}
}

// Publish sends a notification keyed by booking id so events of one booking stay ordered
func (p *Producer) Publish(ctx context.Context, notification models.BookingNotification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	topic := p.TopicForEvent(notification.EventType)

	if p.mockMode {
		p.logger.WithFields(logrus.Fields{
			"topic":      topic,
			"event_type": notification.EventType,
			"booking_id": notification.BookingID,
		}).Info("Mock publishing booking notification")
		return nil
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(notification.BookingID.String()),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithField("topic", topic).Error("Failed to send message")
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"topic":      topic,
		"partition":  partition,
		"offset":     offset,
		"booking_id": notification.BookingID,
	}).Debug("Booking notification published")
	return nil
}

// TopicForEvent routes an event type to its topic
func (p *Producer) TopicForEvent(eventType models.BookingEventType) string {
	switch eventType {
	case models.BookingEventConfirmed:
		return p.topicPrefix + "-confirmed"
	case models.BookingEventCancellationRequested, models.BookingEventCancellationApproved, models.BookingEventCancellationRejected:
		return p.topicPrefix + "-cancellations"
	case models.BookingEventRefundFailed:
		return p.topicPrefix + "-refund-failures"
	default:
		return p.topicPrefix + "-events"
	}
}

// Close flushes and closes the broker connection
func (p *Producer) Close() error {
	if p.mockMode || p.producer == nil {
		return nil
	}
	p.logger.Info("Closing Kafka producer connection")
	return p.producer.Close()
}
