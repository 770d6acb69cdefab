// Package events publishes diagnosis events to Kafka for downstream
// consumers such as PHC referral dashboards.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

const headerEventType = "event-type"

// KafkaPublisher writes each event to the topic mapped for its type, or to a
// topic named after the type when there is no mapping.
type KafkaPublisher struct {
	writer       *kafka.Writer
	topicByEvent map[string]string
	logger       *logrus.Logger
}

// NewKafkaPublisher creates a publisher. Messages with the same partition key
// land on the same partition.
func NewKafkaPublisher(brokers []string, topicByEvent map[string]string, logger *logrus.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			WriteTimeout:           10 * time.Second,
		},
		topicByEvent: topicByEvent,
		logger:       logger,
	}, nil
}

func (p *KafkaPublisher) topicFor(eventType string) string {
	if mapped, ok := p.topicByEvent[eventType]; ok && mapped != "" {
		return mapped
	}
	return eventType
}

// Publish writes one event synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	topic := p.topicFor(eventType)
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(partitionKey),
		Value:   payload,
		Headers: []kafka.Header{{Key: headerEventType, Value: []byte(eventType)}},
		Time:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", eventType, topic, err)
	}
	p.logger.WithFields(logrus.Fields{
		"event": eventType,
		"topic": topic,
		"key":   partitionKey,
	}).Debug("Event published")
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops events. It is used when event publishing is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte, string) error { return nil }
func (NoopPublisher) Close() error { return nil }

// NewPublisher returns a Kafka publisher when events are enabled and a
// NoopPublisher otherwise.
func NewPublisher(config domain.EventsConfig, topicByEvent map[string]string, logger *logrus.Logger) (domain.EventPublisher, error) {
	if !config.Enabled {
		return NoopPublisher{}, nil
	}
	return NewKafkaPublisher(config.Brokers, topicByEvent, logger)
}
