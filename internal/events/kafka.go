package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DefaultTopic receives every testimonial event unless configured otherwise.
const DefaultTopic = "testimonial-events"

var ErrMissingBrokers = errors.New("events: missing kafka brokers")

type messageWriter interface {
	WriteMessages(ctx context.Context, messages ...kafka.Message) error
	Close() error
}

// KafkaConfig captures the producer settings.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// KafkaPublisher writes events to one topic keyed by project id so a project's events stay ordered.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func NewKafkaPublisher(configuration KafkaConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	brokers := make([]string, 0, len(configuration.Brokers))
	for _, broker := range configuration.Brokers {
		trimmed := strings.TrimSpace(broker)
		if trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, ErrMissingBrokers
	}
	topic := strings.TrimSpace(configuration.Topic)
	if topic == "" {
		topic = DefaultTopic
	}
	batchTimeout := configuration.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(writer, topic, logger), nil
}

func newKafkaPublisher(writer messageWriter, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: writer, topic: topic, logger: logger}
}

func (publisher *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, marshalErr := event.Marshal()
	if marshalErr != nil {
		return fmt.Errorf("marshal event: %w", marshalErr)
	}
	message := kafka.Message{
		Key:   []byte(event.ProjectID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "source", Value: []byte(event.Source)},
		},
		Time: event.OccurredAt,
	}
	if err := publisher.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("publish event to %s: %w", publisher.topic, err)
	}
	publisher.logger.Debug("event_published",
		zap.String("topic", publisher.topic),
		zap.String("event_type", event.Type),
		zap.String("testimonial_id", event.TestimonialID),
	)
	return nil
}

// Close flushes pending messages.
func (publisher *KafkaPublisher) Close() error {
	return publisher.writer.Close()
}
