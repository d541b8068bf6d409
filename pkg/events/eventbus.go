package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/chaptermaps/institution-service/pkg/metrics"
)

// Event types published by the service.
const (
	TypeInstitutionCreated = "institution.created"
	TypeInstitutionDeleted = "institution.deleted"
	TypeFileUploaded       = "file.uploaded"
	TypeFileUpdated        = "file.updated"
	TypeFileDeleted        = "file.deleted"
)

type Event struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	AggregateID   string                 `json:"aggregateId"`
	AggregateType string                 `json:"aggregateType"`
	Timestamp     time.Time              `json:"timestamp"`
	Payload       map[string]interface{} `json:"payload"`
}

type EventBus interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaEventBus publishes events to a single Kafka topic, keyed by
// aggregate ID.
type KafkaEventBus struct {
	writer *kafka.Writer
}

func NewKafkaEventBus(config KafkaConfig) (*KafkaEventBus, error) {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      config.Brokers,
		Topic:        config.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        false,
	})

	return &KafkaEventBus{writer: writer}, nil
}

func (k *KafkaEventBus) Publish(ctx context.Context, event Event) error {
	fill(&event)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}

	metrics.EventsPublished.WithLabelValues(event.Type).Inc()
	return nil
}

func (k *KafkaEventBus) Close() error {
	return k.writer.Close()
}

// NopEventBus discards every event. It backs deployments without Kafka,
// where retaining events in-process would only grow memory.
type NopEventBus struct{}

func NewNopEventBus() *NopEventBus { return &NopEventBus{} }

func (*NopEventBus) Publish(ctx context.Context, event Event) error { return nil }

func (*NopEventBus) Close() error { return nil }

// MemoryEventBus records published events in memory so tests can assert on
// them. Not for production wiring: events are retained unbounded.
type MemoryEventBus struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{}
}

func (m *MemoryEventBus) Publish(ctx context.Context, event Event) error {
	fill(&event)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)

	metrics.EventsPublished.WithLabelValues(event.Type).Inc()
	return nil
}

// Events returns a copy of everything published so far.
func (m *MemoryEventBus) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MemoryEventBus) Close() error { return nil }

func fill(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
}
