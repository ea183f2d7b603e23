package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// producer is the part of *kgo.Client the Kafka store needs.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaStore publishes events as JSON records keyed by customer id, so every
// decision for one customer lands on the same partition in order.
type KafkaStore struct {
	client producer
	topic  string
}

// NewKafkaStore connects a producer to brokers.
func NewKafkaStore(brokers []string, topic string, opts ...kgo.Opt) (*KafkaStore, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka audit store requires at least one broker")
	}
	if topic == "" {
		return nil, errors.New("kafka audit store requires a topic")
	}
	clientOpts := append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression(), kgo.NoCompression()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}, opts...)
	client, err := kgo.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaStore{client: client, topic: topic}, nil
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.CustomerID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "correlation_id", Value: []byte(event.CorrelationID)},
		},
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event to %s: %w", s.topic, err)
	}
	return nil
}

// Close flushes and closes the producer.
func (s *KafkaStore) Close() {
	s.client.Close()
}
