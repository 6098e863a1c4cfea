package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Publisher sends JSON-encoded events to the writer's topic.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher wraps an existing writer.
func NewPublisher(w *kafka.Writer) *Publisher {
	return &Publisher{writer: w}
}

// Publish marshals v and writes it under the given key.
func (p *Publisher) Publish(ctx context.Context, key string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("writing event to %s: %w", p.writer.Topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
