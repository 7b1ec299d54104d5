package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/news-collector/internal/models"
)

// HeaderRunID carries the collection run that produced a message.
const HeaderRunID = "run_id"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends dataset rows to a Kafka topic, keyed by row id so every
// version of a row lands on the same partition.
type Publisher struct {
	w messageWriter
}

// NewPublisher creates a Publisher for topic on brokers.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

// Publish writes rows as JSON messages in one batch.
func (p *Publisher) Publish(ctx context.Context, runID string, rows []models.NewsRow) error {
	if len(rows) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(rows))
	for _, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal row %s: %w", row.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(row.ID),
			Value:   payload,
			Headers: []kafka.Header{{Key: HeaderRunID, Value: []byte(runID)}},
		})
	}

	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d rows: %w", len(msgs), err)
	}
	return nil
}

// Close flushes and releases the underlying writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
