// Package feed mirrors acknowledged event batches onto a Kafka topic
// for market-data consumers. Best effort: a failed publish is not
// retried. The writer publishes after each settlement ack and waits
// for the call to return before taking the next batch.
package feed

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Feed publishes batches keyed by first sequence.
type Feed struct {
	writer *kafka.Writer
}

// New creates a feed publisher.
func New(brokers []string, topic string) *Feed {
	return &Feed{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish mirrors one encoded event batch.
func (f *Feed) Publish(ctx context.Context, firstSeq uint64, payload []byte) error {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, firstSeq)
	if err := f.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: payload}); err != nil {
		return fmt.Errorf("feed: publish batch %d: %w", firstSeq, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (f *Feed) Close() error {
	return f.writer.Close()
}
