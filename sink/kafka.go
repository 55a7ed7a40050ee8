package sink

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/IBM/sarama"
)

// Kafka publishes event batches to a topic with full-ISR acks. Used
// where settlement consumes from a log instead of accepting RPCs.
// Message key is the batch's first sequence so partition-local order
// matches stream order.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafka connects a synchronous producer.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("sink: kafka producer: %w", err)
	}
	return &Kafka{producer: producer, topic: topic}, nil
}

// Submit publishes one batch. sarama's sync producer returns only
// after the brokers ack, which is the durability bar Submit promises.
func (k *Kafka) Submit(_ context.Context, batchID string, firstSeq, _ uint64, payload []byte) error {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, firstSeq)

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("batch_id"), Value: []byte(batchID)},
		},
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("sink: publish batch %s: %w", batchID, err)
	}
	return nil
}

// Close shuts the producer down.
func (k *Kafka) Close() error {
	return k.producer.Close()
}
