package audit

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter publishes records as JSON, keyed by channel so a channel's history stays ordered
// within one partition.
type KafkaWriter struct {
	w messageWriter
}

// messageWriter is the part of *kafka.Writer we use; tests substitute it.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafka returns a writer for topic on brokers. No connection is made until the first write.
func NewKafka(brokers []string, topic string) *KafkaWriter {
	return &KafkaWriter{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

// Write implements Writer.
func (k *KafkaWriter) Write(ctx context.Context, r Record) error {
	payload, err := r.JSON()
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(r.Channel),
		Value:   payload,
		Time:    r.At,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(r.Kind)}},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish audit record: %w", err)
	}
	return nil
}

// Close implements Writer.
func (k *KafkaWriter) Close() error { return k.w.Close() }
