package kafka

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/segmentio/kafka-go"

	"chute/frame"
)

// Producer publishes drained frames to a topic, keyed by stream so
// per-stream ordering survives partitioning.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Send publishes one encoded frame.
func (p *Producer) Send(ctx context.Context, f *frame.Frame) error {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, f.StreamID)

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: frame.Encode(f),
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
