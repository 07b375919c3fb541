package notify

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/combo-storefront/internal/domain/order"
)

// messageWriter is the subset of *kafka.Writer used by KafkaSink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes order.placed events keyed by order id.
type KafkaSink struct {
	w messageWriter
}

var _ Sink = (*KafkaSink)(nil)

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewKafkaSink creates a sink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

func (s *KafkaSink) Name() string { return "kafka" }

// Send writes one message. The customer mobile is hashed.
func (s *KafkaSink) Send(ctx context.Context, ev order.PlacedEvent) error {
	var e jx.Encoder
	encodePlaced(&e, ev, false)

	msg := kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: e.Bytes(),
		Time:  ev.Timestamp.UTC(),
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(ev.EventID)},
		},
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "write message")
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.w.Close()
}
