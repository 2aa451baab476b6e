package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration // default 50ms
	// OnDelivery is called once per async batch; nil error means delivered.
	OnDelivery func(count int, err error)
}

// Producer is a thin wrapper around an async kafka-go Writer.
type Producer struct {
	w *kafka.Writer
}

func NewProducer(c ProducerConfig) *Producer {
	bt := c.BatchTimeout
	if bt <= 0 {
		bt = 50 * time.Millisecond
	}
	var completion func([]kafka.Message, error)
	if c.OnDelivery != nil {
		completion = func(msgs []kafka.Message, err error) { c.OnDelivery(len(msgs), err) }
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        c.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: bt,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion:   completion,
	}
	return &Producer{w: w}
}

// Publish enqueues one keyed message; delivery is reported via Completion.
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	return p.w.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
}

func (p *Producer) Close() error { return p.w.Close() }
