package sink

import (
	"context"
	"errors"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/cuihairu/arcade/internal/ports"
)

// Kafka writes events to one topic keyed by task id, so a task's events stay
// on one partition and keep their order.
type Kafka struct {
	w *kafka.Writer
}

func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka sink: no brokers")
	}
	if topic == "" {
		topic = "arcade.events"
	}
	// Writers are safe for concurrent use
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Kafka{w: w}, nil
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Send(ctx context.Context, ev ports.Event) error {
	b, err := encode(ev)
	if err != nil {
		return err
	}
	return k.w.WriteMessages(ctx, kafka.Message{Key: []byte(ev.TaskID), Value: b})
}

func (k *Kafka) Close() error { return k.w.Close() }
