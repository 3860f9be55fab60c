package outbox

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/storefront-checkout/pkg/tracing"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Observer is notified of every dispatch attempt.
type Observer interface {
	OutboxDispatched(eventType, outcome string)
}

type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
	observer Observer
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic}
}

// WithObserver attaches o and returns d.
func (d *Dispatcher) WithObserver(o Observer) *Dispatcher {
	d.observer = o
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	headers := make([]kafka.Header, 0, len(event.Headers)+2)

	for k, v := range event.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers, kafka.Header{Key: HeaderEventType, Value: []byte(event.Type)})
	if h, ok := tracing.KafkaHeader(event.Traceparent); ok {
		headers = append(headers, h)
	}

	msg := kafka.Message{
		Topic:   d.topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
	}
	if err := d.producer.WriteMessages(ctx, msg); err != nil {
		d.log.Error("outbox dispatch failed", "event_id", event.ID, "err", err)
		d.observe(event.Type, "error")
		return err
	}
	d.log.Info("outbox dispatched", "event_id", event.ID, "type", event.Type)
	d.observe(event.Type, "sent")
	return nil
}

func (d *Dispatcher) observe(eventType, outcome string) {
	if d.observer != nil {
		d.observer.OutboxDispatched(eventType, outcome)
	}
}

// HeaderEventType carries Event.Type on every dispatched message.
const HeaderEventType = "event_type"
