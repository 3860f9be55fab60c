package tracing

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// TraceparentHeader is the W3C header stored with outbox rows and copied onto
// Kafka messages.
const TraceparentHeader = "traceparent"

// KafkaHeader turns a stored traceparent into a message header. Rows written
// outside any span have none.
func KafkaHeader(traceparent string) (kafka.Header, bool) {
	if traceparent == "" {
		return kafka.Header{}, false
	}
	return kafka.Header{Key: TraceparentHeader, Value: []byte(traceparent)}, true
}

// ExtractKafkaHeaders returns ctx carrying the remote span context found in
// the message headers, if any.
func ExtractKafkaHeaders(ctx context.Context, headers []kafka.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, headerCarrier{headers: &headers})
}

// headerCarrier reads and writes W3C fields directly on Kafka headers.
type headerCarrier struct {
	headers *[]kafka.Header
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if h.Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}
