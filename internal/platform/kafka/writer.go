// Package kafka builds the producer the outbox dispatcher writes through.
package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewWriter keys messages by aggregate id, so events of one transaction stay
// ordered on a single partition. Topics are set per message.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
}
