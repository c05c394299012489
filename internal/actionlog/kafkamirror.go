// v0
// kafkamirror.go
package actionlog

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"nrgchamp/ctrlcore/internal/domain"
)

// KafkaMirror publishes every durably-written ActionLogRecord to a Kafka
// topic for downstream ledgering/observability. It is strictly a mirror:
// the Queue's durability guarantee comes from the persistent store, not
// from this writer, so a broker outage must never block or fail a Drain.
type KafkaMirror struct {
	writer *kafka.Writer
	log    *slog.Logger
}

// NewKafkaMirror builds a mirror over the given brokers/topic, in the
// shape of the teacher's kafkabus.Bus.Writer construction. Pass an empty
// brokers slice to get a nil *KafkaMirror (mirroring disabled).
func NewKafkaMirror(brokers []string, topic string, log *slog.Logger) *KafkaMirror {
	if len(brokers) == 0 {
		return nil
	}
	return &KafkaMirror{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		log: log.With(slog.String("component", "actionlog-kafka-mirror")),
	}
}

func (m *KafkaMirror) Publish(ctx context.Context, rec domain.ActionLogRecord) error {
	if m == nil {
		return nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return m.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.Device),
		Value: b,
	})
}

func (m *KafkaMirror) Close() error {
	if m == nil || m.writer == nil {
		return nil
	}
	return m.writer.Close()
}
