package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher delivers export rows. The worker holds this interface; tests
// inject a stub.
type Publisher interface {
	Publish(ctx context.Context, row Row) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one JSON message per row, keyed by result ID so every
// re-delivery of a result lands on the same partition.
type KafkaPublisher struct {
	w     messageWriter
	topic string
}

// NewKafkaPublisher returns a Publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
		topic: topic,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, row Row) error {
	value, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("export: marshal row: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(row.ResultID.String()),
		Value: value,
		Time:  row.CompletedAt,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("export: write to %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// logPublisher logs rows instead of publishing them.
type logPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a Publisher for environments without brokers.
func NewLogPublisher(logger *slog.Logger) Publisher {
	return &logPublisher{logger: logger}
}

func (p *logPublisher) Publish(ctx context.Context, row Row) error {
	p.logger.InfoContext(ctx, "export: row",
		"result_id", row.ResultID,
		"global_mean", row.GlobalMean,
		"global_label", row.GlobalLabel,
		"bai_sum", row.BAISum,
		"cells", row.Values(),
	)
	return nil
}

func (p *logPublisher) Close() error { return nil }
