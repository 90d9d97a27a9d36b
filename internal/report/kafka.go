package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const kafkaWriteTimeout = 10 * time.Second

// KafkaEmitter publishes run reports to a Kafka topic so downstream
// consumers can track conversion runs. Publishing is best-effort: the run
// outcome never depends on it.
type KafkaEmitter struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewKafkaEmitter creates an emitter for the given brokers and topic.
func NewKafkaEmitter(brokers []string, topic string, logger *slog.Logger) *KafkaEmitter {
	return &KafkaEmitter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: kafkaWriteTimeout,
			RequiredAcks: kafka.RequireOne,
		},
		logger: logger,
	}
}

// Emit publishes one report document keyed by run ID.
func (e *KafkaEmitter) Emit(ctx context.Context, runID string, document []byte) error {
	err := e.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(runID),
		Value: document,
	})
	if err != nil {
		return fmt.Errorf("failed to publish run report: %w", err)
	}

	e.logger.Info("Published run report",
		slog.String("topic", e.writer.Topic),
		slog.String("run_id", runID),
	)

	return nil
}

// Close flushes and closes the underlying writer.
func (e *KafkaEmitter) Close() error {
	return e.writer.Close()
}
