// Package kafka publishes playback events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/flood-grid-playback/internal/config"
	"github.com/couchcryptid/flood-grid-playback/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces playback events to the configured topic.
// It implements pipeline.EventPublisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the events topic. Writes are async
// so a slow broker never delays a timestep refresh.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaEventsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(msgs []kafkago.Message, err error) {
			if err != nil {
				logger.Warn("playback events not delivered", "count", len(msgs), "error", err)
			}
		},
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes a playback event keyed by its timestep so events for the
// same timestep land on one partition.
func (w *Writer) Publish(ctx context.Context, event domain.PlaybackEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish playback event: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a PlaybackEvent into a Kafka message.
func serializeToMessage(event domain.PlaybackEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize playback event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Timestep.Key),
		Value: data,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "origin", Value: []byte(event.Origin)},
			{Key: "sequence", Value: []byte(strconv.FormatUint(event.Sequence, 10))},
			{Key: "emitted_at", Value: []byte(event.EmittedAt.Format(time.RFC3339))},
		},
	}, nil
}
