package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/streetlight-predictor/internal/config"
	"github.com/couchcryptid/streetlight-predictor/internal/domain"
)

// Writer streams prediction records to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured prediction topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaPredictionTopic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// LoadBatch serializes and publishes prediction records in a single
// WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, records []domain.PredictionRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d prediction records: %w", len(msgs), err)
	}
	w.logger.Debug("prediction records streamed", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a PredictionRecord into a Kafka message keyed
// by prediction id.
func serializeToMessage(record domain.PredictionRecord) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize prediction record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(record.ID),
		Value: data,
		Time:  record.Timestamp,
		Headers: []kafkago.Header{
			{Key: "lights_on", Value: []byte(strconv.FormatBool(record.LightsOn))},
			{Key: "predicted_at", Value: []byte(record.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}
