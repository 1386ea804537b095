package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/buoy-season-stats/internal/observability"
	"github.com/couchcryptid/buoy-season-stats/internal/report"
)

// ReportWriter publishes finished reports to a Kafka topic, keyed by job.
// It implements schedule.Publisher.
type ReportWriter struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewReportWriter creates a Kafka producer for the report topic.
func NewReportWriter(brokers []string, topic string, metrics *observability.Metrics, logger *slog.Logger) *ReportWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &ReportWriter{writer: w, metrics: metrics, logger: logger}
}

// Publish serializes the report and writes it as one message.
func (w *ReportWriter) Publish(ctx context.Context, r *report.Report) error {
	msg, err := serializeToMessage(r)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish report %s: %w", r.Key(), err)
	}
	w.metrics.ReportsPublished.Inc()
	w.logger.Debug("report published", "job", r.Key(), "topic", w.writer.Topic)
	return nil
}

func (w *ReportWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Report into a Kafka message.
func serializeToMessage(r *report.Report) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "strategy", Value: []byte(r.Summary.Strategy)},
			{Key: "generated_at", Value: []byte(r.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
