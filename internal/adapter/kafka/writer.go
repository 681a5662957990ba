// Package kafka publishes stored rallies to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// RallyWriter produces one message per rally, keyed by rally ID.
// It implements pipeline.RallyPublisher.
type RallyWriter struct {
	writer messageWriter
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewRallyWriter creates a Kafka producer for the rally topic.
func NewRallyWriter(brokers []string, topic string, logger *slog.Logger) *RallyWriter {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &RallyWriter{writer: w, clock: clockwork.NewRealClock(), logger: logger}
}

// PublishRallies writes all rallies from one document in a single
// WriteMessages call.
func (w *RallyWriter) PublishRallies(ctx context.Context, sourceURL string, rallies []domain.Rally) error {
	if len(rallies) == 0 {
		return nil
	}
	publishedAt := w.clock.Now().UTC()
	msgs := make([]kafkago.Message, len(rallies))
	for i := range rallies {
		msg, err := serializeRally(rallies[i], sourceURL, publishedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d rallies: %w", len(msgs), err)
	}
	w.logger.Debug("rallies published", "count", len(msgs), "source_url", sourceURL)
	return nil
}

func (w *RallyWriter) Close() error {
	return w.writer.Close()
}

func serializeRally(r domain.Rally, sourceURL string, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize rally %s: %w", r.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(r.ID.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source_url", Value: []byte(sourceURL)},
			{Key: "published_at", Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
