package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-events-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces batch records to a Kafka topic.
// It implements pipeline.Sink.
type Writer struct {
	writer *kafkago.Writer
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic.
func NewWriter(brokers []string, topic string, clock clockwork.Clock, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, clock: clock, logger: logger}
}

// Insert publishes each record of the batch as one message in a single
// WriteMessages call.
func (w *Writer) Insert(ctx context.Context, batch domain.Batch) (int, error) {
	if len(batch.Docs) == 0 {
		return 0, nil
	}
	msgs := toMessages(batch, w.clock.Now())
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("publish %s: %w", batch.Source, err)
	}
	w.logger.Debug("batch published", "source", batch.Source, "topic", w.writer.Topic, "records", len(msgs))
	return len(msgs), nil
}

// Close flushes pending messages and closes the connections. It gives up
// when ctx is done; the flush then continues in the background.
func (w *Writer) Close(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- w.writer.Close() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("close kafka writer: %w", ctx.Err())
	}
}

// toMessages maps records to keyless messages. Records carry no identity
// field, so partitioning is left to the balancer.
func toMessages(batch domain.Batch, now time.Time) []kafkago.Message {
	publishedAt := []byte(now.UTC().Format(time.RFC3339))
	msgs := make([]kafkago.Message, len(batch.Docs))
	for i, doc := range batch.Docs {
		msgs[i] = kafkago.Message{
			Value: doc,
			Headers: []kafkago.Header{
				{Key: "source_file", Value: []byte(batch.Source)},
				{Key: "published_at", Value: publishedAt},
			},
		}
	}
	return msgs
}
