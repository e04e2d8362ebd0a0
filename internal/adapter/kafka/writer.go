package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/route-conditions-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Writer publishes enriched routes to a Kafka topic.
// It implements pipeline.RoutePublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *zap.Logger
}

// NewWriter creates a Kafka producer for the given topic.
func NewWriter(brokers []string, topic string, logger *zap.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishRoutes writes one message per route in a single WriteMessages call.
func (w *Writer) PublishRoutes(ctx context.Context, routes []domain.Route) error {
	if len(routes) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(routes))
	for i := range routes {
		msg, err := serializeToMessage(routes[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish routes: %w", err)
	}
	w.logger.Debug("routes published", zap.Int("count", len(routes)))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Route into a Kafka message keyed by route ID.
func serializeToMessage(route domain.Route) (kafkago.Message, error) {
	data, err := json.Marshal(route)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize route: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(route.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "mode", Value: []byte(route.Mode)},
			{Key: "generated_at", Value: []byte(route.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
