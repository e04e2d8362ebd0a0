//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	kafkaadapter "github.com/couchcryptid/route-conditions-service/internal/adapter/kafka"
	"github.com/couchcryptid/route-conditions-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testTopic = "route-conditions-test"

func TestWriter_PublishRoutes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	brokers := startKafka(ctx, t)
	createTopics(t, brokers, testTopic)

	writer := kafkaadapter.NewWriter(brokers, testTopic, zap.NewNop())
	defer writer.Close()

	generated := time.Date(2025, 3, 3, 14, 0, 0, 0, time.UTC)
	routes := []domain.Route{
		{ID: "route-a", Summary: "I-35E S", Mode: domain.ModeDriving, GeneratedAt: generated,
			Conditions: []domain.RouteCondition{{Lat: 32.78, Lon: -96.8, Road: domain.UnknownRoad()}}, Risk: []float64{0.3}},
		{ID: "route-b", Summary: "US-77 S", Mode: domain.ModeDriving, GeneratedAt: generated},
	}
	require.NoError(t, writer.PublishRoutes(ctx, routes))

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		Topic:       testTopic,
		Partition:   0,
		StartOffset: kafkago.FirstOffset,
	})
	defer reader.Close()

	for _, want := range routes {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := reader.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read route message")

		assert.Equal(t, want.ID, string(msg.Key))
		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, "driving", headers["mode"])
		assert.Equal(t, "2025-03-03T14:00:00Z", headers["generated_at"])

		var got domain.Route
		require.NoError(t, json.Unmarshal(msg.Value, &got))
		assert.Equal(t, want.Summary, got.Summary)
	}
}
