//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbattini/meteosat-europe-bot/internal/adapter/kafka"
	"github.com/fbattini/meteosat-europe-bot/internal/config"
	"github.com/fbattini/meteosat-europe-bot/internal/domain"
)

// Requires a reachable broker, e.g.
//
//	KAFKA_TEST_BROKER=localhost:9092 go test -tags integration ./internal/integration/
func testBroker(t *testing.T) string {
	t.Helper()
	broker := os.Getenv("KAFKA_TEST_BROKER")
	if broker == "" {
		t.Skip("KAFKA_TEST_BROKER not set")
	}
	return broker
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	err = conn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	require.NoError(t, err)
}

// TestReportWriterRoundTrip publishes one run summary through the report
// writer and reads it back, verifying the key, headers, and payload.
func TestReportWriterRoundTrip(t *testing.T) {
	broker := testBroker(t)
	topic := fmt.Sprintf("test-run-reports-%d", time.Now().UnixNano())
	createTopic(t, broker, topic)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaReportTopic: topic,
	}

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	windowStart := time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)
	summary := domain.RunSummary{
		GeneratedAt:   time.Date(2024, time.March, 15, 9, 2, 0, 0, time.UTC),
		WindowStart:   windowStart,
		WindowEnd:     windowStart.Add(24 * time.Hour),
		Attempts:      1,
		TotalProducts: 96,
		OK:            10,
		Skipped:       86,
		Frames:        10,
		Outcome:       domain.RunOutcomeImagery,
		PostID:        "1770000000000000000",
	}
	require.NoError(t, writer.Publish(ctx, summary))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       topic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from report topic")

	assert.Equal(t, "2024-03-14", string(msg.Key), "keyed by window start day")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, domain.RunOutcomeImagery, headers["outcome"])
	_, err = time.Parse(time.RFC3339, headers["generated_at"])
	assert.NoError(t, err, "generated_at should be valid RFC3339")

	var got domain.RunSummary
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, summary, got)
}
