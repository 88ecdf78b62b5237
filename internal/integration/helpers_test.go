//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/couchcryptid/wildfire-analyser/internal/assessment"
	"github.com/couchcryptid/wildfire-analyser/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const kafkaImage = "confluentinc/confluent-local:7.5.0"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("wildfire-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// stubImagery stands in for Earth Engine: every window has scenes and every
// render returns a small payload named after the product.
type stubImagery struct {
	mu      sync.Mutex
	renders int
}

func (s *stubImagery) CountScenes(_ context.Context, _ assessment.Composite) (int, error) {
	return 3, nil
}

func (s *stubImagery) SeverityAreas(_ context.Context, _, _ assessment.Composite) (domain.AreaBySeverity, error) {
	return domain.AreaBySeverity{
		domain.Unburned:         120,
		domain.LowSeverity:      30,
		domain.ModerateSeverity: 25,
		domain.HighSeverity:     15,
		domain.VeryHighSeverity: 10,
	}, nil
}

func (s *stubImagery) Render(_ context.Context, job assessment.RenderJob) ([]byte, error) {
	s.mu.Lock()
	s.renders++
	s.mu.Unlock()
	return []byte("pixels:" + string(job.Kind)), nil
}

func (s *stubImagery) renderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renders
}
