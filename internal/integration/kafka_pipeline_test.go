//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/wildfire-analyser/internal/adapter/blobstore"
	"github.com/couchcryptid/wildfire-analyser/internal/adapter/kafka"
	"github.com/couchcryptid/wildfire-analyser/internal/assessment"
	"github.com/couchcryptid/wildfire-analyser/internal/config"
	"github.com/couchcryptid/wildfire-analyser/internal/domain"
	"github.com/couchcryptid/wildfire-analyser/internal/observability"
	"github.com/couchcryptid/wildfire-analyser/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
)

const (
	testSourceTopic = "test-requests"
	testSinkTopic   = "test-reports"

	testPolygon = `{"type":"Polygon","coordinates":[[[-121.9,39.8],[-121.7,39.8],[-121.7,40.0],[-121.9,40.0],[-121.9,39.8]]]}`
)

// reportMessage holds a deserialized report read from the sink topic.
type reportMessage struct {
	Report  domain.Report
	Key     string
	Headers map[string]string
}

func readReport(ctx context.Context, t *testing.T, consumer *kafkago.Reader) reportMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var report domain.Report
	require.NoError(t, json.Unmarshal(msg.Value, &report), "unmarshal report")

	return reportMessage{Report: report, Key: string(msg.Key), Headers: headers}
}

func requestPayload(t *testing.T, id, start, end string, deliverables ...string) []byte {
	t.Helper()
	data, err := json.Marshal(domain.AssessmentRequest{
		ID:           id,
		GeoJSON:      json.RawMessage(testPolygon),
		StartDate:    start,
		EndDate:      end,
		Deliverables: deliverables,
	})
	require.NoError(t, err)
	return data
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 2 * time.Second,
	}
}

func sinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestKafkaReaderWriter verifies that kafka.Reader and kafka.Writer
// round-trip a request and a report through a real broker.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	payload := requestPayload(t, "park-fire", "2024-07-24", "2024-08-05", "rbr")
	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{Key: []byte("park-fire"), Value: payload}))

	// The consumer group may need time to rebalance before partitions are
	// assigned, so keep extracting until the message shows up.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for len(batch) == 0 {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("park-fire"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	out, err := domain.SerializeReport(domain.FailedReport("park-fire", "run-1", domain.ErrNoScenes))
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.OutputEvent{out}))

	rm := readReport(ctx, t, sinkConsumer(t, broker))
	assert.Equal(t, "park-fire", rm.Key)
	assert.Equal(t, domain.StatusFailed, rm.Headers["status"])
	_, err = time.Parse(time.RFC3339, rm.Headers["completed_at"])
	assert.NoError(t, err, "completed_at should be valid RFC3339")
	assert.Equal(t, "no images found", rm.Report.Error)
}

// TestPipelineEndToEnd runs Reader → assessment → Writer against a real
// broker with stubbed imagery and an in-memory bucket. A poison message is
// skipped, an invalid request yields a failed report and a valid request a
// succeeded report whose products are in the bucket.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("backwards"), Value: requestPayload(t, "", "2024-08-05", "2024-07-24")},
		kafkago.Message{Key: []byte("park-fire"), Value: requestPayload(t, "park-fire", "2024-07-24", "2024-08-05", "rbr", "rgb_post_fire")},
	))

	metrics := observability.NewMetricsForTesting()
	imagery := &stubImagery{}
	store := blobstore.NewStore(memblob.OpenBucket(nil), "mem://products", 0)
	t.Cleanup(func() { _ = store.Close() })

	assessor := assessment.NewPostFireAssessment(imagery, discardLogger(), metrics)
	service := assessment.NewService(assessor, store, discardLogger(), metrics)
	runner := assessment.NewCachedService(service, 10, time.Hour, metrics)

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(reader, pipeline.NewTransformer(runner, discardLogger()), writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	first := readReport(ctx, t, consumer)
	second := readReport(ctx, t, consumer)

	pipelineCancel()
	require.NoError(t, <-errCh)
	require.NoError(t, p.CheckReadiness(ctx))

	// Requests in a batch are processed in order.
	assert.Equal(t, "backwards", first.Key)
	assert.Equal(t, domain.StatusFailed, first.Report.Status)
	assert.Contains(t, first.Report.Error, "must be earlier")

	assert.Equal(t, "park-fire", second.Key)
	assert.Equal(t, domain.StatusSucceeded, second.Report.Status)
	assert.InDelta(t, 80, second.Report.BurnedHectares, 1e-9)
	require.Len(t, second.Report.Products, 3)
	assert.Equal(t, 3, imagery.renderCount())

	objects, err := store.List(ctx, "assessments/park-fire/")
	require.NoError(t, err)
	assert.Len(t, objects, 3)
	for _, sp := range second.Report.Products {
		assert.Contains(t, sp.URI, "mem://products/assessments/park-fire/"+second.Report.RunID+"/")
	}

	// Only the two reports reach the sink; the poison message was skipped.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no third message on sink topic")
}
