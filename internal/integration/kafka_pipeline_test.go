//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/metar-etl-service/internal/adapter/kafka"
	"github.com/couchcryptid/metar-etl-service/internal/adapter/sqlite"
	"github.com/couchcryptid/metar-etl-service/internal/config"
	"github.com/couchcryptid/metar-etl-service/internal/metar"
	"github.com/couchcryptid/metar-etl-service/internal/observability"
	"github.com/couchcryptid/metar-etl-service/internal/pipeline"
)

const (
	testSourceTopic = "test-source"
	testSinkTopic   = "test-sink"
)

// observationMessage holds a deserialized message read from the sink topic.
type observationMessage struct {
	Observation metar.Observation
	Key         string
	Headers     map[string]string
}

// readObservation reads a single message from the sink consumer and deserializes it.
func readObservation(ctx context.Context, t *testing.T, consumer *kafkago.Reader) observationMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var obs metar.Observation
	require.NoError(t, json.Unmarshal(msg.Value, &obs), "unmarshal sink message")

	return observationMessage{
		Observation: obs,
		Key:         string(msg.Key),
		Headers:     headers,
	}
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
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

var observedMonth = time.Date(2024, time.June, 20, 0, 0, 0, 0, time.UTC)

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader and
// kafka.Writer round-trip a report through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	line := loadMockLines(t)[0] // KSFO
	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte("KSFO"),
		Value: []byte(line),
		Time:  observedMonth,
	}))

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []metar.RawEvent
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("KSFO"), raw.Key)
	assert.Equal(t, line, string(raw.Value))
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	out, err := pipeline.NewTransformer(discardLogger()).Transform(ctx, raw)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []metar.OutputEvent{out}))

	om := readObservation(ctx, t, sinkConsumer(t, broker))
	assert.Equal(t, "KSFO", om.Key)
	assert.Equal(t, "VFR", om.Headers[metar.HeaderFlightCategory])
	assert.Equal(t, "2024-06-16T04:56:00Z", om.Headers[metar.HeaderObservedAt])
	_, err = time.Parse(time.RFC3339, om.Headers[metar.HeaderProcessedAt])
	assert.NoError(t, err, "processed_at should be valid RFC3339")

	assert.Equal(t, "KSFO", om.Observation.Station)
	require.NotNil(t, om.Observation.Wind)
	assert.Equal(t, 33, om.Observation.Wind.Gust)
	assert.Equal(t, []string{"FEW009", "SCT200"}, om.Observation.CloudLayers)
}

// TestPipelineEndToEnd wires Reader, Transformer and a MultiLoader over the
// Kafka writer and the SQLite store, and checks every mock line arrives in both.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	lines := loadMockLines(t)
	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	msgs := make([]kafkago.Message, 0, len(lines))
	for _, line := range lines {
		msgs = append(msgs, kafkago.Message{Key: []byte(line[:4]), Value: []byte(line), Time: observedMonth})
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "metar.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	metrics := observability.NewMetricsForTesting()
	loader := pipeline.NewMultiLoader(metrics, discardLogger(), writer, store)
	p := pipeline.New(reader, pipeline.NewTransformer(discardLogger()), loader, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	received := make(map[string]observationMessage, len(lines))
	for len(received) < len(lines) {
		om := readObservation(ctx, t, consumer)
		received[om.Key] = om
	}

	pipelineCancel()
	require.NoError(t, <-errCh)
	require.NoError(t, p.CheckReadiness(ctx))

	categories := map[string]int{}
	for station, om := range received {
		categories[om.Observation.FlightCategory]++
		assert.Equal(t, station, om.Observation.Station)
		assert.Equal(t, station, om.Headers[metar.HeaderStation])
		assert.NotEmpty(t, om.Observation.ID)

		stored, err := store.Latest(ctx, station)
		require.NoError(t, err, "station %s missing from sqlite", station)
		assert.Equal(t, om.Observation.ID, stored.ID)
	}
	assert.Equal(t, 1, categories[metar.FlightCategoryMVFR], "MVFR count")
	assert.Equal(t, 1, categories[metar.FlightCategoryIFR], "IFR count")
	assert.Equal(t, 2, categories[metar.FlightCategoryLIFR], "LIFR count")

	stations, err := store.Stations(ctx)
	require.NoError(t, err)
	assert.Len(t, stations, len(lines))

	mlp := received["KMLP"].Observation
	require.NotNil(t, mlp.CeilingFt)
	assert.Equal(t, 400, *mlp.CeilingFt)
	assert.Equal(t, []string{"BR"}, mlp.PresentWeather)
	assert.Equal(t, metar.StationTypeAutomated, mlp.StationType)
}

// TestPipelineDecodeError verifies that an undecodable line is skipped and the
// pipeline continues processing valid reports.
func TestPipelineDecodeError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-poison")

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not a weather report"), Time: observedMonth},
		kafkago.Message{Key: []byte("KBAD"), Value: []byte("KBAD 169960Z 27010KT 10SM CLR 15/10 A2999"), Time: observedMonth},
		kafkago.Message{Key: []byte("KSFO"), Value: []byte(loadMockLines(t)[0]), Time: observedMonth},
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(reader, pipeline.NewTransformer(discardLogger()), writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	om := readObservation(ctx, t, consumer)
	assert.Equal(t, "KSFO", om.Observation.Station)

	// Verify no second message arrives (the bad lines were skipped).
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
