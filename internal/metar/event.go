package metar

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RawEvent is one raw report line as delivered by a source (a Kafka message or
// a NOAA poll). Value holds the report text.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form handed to sinks.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Header keys set by SerializeObservation.
const (
	HeaderStation        = "station"
	HeaderObservedAt     = "observed_at"
	HeaderFlightCategory = "flight_category"
	HeaderProcessedAt    = "processed_at"
)

// SerializeObservation encodes an observation as JSON keyed by station.
func SerializeObservation(obs Observation) (OutputEvent, error) {
	value, err := json.Marshal(obs)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("marshal observation %s: %w", obs.ID, err)
	}

	headers := map[string]string{
		HeaderStation:     obs.Station,
		HeaderObservedAt:  obs.ObservedAt.UTC().Format(time.RFC3339),
		HeaderProcessedAt: obs.ProcessedAt.UTC().Format(time.RFC3339),
	}
	if obs.FlightCategory != "" {
		headers[HeaderFlightCategory] = obs.FlightCategory
	}

	return OutputEvent{
		Key:     []byte(obs.Station),
		Value:   value,
		Headers: headers,
	}, nil
}
