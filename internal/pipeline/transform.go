package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/metar-etl-service/internal/metar"
)

// MetarTransformer implements Transformer by decoding the raw line, deriving
// the observation fields and serializing the result.
type MetarTransformer struct {
	logger *slog.Logger
}

// NewTransformer creates a MetarTransformer.
func NewTransformer(logger *slog.Logger) *MetarTransformer {
	return &MetarTransformer{logger: logger}
}

// Transform decodes raw.Value. The event timestamp supplies the year and month
// of the observation; events without one fall back to the current time.
func (t *MetarTransformer) Transform(_ context.Context, raw metar.RawEvent) (metar.OutputEvent, error) {
	var (
		report metar.Report
		err    error
	)
	if raw.Timestamp.IsZero() {
		report, err = metar.Parse(string(raw.Value))
	} else {
		report, err = metar.Decode(string(raw.Value), raw.Timestamp.UTC())
	}
	if err != nil {
		return metar.OutputEvent{}, fmt.Errorf("decode %q: %w", raw.Key, err)
	}

	obs := metar.Enrich(report)
	t.logger.Debug("report decoded", "station", obs.Station, "id", obs.ID, "flight_category", obs.FlightCategory)
	return metar.SerializeObservation(obs)
}
