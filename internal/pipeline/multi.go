package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/metar-etl-service/internal/metar"
	"github.com/couchcryptid/metar-etl-service/internal/observability"
)

// NamedLoader is a BatchLoader that identifies itself in logs and metrics.
type NamedLoader interface {
	BatchLoader
	Name() string
}

// MultiLoader fans a batch out to every configured sink in order. Every sink
// is attempted even when an earlier one fails; the failures are joined. A
// failed batch is not committed, so the source delivers those reports again
// (Kafka after a restart or rebalance, the NOAA poller on its next poll) and
// sinks that already took them must tolerate the rewrite.
type MultiLoader struct {
	loaders []NamedLoader
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewMultiLoader creates a MultiLoader over loaders.
func NewMultiLoader(metrics *observability.Metrics, logger *slog.Logger, loaders ...NamedLoader) *MultiLoader {
	return &MultiLoader{loaders: loaders, metrics: metrics, logger: logger}
}

// LoadBatch writes events to each sink.
func (m *MultiLoader) LoadBatch(ctx context.Context, events []metar.OutputEvent) error {
	var errs []error
	for _, l := range m.loaders {
		if err := l.LoadBatch(ctx, events); err != nil {
			m.metrics.SinkErrors.WithLabelValues(l.Name()).Inc()
			m.logger.Warn("sink load failed", "sink", l.Name(), "error", err, "batch_size", len(events))
			errs = append(errs, fmt.Errorf("%s: %w", l.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Names lists the configured sinks.
func (m *MultiLoader) Names() []string {
	names := make([]string, len(m.loaders))
	for i, l := range m.loaders {
		names[i] = l.Name()
	}
	return names
}
