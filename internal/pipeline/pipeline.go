package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/metar-etl-service/internal/metar"
	"github.com/couchcryptid/metar-etl-service/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]metar.RawEvent, error)
}

// Transformer converts a raw event into an output event.
type Transformer interface {
	Transform(ctx context.Context, raw metar.RawEvent) (metar.OutputEvent, error)
}

// BatchLoader writes multiple output events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []metar.OutputEvent) error
}

// Pipeline orchestrates the extract-transform-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil if the pipeline has loaded at least one
// observation, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not loaded any observations yet")
	}
	return nil
}

// Run executes the batch ETL loop until the context is cancelled. A failed
// cycle is retried after a growing delay; the delay resets once a cycle
// completes.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	delay := retryDelay{next: minRetryDelay}
	for ctx.Err() == nil {
		if err := p.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Error("pipeline cycle failed", "error", err, "retry_in", delay.next)
			if !delay.wait(ctx, p.clock) {
				break
			}
			continue
		}
		delay.reset()
	}

	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

// cycle extracts one batch, decodes it, loads the observations and commits the
// events behind them. Nothing decoded from the batch is committed unless the
// load succeeds.
func (p *Pipeline) cycle(ctx context.Context) error {
	start := p.clock.Now()

	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("extract batch: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}
	p.metrics.MessagesConsumed.Add(float64(len(batch)))
	p.metrics.BatchSize.Observe(float64(len(batch)))

	accepted, observations := p.decode(ctx, batch)
	if len(observations) == 0 {
		return nil
	}

	if err := p.loader.LoadBatch(ctx, observations); err != nil {
		return fmt.Errorf("load %d observations: %w", len(observations), err)
	}
	p.metrics.MessagesProduced.Add(float64(len(observations)))
	p.commit(ctx, accepted...)

	p.metrics.BatchProcessingDuration.Observe(p.clock.Since(start).Seconds())
	p.ready.Store(true)
	return nil
}

// decode transforms every event in the batch and returns the accepted events
// alongside their observations. A line that fails to decode is terminal: it is
// counted by kind, logged and committed so the source never redelivers it.
func (p *Pipeline) decode(ctx context.Context, batch []metar.RawEvent) ([]metar.RawEvent, []metar.OutputEvent) {
	accepted := make([]metar.RawEvent, 0, len(batch))
	observations := make([]metar.OutputEvent, 0, len(batch))

	for _, raw := range batch {
		out, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			kind := metar.ErrorKind(err)
			p.logger.Warn("decode failed, skipping report",
				"error", err,
				"kind", kind,
				"key", string(raw.Key),
				"topic", raw.Topic,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			p.metrics.DecodeFailures.WithLabelValues(kind).Inc()
			p.commit(ctx, raw)
			continue
		}
		accepted = append(accepted, raw)
		observations = append(observations, out)
	}
	return accepted, observations
}

// commit acknowledges events whose source supports it. A failed commit is
// logged only; the source redelivers and the sinks absorb the rewrite.
func (p *Pipeline) commit(ctx context.Context, events ...metar.RawEvent) {
	for _, ev := range events {
		if ev.Commit == nil {
			continue
		}
		if err := ev.Commit(ctx); err != nil {
			p.logger.Warn("commit failed", "error", err,
				"key", string(ev.Key), "topic", ev.Topic, "partition", ev.Partition, "offset", ev.Offset)
		}
	}
}

const (
	minRetryDelay = 200 * time.Millisecond
	maxRetryDelay = 5 * time.Second
)

// retryDelay doubles from minRetryDelay up to maxRetryDelay.
type retryDelay struct {
	next time.Duration
}

func (d *retryDelay) reset() { d.next = minRetryDelay }

// wait sleeps for the current delay and grows it. Returns false if ctx ends first.
func (d *retryDelay) wait(ctx context.Context, clock clockwork.Clock) bool {
	select {
	case <-ctx.Done():
		return false
	case <-clock.After(d.next):
	}
	d.next = min(d.next*2, maxRetryDelay)
	return true
}
