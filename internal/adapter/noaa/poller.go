package noaa

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/metar-etl-service/internal/metar"
)

// SourceTopic is the Topic set on events produced by the Poller.
const SourceTopic = "noaa"

// Poller is a batch extractor that fetches the current report of every
// configured station once per interval. A station whose report line matches
// the last committed line is not emitted again. Committing an event records
// its line, so a report whose load failed is re-emitted on the next poll.
type Poller struct {
	fetcher  metar.ReportFetcher
	stations []string
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger

	mu       sync.Mutex
	pending  []metar.RawEvent
	lastSeen map[string]string
	nextPoll time.Time
	polled   bool
}

// NewPoller creates a Poller over the given stations.
func NewPoller(fetcher metar.ReportFetcher, stations []string, interval time.Duration, logger *slog.Logger) *Poller {
	return newPoller(fetcher, stations, interval, clockwork.NewRealClock(), logger)
}

func newPoller(fetcher metar.ReportFetcher, stations []string, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Poller {
	return &Poller{
		fetcher:  fetcher,
		stations: stations,
		interval: interval,
		clock:    clock,
		logger:   logger,
		lastSeen: make(map[string]string, len(stations)),
	}
}

// ExtractBatch returns up to batchSize new report lines. When no lines are
// queued it waits for the next poll, so the first call polls immediately and
// later calls block for up to one interval.
func (p *Poller) ExtractBatch(ctx context.Context, batchSize int) ([]metar.RawEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pending) == 0 {
		if err := p.waitForPoll(ctx); err != nil {
			return nil, err
		}
		p.poll(ctx)
	}

	n := min(batchSize, len(p.pending))
	batch := p.pending[:n:n]
	p.pending = p.pending[n:]
	return batch, nil
}

func (p *Poller) waitForPoll(ctx context.Context) error {
	if !p.polled {
		return nil
	}
	wait := p.nextPoll.Sub(p.clock.Now())
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.clock.After(wait):
		return nil
	}
}

// poll fetches every station once. Failures are logged and skipped; one
// unreachable station never blocks the others.
func (p *Poller) poll(ctx context.Context) {
	now := p.clock.Now()
	p.polled = true
	p.nextPoll = now.Add(p.interval)

	var fresh, failed int
	for _, station := range p.stations {
		if ctx.Err() != nil {
			return
		}
		line, err := p.fetcher.FetchReport(ctx, station)
		if err != nil {
			failed++
			level := slog.LevelWarn
			if errors.Is(err, metar.ErrStationNotFound) {
				level = slog.LevelInfo
			}
			p.logger.Log(ctx, level, "station fetch failed", "station", station, "error", err)
			continue
		}
		if p.lastSeen[station] == line {
			continue
		}
		fresh++
		p.pending = append(p.pending, metar.RawEvent{
			Key:       []byte(station),
			Value:     []byte(line),
			Topic:     SourceTopic,
			Timestamp: now,
			Commit:    p.commitFunc(station, line),
		})
	}

	p.logger.Debug("stations polled",
		"stations", len(p.stations),
		"new_reports", fresh,
		"failed", failed,
		"next_poll", p.nextPoll,
	)
}

// commitFunc returns the event commit that records line as the last delivered
// report for station.
func (p *Poller) commitFunc(station, line string) func(context.Context) error {
	return func(context.Context) error {
		p.mu.Lock()
		p.lastSeen[station] = line
		p.mu.Unlock()
		return nil
	}
}
