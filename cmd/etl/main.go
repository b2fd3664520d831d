package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/metar-etl-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/metar-etl-service/internal/adapter/kafka"
	mqttadapter "github.com/couchcryptid/metar-etl-service/internal/adapter/mqtt"
	"github.com/couchcryptid/metar-etl-service/internal/adapter/noaa"
	"github.com/couchcryptid/metar-etl-service/internal/adapter/sqlite"
	"github.com/couchcryptid/metar-etl-service/internal/config"
	"github.com/couchcryptid/metar-etl-service/internal/observability"
	"github.com/couchcryptid/metar-etl-service/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// closers run in reverse order on shutdown.
	var closers []namedCloser
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Error("close error", "component", closers[i].name, "error", err)
			}
		}
		logger.Info("shutdown complete")
	}()

	// The NOAA client backs both the poller source and GET /metar/{station}.
	client := noaa.NewClient(cfg.NOAABaseURL, cfg.NOAATimeout, cfg.NOAAMaxRetries, metrics, logger)
	fetcher := noaa.NewCachedFetcher(client, cfg.NOAACacheSize, cfg.NOAACacheTTL, metrics)

	var extractor pipeline.BatchExtractor
	switch cfg.Source {
	case config.SourceNOAA:
		extractor = noaa.NewPoller(client, cfg.Stations, cfg.PollInterval, logger)
		logger.Info("noaa source enabled", "stations", len(cfg.Stations), "interval", cfg.PollInterval)
	default:
		reader := kafkaadapter.NewReader(cfg, logger)
		closers = append(closers, namedCloser{"kafka reader", reader})
		extractor = reader
		logger.Info("kafka source enabled", "topic", cfg.KafkaSourceTopic)
	}

	sinks, store, sinkClosers, err := buildSinks(cfg, logger)
	closers = append(closers, sinkClosers...)
	if err != nil {
		logger.Error("failed to initialize sinks", "error", err)
		return 1
	}

	loader := pipeline.NewMultiLoader(metrics, logger, sinks...)
	logger.Info("sinks enabled", "sinks", loader.Names())

	p := pipeline.New(extractor, pipeline.NewTransformer(logger), loader, logger, metrics, cfg.BatchSize)

	var observations httpadapter.ObservationStore
	if store != nil {
		observations = store
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, fetcher, observations, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	return 0
}

type namedCloser struct {
	name string
	io.Closer
}

// buildSinks creates every configured sink. The returned closers must be run
// even when err is non-nil.
func buildSinks(cfg *config.Config, logger *slog.Logger) ([]pipeline.NamedLoader, *sqlite.Store, []namedCloser, error) {
	var (
		sinks   []pipeline.NamedLoader
		closers []namedCloser
		store   *sqlite.Store
	)

	if cfg.KafkaSinkEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, writer)
		closers = append(closers, namedCloser{"kafka writer", writer})
	}

	if cfg.SQLitePath != "" {
		s, err := sqlite.NewStore(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, closers, err
		}
		store = s
		sinks = append(sinks, s)
		closers = append(closers, namedCloser{"sqlite store", s})
	}

	if cfg.MQTTBroker != "" {
		publisher := mqttadapter.NewPublisher(cfg, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := publisher.Connect(ctx); err != nil {
			return nil, nil, closers, err
		}
		sinks = append(sinks, publisher)
		closers = append(closers, namedCloser{"mqtt publisher", publisher})
	}

	return sinks, store, closers, nil
}
