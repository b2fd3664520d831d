// Command metar fetches the current report for a station and prints the
// decoded observation as JSON.
//
// Usage:
//
//	metar KSFO
//	metar -raw "KSFO 160456Z 27024G33KT 10SM FEW009 15/10 A2999" KSFO
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/lmittmann/tint"

	"github.com/couchcryptid/metar-etl-service/internal/adapter/noaa"
	"github.com/couchcryptid/metar-etl-service/internal/config"
	"github.com/couchcryptid/metar-etl-service/internal/metar"
	"github.com/couchcryptid/metar-etl-service/internal/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	raw := flag.String("raw", "", "decode this report line instead of fetching one")
	baseURL := flag.String("base-url", config.DefaultNOAABaseURL, "NOAA station file base URL")
	timeout := flag.Duration("timeout", 10*time.Second, "fetch timeout")
	verbose := flag.Bool("v", false, "log fetch details to stderr")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: metar [flags] STATION\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.Kitchen}))

	station, err := metar.NormalizeStation(flag.Arg(0))
	if err != nil {
		logger.Error("bad station", "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	line := *raw
	if line == "" {
		client := noaa.NewClient(*baseURL, *timeout, 2, observability.NewMetrics(), logger)
		line, err = client.FetchReport(ctx, station)
		if errors.Is(err, metar.ErrStationNotFound) {
			logger.Error("no report for station", "station", station)
			return 1
		}
		if err != nil {
			logger.Error("fetch failed", "station", station, "error", err)
			return 1
		}
	}

	report, err := metar.Parse(line)
	if err != nil {
		logger.Error("decode failed", "kind", metar.ErrorKind(err), "error", err)
		return 1
	}
	if report.Station != station {
		logger.Warn("report station differs from requested", "requested", station, "got", report.Station)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(metar.Enrich(report)); err != nil {
		logger.Error("write output", "error", err)
		return 1
	}
	return 0
}
