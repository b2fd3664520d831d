// Command genmock decodes a file of raw report lines into a JSON fixture of
// observations. It uses the actual metar package so the fixture matches real
// pipeline output.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -lines data/mock/metar_lines.txt \
//	  -out data/mock/metar_observations.json
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/metar-etl-service/internal/metar"
)

// baseDate supplies the year and month for the captured lines.
var baseDate = time.Date(2024, time.June, 16, 0, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	linesPath := flag.String("lines", "", "file of raw report lines, one per line")
	out := flag.String("out", "", "output path for the observation JSON fixture")
	flag.Parse()

	if *linesPath == "" || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -lines, -out")
	}

	// Set a fixed clock for reproducible ProcessedAt timestamps.
	metar.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.June, 16, 6, 0, 0, 0, time.UTC),
	))
	defer metar.SetClock(nil)

	lines, err := readLines(*linesPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", *linesPath, err)
	}

	observations := make([]metar.Observation, 0, len(lines))
	for i, line := range lines {
		report, err := metar.Decode(line, baseDate)
		if err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		observations = append(observations, metar.Enrich(report))
	}
	log.Printf("decoded: %d reports", len(observations))

	if err := writeJSON(*out, observations); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", *out)

	printStats(observations)
	return nil
}

// readLines returns the non-empty lines of path, skipping # comments.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(observations []metar.Observation) {
	categories := map[string]int{}
	types := map[string]int{}
	var gusting, withWeather int
	for _, obs := range observations {
		categories[orNone(obs.FlightCategory)]++
		types[orNone(string(obs.StationType))]++
		if obs.Wind != nil && obs.Wind.Gusting {
			gusting++
		}
		if len(obs.PresentWeather) > 0 {
			withWeather++
		}
	}

	fmt.Println("\nflight category:")
	printCounts(categories)
	fmt.Println("station type:")
	printCounts(types)
	fmt.Printf("gusting: %d, present weather: %d\n", gusting, withWeather)
}

func printCounts(counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-6s %d\n", k, counts[k])
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
