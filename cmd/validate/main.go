// Command validate checks a generated observation fixture against the raw
// lines it was produced from. It re-decodes every line and verifies counts,
// deterministic IDs, derived fields and JSON shape.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -lines data/mock/metar_lines.txt \
//	  -fixture data/mock/metar_observations.json
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/metar-etl-service/internal/metar"
)

var baseDate = time.Date(2024, time.June, 16, 0, 0, 0, 0, time.UTC)

var flightCategories = map[string]bool{
	metar.FlightCategoryVFR:  true,
	metar.FlightCategoryMVFR: true,
	metar.FlightCategoryIFR:  true,
	metar.FlightCategoryLIFR: true,
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	linesPath := flag.String("lines", "", "file of raw report lines")
	fixturePath := flag.String("fixture", "", "observation JSON fixture produced by genmock")
	flag.Parse()

	if *linesPath == "" || *fixturePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*linesPath, *fixturePath); code != 0 {
		os.Exit(code)
	}
}

func run(linesPath, fixturePath string) int {
	// Set a fixed clock matching genmock.
	metar.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.June, 16, 6, 0, 0, 0, time.UTC),
	))
	defer metar.SetClock(nil)

	fmt.Println("=== METAR Fixture Validation ===")
	fmt.Println()

	lines, err := readLines(linesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load lines: %v\n", err)
		return 1
	}

	data, err := os.ReadFile(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fixture: %v\n", err)
		return 1
	}
	var fixture []metar.Observation
	if err := json.Unmarshal(data, &fixture); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse fixture: %v\n", err)
		return 1
	}
	var shapes []map[string]any
	if err := json.Unmarshal(data, &shapes); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse fixture: %v\n", err)
		return 1
	}

	decoded, decodePhase := validateDecode(lines)
	phases := []*phase{
		decodePhase,
		validateParity(decoded, fixture),
		validateDerived(fixture),
		validateShape(shapes),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-32s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d lines, %d fixture observations\n", len(lines), len(fixture))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	return 0
}

func validateDecode(lines []string) ([]metar.Observation, *phase) {
	p := &phase{name: "Every line decodes"}
	out := make([]metar.Observation, 0, len(lines))
	for i, line := range lines {
		report, err := metar.Decode(line, baseDate)
		if err != nil {
			p.errorf("line %d: %v", i+1, err)
			continue
		}
		out = append(out, metar.Enrich(report))
	}
	return out, p
}

func validateParity(decoded, fixture []metar.Observation) *phase {
	p := &phase{name: "Fixture matches decode"}
	if len(decoded) != len(fixture) {
		p.errorf("count: decoded %d, fixture %d", len(decoded), len(fixture))
		return p
	}
	for i := range decoded {
		want, got := decoded[i], fixture[i]
		if want.ID != got.ID {
			p.errorf("%d %s: id %s, fixture %s", i, want.Station, want.ID, got.ID)
		}
		if want.Raw != got.Raw {
			p.errorf("%d %s: raw text differs", i, want.Station)
		}
		if want.FlightCategory != got.FlightCategory {
			p.errorf("%d %s: category %q, fixture %q", i, want.Station, want.FlightCategory, got.FlightCategory)
		}
		if !want.ObservedAt.Equal(got.ObservedAt) {
			p.errorf("%d %s: observed_at %s, fixture %s", i, want.Station, want.ObservedAt, got.ObservedAt)
		}
	}
	return p
}

func validateDerived(fixture []metar.Observation) *phase {
	p := &phase{name: "Derived fields consistent"}
	for _, obs := range fixture {
		if obs.FlightCategory != "" && !flightCategories[obs.FlightCategory] {
			p.errorf("%s: unknown flight category %q", obs.Station, obs.FlightCategory)
		}
		if obs.CeilingFt != nil && len(obs.CloudLayers) == 0 {
			p.errorf("%s: ceiling without cloud layers", obs.Station)
		}
		if obs.Visibility == "" && obs.VisibilityMiles != nil {
			p.errorf("%s: visibility_sm without visibility", obs.Station)
		}
		if obs.DewPoint > obs.Temperature {
			p.errorf("%s: dew point %d above temperature %d", obs.Station, obs.DewPoint, obs.Temperature)
		}
		if !strings.HasPrefix(obs.ID, obs.Station+"-") {
			p.errorf("%s: id %s lacks station prefix", obs.Station, obs.ID)
		}
	}
	return p
}

// validateShape checks that list fields are always present as arrays.
func validateShape(shapes []map[string]any) *phase {
	p := &phase{name: "JSON list fields present"}
	for i, m := range shapes {
		for _, key := range []string{"present_weather", "cloud_layers", "remarks"} {
			if _, ok := m[key].([]any); !ok {
				p.errorf("record %d (%v): %s is not an array", i, m["station"], key)
			}
		}
	}
	return p
}

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
