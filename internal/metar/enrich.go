package metar

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FAA flight categories.
const (
	FlightCategoryVFR  = "VFR"
	FlightCategoryMVFR = "MVFR"
	FlightCategoryIFR  = "IFR"
	FlightCategoryLIFR = "LIFR"
)

const metersPerStatuteMile = 1609.344

// Enrich derives the values a consumer usually wants from a decoded report:
// a deterministic ID, the ceiling, visibility in statute miles and the flight
// category. ProcessedAt comes from the package clock.
func Enrich(report Report) Observation {
	obs := Observation{
		ID:     generateID(report.Station, report.ObservedAt, report.Raw),
		Report: report,
	}
	if ceiling, ok := ceilingFt(report.CloudLayers); ok {
		obs.CeilingFt = &ceiling
	}
	if miles, ok := VisibilityMiles(report.Visibility); ok {
		obs.VisibilityMiles = &miles
	}
	obs.FlightCategory = deriveFlightCategory(obs.CeilingFt, obs.VisibilityMiles)
	obs.ProcessedAt = clock.Now().UTC()
	return obs
}

// generateID hashes the station, observation time and raw text. Reprocessing
// the same line yields the same ID.
func generateID(station string, observedAt time.Time, raw string) string {
	input := fmt.Sprintf("%s|%s|%s", station, observedAt.UTC().Format(time.RFC3339), raw)
	hash := sha256.Sum256([]byte(input))
	return station + "-" + hex.EncodeToString(hash[:8])
}

// ceilingFt returns the height of the lowest broken, overcast or vertical
// visibility layer.
func ceilingFt(layers []string) (int, bool) {
	lowest, found := 0, false
	for _, code := range layers {
		layer, ok := ParseCloudLayer(code)
		if !ok || !layer.Ceiling() {
			continue
		}
		if !found || layer.HeightFt < lowest {
			lowest, found = layer.HeightFt, true
		}
	}
	return lowest, found
}

// VisibilityMiles interprets a decoded visibility display string in statute
// miles. Bounded values ("< 1/4", "> 6") yield their bound. Four-digit meter
// codes are converted; 9999 is treated as 10 km.
func VisibilityMiles(display string) (float64, bool) {
	s := strings.TrimSpace(display)
	if s == "" {
		return 0, false
	}
	s = strings.TrimSpace(strings.TrimLeft(s, "<>"))

	if len(s) == 4 && !strings.ContainsAny(s, "./ ") {
		meters, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return float64(meters) / metersPerStatuteMile, true
	}

	var total float64
	for _, part := range strings.Fields(s) {
		v, ok := parseMilesPart(part)
		if !ok {
			return 0, false
		}
		total += v
	}
	return total, true
}

func parseMilesPart(part string) (float64, bool) {
	num, den, isFraction := strings.Cut(part, "/")
	if !isFraction {
		v, err := strconv.ParseFloat(part, 64)
		return v, err == nil
	}
	n, errN := strconv.Atoi(num)
	d, errD := strconv.Atoi(den)
	if errN != nil || errD != nil || d == 0 {
		return 0, false
	}
	return float64(n) / float64(d), true
}

// deriveFlightCategory applies the FAA ceiling and visibility thresholds:
//   - LIFR: ceiling below 500 ft or visibility below 1 SM
//   - IFR: ceiling below 1000 ft or visibility below 3 SM
//   - MVFR: ceiling 1000-3000 ft or visibility 3-5 SM
//   - VFR: otherwise
//
// The worse of the two conditions wins. Returns "" when neither is known.
func deriveFlightCategory(ceiling *int, visibility *float64) string {
	if ceiling == nil && visibility == nil {
		return ""
	}
	below := func(ft int, sm float64) bool {
		return (ceiling != nil && *ceiling < ft) || (visibility != nil && *visibility < sm)
	}
	switch {
	case below(500, 1):
		return FlightCategoryLIFR
	case below(1000, 3):
		return FlightCategoryIFR
	case (ceiling != nil && *ceiling <= 3000) || (visibility != nil && *visibility <= 5):
		return FlightCategoryMVFR
	default:
		return FlightCategoryVFR
	}
}
