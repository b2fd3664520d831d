package metar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fixed-width offsets of the numeric subfields. These groups have no
// delimiters, so they are sliced by position rather than split.
const (
	// DDHHMMZ
	timeDayOff, timeHourOff, timeMinuteOff = 0, 2, 4
	// dddssKT / dddssGggKT
	windDirOff, windSpeedOff, windGustOff = 0, 3, 6
	// VRBssKT
	windVariableSpeedOff = 3
	// dddVddd
	windVarFromOff, windVarToOff = 0, 4
)

// Decode turns one report line into a Report. now supplies the year and month
// of the observation time, which the report text does not encode. The first
// field that fails to decode aborts the whole record.
func Decode(line string, now time.Time) (Report, error) {
	fields, err := Extract(line)
	if err != nil {
		return Report{}, err
	}

	observedAt, err := decodeTime(fields[FieldTime], now)
	if err != nil {
		return Report{}, fieldError(FieldTime, fields[FieldTime], err)
	}

	report := Report{
		Raw:         strings.TrimSpace(line),
		Station:     fields[FieldStation],
		ObservedAt:  observedAt,
		StationType: decodeStationType(fields[FieldStationType]),
		Remarks:     decodeRemarks(fields[FieldRemarks]),
	}

	if raw, ok := fields.Get(FieldWind); ok {
		wind, err := decodeWind(raw)
		if err != nil {
			return Report{}, fieldError(FieldWind, raw, err)
		}
		report.Wind = &wind
	}

	if raw, ok := fields.Get(FieldWindVariation); ok {
		variation, err := decodeWindVariation(raw)
		if err != nil {
			return Report{}, fieldError(FieldWindVariation, raw, err)
		}
		report.WindVariation = &variation
	}

	if raw, ok := fields.Get(FieldVisibility); ok {
		vis, err := decodeVisibility(raw)
		if err != nil {
			return Report{}, fieldError(FieldVisibility, raw, err)
		}
		report.Visibility = vis
	}

	if raw, ok := fields.Get(FieldRVR); ok {
		report.RunwayVisualRange = strings.Join(strings.Fields(raw), " ")
	}

	if err := checkWeatherRun(fields[FieldWeather]); err != nil {
		return Report{}, err
	}
	report.PresentWeather, report.CloudLayers = SplitWeatherAndClouds(fields[FieldWeather])

	if report.Temperature, err = decodeTemperature(fields[FieldTemperature]); err != nil {
		return Report{}, fieldError(FieldTemperature, fields[FieldTemperature], err)
	}
	if report.DewPoint, err = decodeTemperature(fields[FieldDewPoint]); err != nil {
		return Report{}, fieldError(FieldDewPoint, fields[FieldDewPoint], err)
	}

	if raw, ok := fields.Get(FieldAltimeter); ok {
		alt, err := decodeAltimeter(raw)
		if err != nil {
			return Report{}, fieldError(FieldAltimeter, raw, err)
		}
		report.Altimeter = &alt
	}

	return report, nil
}

// Parse decodes a line using the package clock for the current time.
func Parse(line string) (Report, error) {
	return Decode(line, clock.Now().UTC())
}

// fixedInt parses raw[off:off+width] as an unsigned decimal integer.
func fixedInt(raw string, off, width int) (int, error) {
	if off+width > len(raw) {
		return 0, fmt.Errorf("want %d digits at offset %d", width, off)
	}
	s := raw[off : off+width]
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("non-digit %q at offset %d", s[i], off+i)
		}
	}
	return strconv.Atoi(s)
}

// decodeTime combines DDHHMMZ with the year and month of now.
func decodeTime(raw string, now time.Time) (time.Time, error) {
	if len(raw) != 7 || raw[6] != 'Z' {
		return time.Time{}, errors.New("want DDHHMMZ")
	}
	day, err := fixedInt(raw, timeDayOff, 2)
	if err != nil {
		return time.Time{}, err
	}
	hour, err := fixedInt(raw, timeHourOff, 2)
	if err != nil {
		return time.Time{}, err
	}
	minute, err := fixedInt(raw, timeMinuteOff, 2)
	if err != nil {
		return time.Time{}, err
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("time %02d:%02d out of range", hour, minute)
	}

	now = now.UTC()
	t := time.Date(now.Year(), now.Month(), day, hour, minute, 0, 0, time.UTC)
	// time.Date normalizes overflow (day 32 -> next month); reject instead.
	if day < 1 || t.Day() != day || t.Month() != now.Month() {
		return time.Time{}, fmt.Errorf("day %d invalid for %s %d", day, now.Month(), now.Year())
	}
	return t, nil
}

// decodeStationType maps the closed set {AUTO, COR}; anything else is unspecified.
func decodeStationType(raw string) StationType {
	switch strings.TrimSpace(raw) {
	case "AUTO":
		return StationTypeAutomated
	case "COR":
		return StationTypeCorrected
	default:
		return StationTypeUnspecified
	}
}

// decodeWind handles VRBssKT, dddssKT and dddssGggKT.
func decodeWind(raw string) (Wind, error) {
	body, ok := strings.CutSuffix(raw, "KT")
	if !ok {
		return Wind{}, errors.New("missing KT unit")
	}

	if strings.HasPrefix(body, "VRB") {
		if len(body) != windVariableSpeedOff+2 {
			return Wind{}, errors.New("want VRBssKT")
		}
		speed, err := fixedInt(body, windVariableSpeedOff, 2)
		if err != nil {
			return Wind{}, err
		}
		return Wind{Variable: true, VariableSpeed: speed}, nil
	}

	dir, err := fixedInt(body, windDirOff, 3)
	if err != nil {
		return Wind{}, err
	}
	if dir > 360 {
		return Wind{}, fmt.Errorf("direction %d out of range", dir)
	}
	speed, err := fixedInt(body, windSpeedOff, 2)
	if err != nil {
		return Wind{}, err
	}
	wind := Wind{Direction: dir, Speed: speed}

	switch {
	case len(body) == windGustOff-1:
	case len(body) == windGustOff+2 && body[windGustOff-1] == 'G':
		gust, err := fixedInt(body, windGustOff, 2)
		if err != nil {
			return Wind{}, err
		}
		wind.Gust = gust
		wind.Gusting = true
	default:
		return Wind{}, errors.New("want dddssKT or dddssGggKT")
	}
	return wind, nil
}

// decodeWindVariation handles dddVddd.
func decodeWindVariation(raw string) (WindVariation, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 7 || raw[3] != 'V' {
		return WindVariation{}, errors.New("want dddVddd")
	}
	from, err := fixedInt(raw, windVarFromOff, 3)
	if err != nil {
		return WindVariation{}, err
	}
	to, err := fixedInt(raw, windVarToOff, 3)
	if err != nil {
		return WindVariation{}, err
	}
	if from > 360 || to > 360 {
		return WindVariation{}, fmt.Errorf("variation %d-%d out of range", from, to)
	}
	return WindVariation{From: from, To: to}, nil
}

// decodeVisibility converts the raw group to its display string. Statute
// mile groups lose the SM suffix; meter codes pass through unchanged.
func decodeVisibility(raw string) (string, error) {
	raw = strings.Join(strings.Fields(raw), " ")
	body, statute := strings.CutSuffix(raw, "SM")
	if !statute {
		if len(body) != 4 {
			return "", errors.New("want 4-digit meter code")
		}
		if _, err := fixedInt(body, 0, 4); err != nil {
			return "", err
		}
		return body, nil
	}

	switch {
	case body == "":
		return "", errors.New("missing distance")
	case strings.HasPrefix(body, "M"):
		return "< " + body[1:], nil
	case strings.HasPrefix(body, "P"):
		return "> " + body[1:], nil
	}

	// N N/N carries its slash at offset 3, N/N at offset 1.
	switch {
	case len(body) >= 5 && body[3] == '/':
		return body[:1] + " " + body[2:], nil
	case len(body) >= 3 && body[1] == '/':
		return body, nil
	case strings.Contains(body, "/"):
		return "", errors.New("misplaced fraction")
	}
	if _, err := strconv.ParseFloat(body, 64); err != nil {
		return "", fmt.Errorf("distance %q not numeric", body)
	}
	return body, nil
}

// decodeTemperature handles [M]NN where M marks a negative value.
func decodeTemperature(raw string) (int, error) {
	negative := strings.HasPrefix(raw, "M")
	digits := strings.TrimPrefix(raw, "M")
	if len(digits) != 2 {
		return 0, errors.New("want [M]NN")
	}
	v, err := fixedInt(digits, 0, 2)
	if err != nil {
		return 0, err
	}
	if negative {
		v = -v
	}
	return v, nil
}

// decodeAltimeter handles ANNNN.
func decodeAltimeter(raw string) (int, error) {
	digits, ok := strings.CutPrefix(strings.TrimSpace(raw), "A")
	if !ok || len(digits) != 4 {
		return 0, errors.New("want ANNNN")
	}
	return fixedInt(digits, 0, 4)
}

// decodeRemarks splits the remarks section into tokens without the RMK marker.
func decodeRemarks(raw string) []string {
	remarks := []string{}
	for _, tok := range strings.Fields(raw) {
		if tok == "RMK" {
			continue
		}
		remarks = append(remarks, tok)
	}
	return remarks
}
