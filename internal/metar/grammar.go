package metar

import (
	"regexp"
	"strings"
	"sync"
)

// Field names produced by Extract.
const (
	FieldStation       = "station"
	FieldTime          = "time"
	FieldStationType   = "station_type"
	FieldWind          = "wind"
	FieldWindVariation = "wind_variation"
	FieldVisibility    = "visibility"
	FieldRVR           = "rvr"
	FieldWeather       = "weather"
	FieldTemperature   = "temperature"
	FieldDewPoint      = "dew_point"
	FieldAltimeter     = "altimeter"
	FieldRemarks       = "remarks"
)

// fieldNames lists every named group in grammar order.
var fieldNames = []string{
	FieldStation, FieldTime, FieldStationType, FieldWind, FieldWindVariation, FieldVisibility,
	FieldRVR, FieldWeather, FieldTemperature, FieldDewPoint, FieldAltimeter, FieldRemarks,
}

// reportGrammar is compiled on first use and shared read-only afterwards.
//
// Each optional segment is a (?:(?P<name>...)\s+)? group that consumes its own
// separator, so when a segment is absent the next token is left for the
// segment it belongs to. The weather/cloud run takes slash-free tokens only;
// the first token containing a slash must be the temperature/dew point anchor.
var reportGrammar = sync.OnceValue(func() *regexp.Regexp {
	pattern := strings.Join([]string{
		`^\s*`,
		`(?P<station>[A-Z0-9]{4})\s+`,
		`(?P<time>\d{6}Z)\s+`,
		`(?:(?P<station_type>AUTO|COR|RTD|CC[A-Z])\s+)?`,
		`(?:(?P<wind>(?:VRB|\d{3})\d{2}(?:G\d{2})?KT)\s+)?`,
		`(?:(?P<wind_variation>\d{3}V\d{3})\s+)?`,
		`(?:(?P<visibility>`,
		`M\d/\d{1,2}SM`,
		`|P\d{1,2}SM`,
		`|\d\s\d/\d{1,2}SM`,
		`|\d/\d{1,2}SM`,
		`|\d*\.\d+SM`,
		`|\d{1,3}SM`,
		`|\d{4}`,
		`)\s+)?`,
		`(?:(?P<rvr>R\d{2}[LRC]?/[PM]?\d{4}(?:V[PM]?\d{4})?FT(?:/[UDN])?`,
		`(?:\s+R\d{2}[LRC]?/[PM]?\d{4}(?:V[PM]?\d{4})?FT(?:/[UDN])?)*)\s+)?`,
		`(?P<weather>(?:[^\s/]+\s+)*)`,
		`(?P<temperature>M?\d{2})/(?P<dew_point>M?\d{2})`,
		`(?:\s+(?P<altimeter>A\d{4}))?`,
		`(?:\s+(?P<remarks>RMK(?:\s.*)?))?`,
		`\s*$`,
	}, "")
	return regexp.MustCompile(pattern)
})

// Fields maps field names to the raw substrings matched for them. Segments
// that did not participate in the match are absent from the map.
type Fields map[string]string

// Get returns the raw text for name and whether the segment was present.
func (f Fields) Get(name string) (string, bool) {
	v, ok := f[name]
	return v, ok
}

// Extract applies the report grammar to one line. It enforces field order and
// optionality only; no field is interpreted. A line that does not match
// returns ErrUngrammatical.
func Extract(line string) (Fields, error) {
	re := reportGrammar()
	idx := re.FindStringSubmatchIndex(line)
	if idx == nil {
		return nil, ErrUngrammatical
	}

	fields := make(Fields, len(fieldNames))
	for _, name := range fieldNames {
		i := re.SubexpIndex(name)
		start, end := idx[2*i], idx[2*i+1]
		if start < 0 {
			continue
		}
		fields[name] = line[start:end]
	}
	return fields, nil
}
