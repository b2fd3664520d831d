package metar

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// cloudGrammar matches exactly one cloud-layer token.
var cloudGrammar = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`^(?:(?:FEW|SCT|BKN|OVC)\d{3}(?:CB|TCU)?|VV\d{3}|CLR|SKC|CAVOK)$`)
})

// IsCloudToken reports whether tok is a cloud layer or sky-clear sentinel.
func IsCloudToken(tok string) bool {
	return cloudGrammar().MatchString(tok)
}

// weatherGrammar matches exactly one present-weather group: an optional
// intensity, an optional VC proximity, then a descriptor and/or phenomena.
var weatherGrammar = sync.OnceValue(func() *regexp.Regexp {
	const phenomena = `(?:DZ|RA|SN|SG|IC|PL|GR|GS|UP|BR|FG|FU|VA|DU|SA|HZ|PY|PO|SQ|FC|SS|DS)`
	return regexp.MustCompile(`^(?:[-+]?(?:VC)?(?:(?:MI|PR|BC|DR|BL|SH|TS|FZ)` + phenomena + `*|` + phenomena + `+)|NSW)$`)
})

// Groups that belong to segments ahead of the weather/cloud run.
var (
	windShape          = regexp.MustCompile(`^(?:VRB|\d{2,3}).*KT$`)
	windVariationShape = regexp.MustCompile(`^\d{3}V\d{3}$`)
	visibilityShape    = regexp.MustCompile(`^(?:[MP]?\d+SM|\d{4})$`)
)

var errStrayGroup = errors.New("not a present-weather or cloud group")

// checkWeatherRun rejects any token in the weather/cloud run that is neither a
// present-weather group nor a cloud layer. A token shaped like an earlier
// segment (a wind, variation or visibility group the grammar could not place)
// is reported against that segment.
func checkWeatherRun(blob string) error {
	for _, tok := range strings.Fields(blob) {
		if IsCloudToken(tok) || weatherGrammar().MatchString(tok) {
			continue
		}
		field := FieldWeather
		switch {
		case windShape.MatchString(tok):
			field = FieldWind
		case windVariationShape.MatchString(tok):
			field = FieldWindVariation
		case visibilityShape.MatchString(tok):
			field = FieldVisibility
		}
		return fieldError(field, tok, errStrayGroup)
	}
	return nil
}

// SplitWeatherAndClouds divides the weather/cloud segment into present-weather
// codes and cloud layers, both in source order.
//
// Cloud layers are every token matching the cloud grammar. Present weather is
// every token before the first cloud layer; tokens after that boundary that are
// not cloud layers are not reported. A segment with no cloud token at all is
// returned entirely as weather with no cloud layers. Both results are non-nil.
func SplitWeatherAndClouds(blob string) (weather, clouds []string) {
	tokens := strings.Fields(blob)
	clouds = []string{}
	for _, tok := range tokens {
		if IsCloudToken(tok) {
			clouds = append(clouds, tok)
		}
	}

	boundary := len(tokens)
	if len(clouds) > 0 {
		for i, tok := range tokens {
			if tok == clouds[0] {
				boundary = i
				break
			}
		}
	}

	weather = make([]string, 0, boundary)
	weather = append(weather, tokens[:boundary]...)
	return weather, clouds
}

// Cloud coverage abbreviations.
const (
	CoverageFew         = "FEW"
	CoverageScattered   = "SCT"
	CoverageBroken      = "BKN"
	CoverageOvercast    = "OVC"
	CoverageVerticalVis = "VV"
	CoverageClear       = "CLR"
	CoverageSkyClear    = "SKC"
	CoverageCAVOK       = "CAVOK"
)

// CloudLayer is a decoded cloud-layer token. Sentinels (CLR, SKC, CAVOK) have
// no height.
type CloudLayer struct {
	Coverage   string `json:"coverage"`
	HeightFt   int    `json:"height_ft,omitempty"`
	Convective string `json:"convective,omitempty"`
}

// Ceiling reports whether the layer constitutes a ceiling (broken, overcast or
// an indefinite ceiling given as vertical visibility).
func (l CloudLayer) Ceiling() bool {
	switch l.Coverage {
	case CoverageBroken, CoverageOvercast, CoverageVerticalVis:
		return true
	}
	return false
}

// ParseCloudLayer decodes a single cloud token. ok is false when code does not
// match the cloud grammar.
func ParseCloudLayer(code string) (CloudLayer, bool) {
	if !IsCloudToken(code) {
		return CloudLayer{}, false
	}
	switch code {
	case CoverageClear, CoverageSkyClear, CoverageCAVOK:
		return CloudLayer{Coverage: code}, true
	}

	n := 3
	if strings.HasPrefix(code, CoverageVerticalVis) {
		n = 2
	}
	// Grammar guarantees three digits after the coverage abbreviation.
	hundreds, _ := strconv.Atoi(code[n : n+3])
	return CloudLayer{
		Coverage:   code[:n],
		HeightFt:   hundreds * 100,
		Convective: code[n+3:],
	}, true
}
