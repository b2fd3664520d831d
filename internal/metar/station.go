package metar

import (
	"fmt"
	"regexp"
	"strings"
)

var stationRe = regexp.MustCompile(`^[A-Z0-9]{4}$`)

// NormalizeStation trims and upper-cases a station identifier and checks that
// it is four alphanumeric characters.
func NormalizeStation(code string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(code))
	if !stationRe.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStation, code)
	}
	return s, nil
}
