package metar

import "github.com/jonboulle/clockwork"

// clock is a package-level time source so tests can freeze time via SetClock.
// It supplies the year and month for Parse and the processed-at stamp for Enrich.
var clock = clockwork.NewRealClock()

// SetClock swaps the package time source. Pass nil to reset to real time.
// It is not synchronized with Parse or Enrich; call it only during test or
// command setup, before any decoding goroutine starts.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
