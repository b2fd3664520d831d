package metar

import (
	"errors"
	"fmt"
)

var (
	// ErrUngrammatical means the line does not match the report grammar at all.
	// It is terminal for that line; retrying will not help.
	ErrUngrammatical = errors.New("ungrammatical report")

	// ErrStationNotFound is returned by fetchers when no report exists for a station.
	ErrStationNotFound = errors.New("station not found")

	// ErrInvalidStation is returned by NormalizeStation for malformed codes.
	ErrInvalidStation = errors.New("invalid station code")
)

// FieldError reports a matched field whose raw text violates its encoding.
type FieldError struct {
	Field string
	Raw   string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("decode %s %q: %v", e.Field, e.Raw, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func fieldError(field, raw string, err error) error {
	return &FieldError{Field: field, Raw: raw, Err: err}
}

// Error kinds returned by ErrorKind, used as metric labels.
const (
	KindUngrammatical = "ungrammatical"
	KindField         = "field"
	KindOther         = "other"
)

// ErrorKind classifies a decode failure.
func ErrorKind(err error) string {
	var fe *FieldError
	switch {
	case errors.Is(err, ErrUngrammatical):
		return KindUngrammatical
	case errors.As(err, &fe):
		return KindField
	default:
		return KindOther
	}
}
