package metar

import (
	"context"
	"time"
)

// StationType distinguishes automated, corrected and unspecified reports.
type StationType string

const (
	StationTypeUnspecified StationType = ""
	StationTypeAutomated   StationType = "AUTO"
	StationTypeCorrected   StationType = "COR"
)

// Wind is a decoded wind group. A variable wind (VRB) carries only
// VariableSpeed; Direction and Speed stay zero.
type Wind struct {
	Direction     int  `json:"direction"`
	Speed         int  `json:"speed"`
	Gust          int  `json:"gust,omitempty"`
	Gusting       bool `json:"gusting,omitempty"`
	Variable      bool `json:"variable,omitempty"`
	VariableSpeed int  `json:"variable_speed,omitempty"`
}

// Calm reports whether the wind group was 00000KT.
func (w Wind) Calm() bool {
	return w == Wind{}
}

// WindVariation bounds a directional swing, e.g. 240V300.
type WindVariation struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Report is the decode result for one observation line. It is built in one
// Decode call and never modified afterwards.
type Report struct {
	Raw               string         `json:"raw"`
	Station           string         `json:"station"`
	ObservedAt        time.Time      `json:"observed_at"`
	StationType       StationType    `json:"station_type,omitempty"`
	Wind              *Wind          `json:"wind,omitempty"`
	WindVariation     *WindVariation `json:"wind_variation,omitempty"`
	Visibility        string         `json:"visibility,omitempty"`
	RunwayVisualRange string         `json:"runway_visual_range,omitempty"`
	PresentWeather    []string       `json:"present_weather"`
	CloudLayers       []string       `json:"cloud_layers"`
	Temperature       int            `json:"temperature"`
	DewPoint          int            `json:"dew_point"`
	Altimeter         *int           `json:"altimeter,omitempty"`
	Remarks           []string       `json:"remarks"`
}

// Observation is a Report plus values derived from it.
type Observation struct {
	ID string `json:"id"`
	Report
	CeilingFt       *int     `json:"ceiling_ft,omitempty"`
	VisibilityMiles *float64 `json:"visibility_sm,omitempty"`
	FlightCategory  string   `json:"flight_category,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// ReportFetcher retrieves the current raw report line for a station.
// Implementations return ErrStationNotFound when the station has no report.
type ReportFetcher interface {
	FetchReport(ctx context.Context, station string) (string, error)
}
