package types

import (
	"time"
)

// Location is the fixed site a daily record series was observed at.
type Location struct {
	Lat      float64 `json:"lat" db:"location_lat" validate:"latitude"`
	Lon      float64 `json:"lon" db:"location_lon" validate:"longitude"`
	Timezone string  `json:"timezone" db:"timezone"`
}

// RawObservation is one daily row as delivered by a record source. Nil
// pointers mark values the source did not provide.
type RawObservation struct {
	Date            time.Time
	TempMax         *float64
	TempMin         *float64
	TempMean        *float64
	PrecipitationMM *float64
	HumidityMean    *float64
	SoilMoisture    *float64
	DaylightSeconds *float64
}

// Complete reports whether every measured field is present.
func (r RawObservation) Complete() bool {
	return !r.Date.IsZero() &&
		r.TempMax != nil && r.TempMin != nil && r.TempMean != nil &&
		r.PrecipitationMM != nil && r.HumidityMean != nil &&
		r.SoilMoisture != nil && r.DaylightSeconds != nil
}

// Observation is a cleaned daily record. Every field is present and the
// value is never mutated after ingestion.
type Observation struct {
	Date            time.Time `json:"date" db:"observed_on"`
	TempMax         float64   `json:"temp_max" db:"temp_max"`
	TempMin         float64   `json:"temp_min" db:"temp_min"`
	TempMean        float64   `json:"temp_mean" db:"temp_mean"`
	PrecipitationMM float64   `json:"precipitation_mm" db:"precipitation_mm"`
	HumidityMean    float64   `json:"humidity_mean" db:"humidity_mean"`
	SoilMoisture    float64   `json:"soil_moisture" db:"soil_moisture"`
	DaylightSeconds float64   `json:"daylight_seconds" db:"daylight_seconds"`
}

// Month returns the calendar month of the observation (1-12).
func (o Observation) Month() int {
	return int(o.Date.Month())
}

// Season is the integer code an embedded controller uses for the time of year.
type Season int

const (
	SeasonSpring Season = 1
	SeasonSummer Season = 2
	SeasonAutumn Season = 3
	SeasonWinter Season = 4
)

// String returns the lowercase season name.
func (s Season) String() string {
	switch s {
	case SeasonSpring:
		return "spring"
	case SeasonSummer:
		return "summer"
	case SeasonAutumn:
		return "autumn"
	case SeasonWinter:
		return "winter"
	default:
		return "unknown"
	}
}

// Label is the binary irrigation decision.
type Label int

const (
	// LabelSkip means irrigation is not required.
	LabelSkip Label = 0
	// LabelIrrigate means irrigation is required.
	LabelIrrigate Label = 1
)

// Bool converts the label to the embedded function's return value.
func (l Label) Bool() bool {
	return l == LabelIrrigate
}

// String returns "1" or "0", matching how leaf classes are rendered.
func (l Label) String() string {
	if l == LabelIrrigate {
		return "1"
	}
	return "0"
}
