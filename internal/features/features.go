// Package features derives the engineered per-day feature vector from a
// cleaned observation: the simulated soil sensor reading, the precipitation
// occurrence flag and the season code.
//
// Every function in this package is pure and total on its input domain.
package features

import (
	"math"

	"irrigation/internal/types"
)

// Sensor reading scale. The simulated probe reports lower values for wetter
// soil, clamped to the range an embedded ADC channel is calibrated for.
const (
	SensorMin = 100
	SensorMax = 900

	sensorOffset = 1000.0
	sensorGain   = 2500.0
)

// RainThresholdMM is the daily precipitation above which a day counts as rainy.
const RainThresholdMM = 1.0

// Vector is the derived feature vector for one day.
type Vector struct {
	TempMean        float64
	PrecipitationMM float64
	HumidityMean    float64
	SoilMoisture    float64
	Season          types.Season
	SensorReading   int
	RainFlag        int
}

// SensorReading converts a volumetric soil moisture fraction into the
// simulated sensor value clamp(round(1000 - f*2500), 100, 900).
//
// The result is non-increasing in f for every input, including fractions
// outside [0,1] and infinities. NaN maps to SensorMax.
func SensorReading(fraction float64) int {
	raw := sensorOffset - fraction*sensorGain
	if math.IsNaN(raw) {
		return SensorMax
	}
	raw = math.Round(raw)
	if raw < SensorMin {
		return SensorMin
	}
	if raw > SensorMax {
		return SensorMax
	}
	return int(raw)
}

// RainFlag returns 1 when precipitation exceeds RainThresholdMM, else 0.
func RainFlag(precipitationMM float64) int {
	if precipitationMM > RainThresholdMM {
		return 1
	}
	return 0
}

// SeasonOf maps a calendar month to its season code. Months outside 1-12
// are normalized modulo 12 first.
func SeasonOf(month int) types.Season {
	m := ((month-1)%12+12)%12 + 1
	switch m {
	case 3, 4, 5:
		return types.SeasonSpring
	case 6, 7, 8:
		return types.SeasonSummer
	case 9, 10, 11:
		return types.SeasonAutumn
	default:
		return types.SeasonWinter
	}
}

// Derive computes the feature vector for a cleaned observation.
func Derive(obs types.Observation) Vector {
	return Vector{
		TempMean:        obs.TempMean,
		PrecipitationMM: obs.PrecipitationMM,
		HumidityMean:    obs.HumidityMean,
		SoilMoisture:    obs.SoilMoisture,
		Season:          SeasonOf(obs.Month()),
		SensorReading:   SensorReading(obs.SoilMoisture),
		RainFlag:        RainFlag(obs.PrecipitationMM),
	}
}

// DeriveAll derives vectors for every observation, preserving order.
func DeriveAll(obs []types.Observation) []Vector {
	out := make([]Vector, len(obs))
	for i, o := range obs {
		out[i] = Derive(o)
	}
	return out
}

// Decider is the capability shared by every irrigation decision procedure:
// the ground-truth label rule, the fitted tree, the distilled rule set and
// the hand-authored reference rule.
type Decider interface {
	Decide(v Vector) types.Label
}

// DeciderFunc adapts a plain function to the Decider interface.
type DeciderFunc func(v Vector) types.Label

// Decide calls f(v).
func (f DeciderFunc) Decide(v Vector) types.Label { return f(v) }
