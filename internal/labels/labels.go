// Package labels synthesizes the ground-truth irrigation label the
// classifier is trained to approximate.
//
// The rule is evaluated in fixed priority order, first match wins:
//
//	rain_flag == 1          -> 0 (rain already watered the field)
//	sensor_reading < 500    -> 0 (soil is still wet)
//	otherwise               -> 1 (dry soil, no rain)
//
// It never consults temperature, humidity or season.
package labels

import (
	"irrigation/internal/features"
	"irrigation/internal/types"
)

// WetSoilThreshold is the sensor reading below which soil counts as wet.
const WetSoilThreshold = 500

// Synthesize applies the label rule to a derived vector.
func Synthesize(v features.Vector) types.Label {
	if v.RainFlag == 1 {
		return types.LabelSkip
	}
	if v.SensorReading < WetSoilThreshold {
		return types.LabelSkip
	}
	return types.LabelIrrigate
}

// Rule is the label rule as a features.Decider.
var Rule features.Decider = features.DeciderFunc(Synthesize)

// Example is a derived vector paired with its synthesized label.
type Example struct {
	Date   string
	Vector features.Vector
	Label  types.Label
}

// Build derives and labels every observation, preserving input order.
func Build(obs []types.Observation) []Example {
	out := make([]Example, len(obs))
	for i, o := range obs {
		v := features.Derive(o)
		out[i] = Example{
			Date:   o.Date.Format("2006-01-02"),
			Vector: v,
			Label:  Synthesize(v),
		}
	}
	return out
}

// Balance counts examples per label.
type Balance struct {
	Irrigate int `json:"irrigate"`
	Skip     int `json:"skip"`
}

// Count tallies the labels of examples.
func Count(examples []Example) Balance {
	var b Balance
	for _, e := range examples {
		if e.Label == types.LabelIrrigate {
			b.Irrigate++
		} else {
			b.Skip++
		}
	}
	return b
}
