package distill

import (
	"irrigation/internal/features"
	"irrigation/internal/types"
)

// Reference rule thresholds, as shipped in the controller firmware.
const (
	RefRainLikely   = 50  // rain probability (%) above which irrigation is skipped
	RefRainUnlikely = 30  // rain probability (%) below which irrigation may run
	RefWetSoil      = 500 // sensor reading below which soil is wet
	RefDrySoil      = 600 // sensor reading above which soil is dry
	RefVeryDrySoil  = 700 // outside summer, irrigate only above this reading
)

// ReferenceInputs are the live values the controller has when it decides.
// Temperature is accepted for signature compatibility with the firmware
// and does not influence the decision.
type ReferenceInputs struct {
	SensorReading   int
	RainProbability int
	Temperature     float64
	Season          types.Season
}

// DecideInputs is the hand-authored fallback rule.
func DecideInputs(in ReferenceInputs) bool {
	if in.RainProbability > RefRainLikely {
		return false
	}
	if in.SensorReading < RefWetSoil {
		return false
	}
	if in.SensorReading > RefDrySoil && in.RainProbability < RefRainUnlikely {
		if in.Season == types.SeasonSummer {
			return true
		}
		if in.SensorReading > RefVeryDrySoil {
			return true
		}
	}
	return false
}

// RainProbability maps a historical rain flag to the forecast probability
// the reference rule expects: 100 on rainy days, 0 otherwise.
func RainProbability(rainFlag int) int {
	if rainFlag == 1 {
		return 100
	}
	return 0
}

// ReferenceRule adapts DecideInputs to the features.Decider capability so it
// can be scored against the same examples as the learned rule set. It is
// never merged with a RuleSet.
var ReferenceRule features.Decider = features.DeciderFunc(func(v features.Vector) types.Label {
	ok := DecideInputs(ReferenceInputs{
		SensorReading:   v.SensorReading,
		RainProbability: RainProbability(v.RainFlag),
		Temperature:     v.TempMean,
		Season:          v.Season,
	})
	if ok {
		return types.LabelIrrigate
	}
	return types.LabelSkip
})
