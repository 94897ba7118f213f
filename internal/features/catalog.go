package features

import (
	"fmt"
	"strings"

	"irrigation/internal/types"
)

// ID identifies one column of the classifier input.
type ID int

// Catalog of features a tree may split on. The order of DefaultSet defines
// the feature index used for split tie-breaking.
const (
	TempMean ID = iota
	Precipitation
	Humidity
	SoilMoisture
	SeasonCode
	Sensor
	Rain
)

var names = [...]string{
	TempMean:      "temp_mean",
	Precipitation: "precipitation_mm",
	Humidity:      "humidity_mean",
	SoilMoisture:  "soil_moisture",
	SeasonCode:    "season",
	Sensor:        "sensor_reading",
	Rain:          "rain_flag",
}

// DefaultSet is the six-feature input used unless configured otherwise.
var DefaultSet = []ID{TempMean, Precipitation, Humidity, SoilMoisture, SeasonCode, Sensor}

// Name returns the canonical column name of the feature.
func (id ID) Name() string {
	if id < 0 || int(id) >= len(names) {
		return fmt.Sprintf("feature_%d", int(id))
	}
	return names[id]
}

// String implements fmt.Stringer.
func (id ID) String() string { return id.Name() }

// MarshalText encodes the feature by name.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.Name()), nil
}

// UnmarshalText decodes a canonical feature name.
func (id *ID) UnmarshalText(b []byte) error {
	v, ok := Lookup(string(b))
	if !ok {
		return types.NewAppError(types.ErrCodeValidationFeatureSet, fmt.Sprintf("unknown feature %q", b), nil)
	}
	*id = v
	return nil
}

// Integral reports whether the feature only takes integer values, which lets
// renderers pick an integer parameter type on the embedded side.
func (id ID) Integral() bool {
	return id == SeasonCode || id == Sensor || id == Rain
}

// Lookup resolves a canonical feature name.
func Lookup(name string) (ID, bool) {
	name = strings.TrimSpace(name)
	for i, n := range names {
		if n == name {
			return ID(i), true
		}
	}
	return 0, false
}

// ParseSet resolves a list of feature names, preserving order. Duplicates and
// unknown names are rejected.
func ParseSet(list []string) ([]ID, error) {
	if len(list) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationFeatureSet, "feature set is empty", nil)
	}
	seen := make(map[ID]bool, len(list))
	out := make([]ID, 0, len(list))
	for _, name := range list {
		id, ok := Lookup(name)
		if !ok {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationFeatureSet,
				fmt.Sprintf("unknown feature %q", name), nil,
				map[string]any{"known": KnownNames()})
		}
		if seen[id] {
			return nil, types.NewAppError(types.ErrCodeValidationFeatureSet,
				fmt.Sprintf("feature %q listed twice", name), nil)
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

// KnownNames lists every feature name in catalog order.
func KnownNames() []string {
	out := make([]string, len(names))
	copy(out, names[:])
	return out
}

// Value returns the numeric value of feature id in v.
func (v Vector) Value(id ID) float64 {
	switch id {
	case TempMean:
		return v.TempMean
	case Precipitation:
		return v.PrecipitationMM
	case Humidity:
		return v.HumidityMean
	case SoilMoisture:
		return v.SoilMoisture
	case SeasonCode:
		return float64(v.Season)
	case Sensor:
		return float64(v.SensorReading)
	case Rain:
		return float64(v.RainFlag)
	default:
		return 0
	}
}

// Row projects v onto the given feature set.
func (v Vector) Row(set []ID) []float64 {
	row := make([]float64, len(set))
	for i, id := range set {
		row[i] = v.Value(id)
	}
	return row
}

// Set assigns x to feature id. Integral features are truncated toward zero.
func (v *Vector) Set(id ID, x float64) {
	switch id {
	case TempMean:
		v.TempMean = x
	case Precipitation:
		v.PrecipitationMM = x
	case Humidity:
		v.HumidityMean = x
	case SoilMoisture:
		v.SoilMoisture = x
	case SeasonCode:
		v.Season = types.Season(int(x))
	case Sensor:
		v.SensorReading = int(x)
	case Rain:
		v.RainFlag = int(x)
	}
}
