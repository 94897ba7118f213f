package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irrigation/internal/types"
)

func TestSensorReading_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		fraction float64
		want     int
	}{
		{"bone dry", 0.0, 900},
		{"upper clamp boundary", 0.04, 900},
		{"just below clamp", 0.05, 875},
		{"threshold", 0.2, 500},
		{"wet", 0.3, 250},
		{"saturated clamp", 0.36, 100},
		{"full", 1.0, 100},
		{"negative fraction", -1, 900},
		{"fraction above one", 2, 100},
		{"positive infinity", math.Inf(1), 100},
		{"negative infinity", math.Inf(-1), 900},
		{"NaN", math.NaN(), 900},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SensorReading(tt.fraction))
		})
	}
}

// TestSensorReading_BoundedAndMonotone sweeps well beyond [0,1] and checks
// the clamp range and that the reading never increases with wetter soil.
func TestSensorReading_BoundedAndMonotone(t *testing.T) {
	prev := SensorReading(-5)
	for f := -5.0; f <= 5.0; f += 0.0005 {
		got := SensorReading(f)
		require.GreaterOrEqual(t, got, SensorMin, "f=%v", f)
		require.LessOrEqual(t, got, SensorMax, "f=%v", f)
		require.LessOrEqual(t, got, prev, "reading increased at f=%v", f)
		prev = got
	}
}

func TestRainFlag(t *testing.T) {
	assert.Equal(t, 0, RainFlag(0))
	assert.Equal(t, 0, RainFlag(1.0))
	assert.Equal(t, 1, RainFlag(1.0001))
	assert.Equal(t, 1, RainFlag(5))
}

func TestSeasonOf(t *testing.T) {
	want := map[int]types.Season{
		1: types.SeasonWinter, 2: types.SeasonWinter, 3: types.SeasonSpring,
		4: types.SeasonSpring, 5: types.SeasonSpring, 6: types.SeasonSummer,
		7: types.SeasonSummer, 8: types.SeasonSummer, 9: types.SeasonAutumn,
		10: types.SeasonAutumn, 11: types.SeasonAutumn, 12: types.SeasonWinter,
	}
	for month, season := range want {
		assert.Equal(t, season, SeasonOf(month), "month %d", month)
	}
	assert.Equal(t, types.SeasonWinter, SeasonOf(0))
	assert.Equal(t, types.SeasonSpring, SeasonOf(15))
}

func TestDerive(t *testing.T) {
	obs := types.Observation{
		Date:            time.Date(2023, time.July, 14, 0, 0, 0, 0, time.UTC),
		TempMax:         34.1,
		TempMin:         18.2,
		TempMean:        26.4,
		PrecipitationMM: 0.4,
		HumidityMean:    38,
		SoilMoisture:    0.12,
		DaylightSeconds: 53000,
	}

	v := Derive(obs)

	assert.Equal(t, 26.4, v.TempMean)
	assert.Equal(t, 0.4, v.PrecipitationMM)
	assert.Equal(t, 38.0, v.HumidityMean)
	assert.Equal(t, types.SeasonSummer, v.Season)
	assert.Equal(t, 700, v.SensorReading)
	assert.Equal(t, 0, v.RainFlag)
}

func TestParseSet(t *testing.T) {
	set, err := ParseSet([]string{"sensor_reading", " season ", "temp_mean"})
	require.NoError(t, err)
	assert.Equal(t, []ID{Sensor, SeasonCode, TempMean}, set)

	_, err = ParseSet(nil)
	require.Error(t, err)

	_, err = ParseSet([]string{"wind_speed"})
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationFeatureSet, appErr.Code)

	_, err = ParseSet([]string{"season", "season"})
	require.Error(t, err)
}

func TestVectorRow(t *testing.T) {
	v := Vector{TempMean: 10, PrecipitationMM: 2, HumidityMean: 60, SoilMoisture: 0.3,
		Season: types.SeasonAutumn, SensorReading: 250, RainFlag: 1}

	assert.Equal(t, []float64{10, 2, 60, 0.3, 3, 250}, v.Row(DefaultSet))
	assert.Equal(t, []float64{1, 250}, v.Row([]ID{Rain, Sensor}))
}

func TestIDName(t *testing.T) {
	assert.Equal(t, "sensor_reading", Sensor.Name())
	assert.Equal(t, "feature_42", ID(42).Name())
	assert.True(t, SeasonCode.Integral())
	assert.False(t, Humidity.Integral())
	assert.Len(t, KnownNames(), 7)
}

func TestVectorSet(t *testing.T) {
	var v Vector
	for _, id := range []ID{TempMean, Precipitation, Humidity, SoilMoisture} {
		v.Set(id, 1.25)
		assert.Equal(t, 1.25, v.Value(id), id.Name())
	}
	v.Set(Sensor, 612.9)
	v.Set(SeasonCode, 2)
	v.Set(Rain, 1)
	assert.Equal(t, 612, v.SensorReading)
	assert.Equal(t, types.SeasonSummer, v.Season)
	assert.Equal(t, 1, v.RainFlag)
}
