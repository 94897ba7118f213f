package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irrigation/internal/config"
	"irrigation/internal/distill"
	"irrigation/internal/features"
	"irrigation/internal/types"
)

type tableSource struct {
	table *types.RecordTable
	err   error
	calls int
}

func (s *tableSource) Load(ctx context.Context) (*types.RecordTable, error) {
	s.calls++
	return s.table, s.err
}

func f64(v float64) *float64 { return &v }

var rainChoices = []float64{0, 0.5, 1.0, 2.0, 8.0}

// synthTable builds n complete days starting 2022-01-01. Soil moisture walks
// a fixed grid of 100 values so every evaluation reading also occurs in
// training; precipitation cycles through rainChoices.
func synthTable(n int, precip func(i int) float64) *types.RecordTable {
	if precip == nil {
		precip = func(i int) float64 { return rainChoices[(i*3)%len(rainChoices)] }
	}
	start := time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]types.RawObservation, n)
	for i := range rows {
		soil := 0.04 + float64((i*37)%100)/400
		rows[i] = types.RawObservation{
			Date:            start.AddDate(0, 0, i),
			TempMax:         f64(20 + float64(i%30)/2),
			TempMin:         f64(5 + float64(i%30)/4),
			TempMean:        f64(12 + float64(i%30)/3),
			PrecipitationMM: f64(precip(i)),
			HumidityMean:    f64(40 + float64((i*13)%50)),
			SoilMoisture:    f64(soil),
			DaylightSeconds: f64(43200),
		}
	}
	return &types.RecordTable{Columns: append([]string(nil), types.RequiredColumns...), Rows: rows}
}

func newTestRunner() *Runner {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	fixed := time.Date(2026, time.May, 1, 6, 0, 0, 0, time.UTC)
	return NewRunner(logger,
		WithClock(func() time.Time { return fixed }),
		WithIDGenerator(func() string { return "00000000-0000-0000-0000-000000000001" }),
	)
}

func TestRun_LearnsLabelRule(t *testing.T) {
	src := &tableSource{table: synthTable(400, nil)}
	cfg := DefaultConfig()
	cfg.Site = "test-site"

	rep, err := newTestRunner().Run(context.Background(), src, cfg)
	require.NoError(t, err)

	assert.Equal(t, "00000000-0000-0000-0000-000000000001", rep.RunID)
	assert.Equal(t, 400, rep.TotalRecords)
	assert.Equal(t, 80, rep.EvalRecords)
	assert.Equal(t, 320, rep.TrainRecords)
	assert.Equal(t, rep.TotalRecords, rep.Balance.Irrigate+rep.Balance.Skip)
	assert.Positive(t, rep.Balance.Irrigate)
	assert.Positive(t, rep.Balance.Skip)

	assert.GreaterOrEqual(t, rep.Model.Accuracy, 0.99)
	assert.Equal(t, rep.EvalRecords, rep.Reference.Total)
	assert.Empty(t, rep.Warnings)

	require.NotNil(t, rep.Rules)
	assert.Len(t, rep.Rules.Rules, rep.Leaves)
	assert.LessOrEqual(t, rep.TreeDepth, cfg.MaxDepth)
	require.NotNil(t, rep.Verification)
	assert.Equal(t, distill.DefaultVerifySamples, rep.Verification.Samples)
	assert.Zero(t, rep.Verification.Mismatches)
}

func TestRun_Reproducible(t *testing.T) {
	cfg := DefaultConfig()
	a, err := newTestRunner().Run(context.Background(), &tableSource{table: synthTable(250, nil)}, cfg)
	require.NoError(t, err)
	b, err := newTestRunner().Run(context.Background(), &tableSource{table: synthTable(250, nil)}, cfg)
	require.NoError(t, err)

	ta, err := distill.RenderText(a.Rules)
	require.NoError(t, err)
	tb, err := distill.RenderText(b.Rules)
	require.NoError(t, err)
	assert.Equal(t, ta, tb)
	assert.Equal(t, a.Model, b.Model)
}

func TestRun_AllRainIsDegenerate(t *testing.T) {
	src := &tableSource{table: synthTable(100, func(int) float64 { return 5 })}

	rep, err := newTestRunner().Run(context.Background(), src, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 0, rep.Balance.Irrigate)
	assert.Equal(t, 1, rep.Leaves)
	assert.Equal(t, 1.0, rep.Model.Accuracy)
	assert.True(t, rep.HasWarning(types.ErrCodeDegenerateTree))
	assert.False(t, rep.HasWarning(types.ErrCodeLowAccuracy))
	require.Len(t, rep.Rules.Rules, 1)
	assert.True(t, rep.Rules.IsConstant())

	artifacts, err := rep.Artifacts(distill.Formats)
	require.NoError(t, err)
	assert.NotEmpty(t, artifacts)
}

func TestRun_LowAccuracyWarning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDepth = 1
	cfg.Features = []features.ID{features.TempMean}

	rep, err := newTestRunner().Run(context.Background(), &tableSource{table: synthTable(300, nil)}, cfg)
	require.NoError(t, err)

	require.True(t, rep.HasWarning(types.ErrCodeLowAccuracy))
	assert.Less(t, rep.Model.Accuracy, cfg.AccuracyThreshold)
	for _, w := range rep.Warnings {
		assert.False(t, w.IsFatal())
	}
}

func TestRun_SingleRecordHasEmptyEvaluation(t *testing.T) {
	rep, err := newTestRunner().Run(context.Background(), &tableSource{table: synthTable(1, nil)}, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.TrainRecords)
	assert.Equal(t, 0, rep.EvalRecords)
	assert.Zero(t, rep.Model.Accuracy)
	assert.True(t, rep.HasWarning(types.ErrCodeLowAccuracy))
	assert.True(t, rep.HasWarning(types.ErrCodeDegenerateTree))
}

func TestRun_FatalErrors(t *testing.T) {
	missing := synthTable(10, nil)
	missing.Columns = missing.Columns[:len(missing.Columns)-1]

	incomplete := synthTable(10, nil)
	for i := range incomplete.Rows {
		incomplete.Rows[i].HumidityMean = nil
	}

	tests := []struct {
		name  string
		table *types.RecordTable
		want  types.ErrorCode
	}{
		{"empty table", &types.RecordTable{Columns: types.RequiredColumns}, types.ErrCodeEmptyDataset},
		{"absent column", missing, types.ErrCodeMissingData},
		{"column never filled", incomplete, types.ErrCodeMissingData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := newTestRunner().Run(context.Background(), &tableSource{table: tt.table}, DefaultConfig())
			assert.Nil(t, rep)

			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.want, appErr.Code)
			assert.True(t, appErr.IsFatal())
		})
	}
}

func TestRun_InvalidConfigSkipsLoad(t *testing.T) {
	src := &tableSource{table: synthTable(10, nil)}
	cfg := DefaultConfig()
	cfg.MaxDepth = 9

	_, err := newTestRunner().Run(context.Background(), src, cfg)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationMaxDepth, appErr.Code)
	assert.Zero(t, src.calls)
}

func TestRun_SourceErrorIsWrapped(t *testing.T) {
	cause := types.NewAppError(types.ErrCodeUpstreamWeatherArchive, "archive down", nil)

	_, err := newTestRunner().Run(context.Background(), &tableSource{err: cause}, DefaultConfig())

	assert.ErrorIs(t, err, cause)
	assert.ErrorContains(t, err, "failed to load records")
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TestFraction = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.AccuracyThreshold = 1.5
	var appErr *types.AppError
	require.ErrorAs(t, cfg.Validate(), &appErr)
	assert.Equal(t, types.ErrCodeValidationThreshold, appErr.Code)

	cfg = DefaultConfig()
	cfg.Features = nil
	assert.Error(t, cfg.Validate())

	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfigFrom(t *testing.T) {
	cfg, err := ConfigFrom("ankara", config.PipelineConfig{
		MaxDepth:          4,
		TestFraction:      0.25,
		RandomSeed:        7,
		FeatureSet:        []string{"sensor_reading", "rain_flag"},
		AccuracyThreshold: 0.8,
		VerifySamples:     50,
	})
	require.NoError(t, err)
	assert.Equal(t, []features.ID{features.Sensor, features.Rain}, cfg.Features)
	assert.Equal(t, "ankara", cfg.Site)
	assert.Equal(t, 4, cfg.MaxDepth)

	_, err = ConfigFrom("ankara", config.PipelineConfig{MaxDepth: 4, TestFraction: 0.2, FeatureSet: []string{"wind"}})
	assert.Error(t, err)
}

func TestReport_SummaryAndArtifacts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Site = "ankara"
	rep, err := newTestRunner().Run(context.Background(), &tableSource{table: synthTable(200, nil)}, cfg)
	require.NoError(t, err)

	s := rep.Summary()
	assert.Equal(t, rep.RunID, s.RunID)
	assert.Equal(t, "ankara", s.Site)
	assert.Equal(t, []string{"temp_mean", "precipitation_mm", "humidity_mean", "soil_moisture", "season", "sensor_reading"}, s.FeatureSet)
	assert.Equal(t, rep.Model.Accuracy, s.Accuracy)
	assert.Equal(t, rep.Reference.Accuracy, s.ReferenceAccuracy)
	assert.NotNil(t, s.Warnings)

	artifacts, err := rep.Artifacts([]distill.Format{distill.FormatText, distill.FormatC, distill.FormatC, distill.FormatJSON})
	require.NoError(t, err)
	names := make([]string, len(artifacts))
	for i, a := range artifacts {
		names[i] = a.Name
	}
	assert.Equal(t, []string{ArtifactReport, ArtifactText, ArtifactC, ArtifactReference, ArtifactJSON}, names)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(artifacts[0].Body, &decoded))
	assert.Equal(t, rep.RunID, decoded["run_id"])
	assert.NotContains(t, decoded, "Tree")
	assert.Equal(t, []any{"temp_mean", "precipitation_mm", "humidity_mean", "soil_moisture", "season", "sensor_reading"},
		decoded["config"].(map[string]any)["feature_set"])

	_, err = rep.Artifacts([]distill.Format{"pdf"})
	assert.Error(t, err)

	text := rep.Text()
	assert.Contains(t, text, "records: 200 total, 160 train, 40 eval")
	assert.Contains(t, text, "|--- ")
}

func TestReport_ArtifactsRequireRules(t *testing.T) {
	_, err := (&Report{}).Artifacts(distill.Formats)
	var appErr *types.AppError
	assert.True(t, errors.As(err, &appErr))
}
