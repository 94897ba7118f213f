package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

// testSecretProvider is a configurable mock for testing SSM resolution.
type testSecretProvider struct {
	values     map[string]string
	err        error
	calledWith []string
}

func (p *testSecretProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	p.calledWith = append(p.calledWith, keys...)
	if p.err != nil {
		return nil, p.err
	}
	result := make(map[string]string)
	for _, k := range keys {
		if v, ok := p.values[k]; ok {
			result[k] = v
		}
	}
	return result, nil
}

// testDeps builds loaderDeps over an explicit environment listing. Resolved
// values are written with t.Setenv so envconfig sees them and they are
// restored after the test.
func testDeps(t *testing.T, env map[string]string) loaderDeps {
	t.Helper()
	return loaderDeps{
		lookupEnv: func(key string) (string, bool) {
			if v, ok := env[key]; ok {
				return v, true
			}
			return os.LookupEnv(key)
		},
		setEnv: func(key, value string) error {
			t.Setenv(key, value)
			return nil
		},
		environ: func() []string {
			out := make([]string, 0, len(env))
			for k, v := range env {
				out = append(out, k+"="+v)
			}
			return out
		},
	}
}

func requireConfigError(t *testing.T, err error, want ConfigErrorType) *ConfigError {
	t.Helper()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %T: %v", err, err)
	}
	if cfgErr.Type != want {
		t.Fatalf("expected error type %s, got %s (%v)", want, cfgErr.Type, cfgErr)
	}
	return cfgErr
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "local")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Pipeline.MaxDepth != 5 {
		t.Errorf("MaxDepth = %d, want 5", cfg.Pipeline.MaxDepth)
	}
	if cfg.Pipeline.TestFraction != 0.2 {
		t.Errorf("TestFraction = %v, want 0.2", cfg.Pipeline.TestFraction)
	}
	if cfg.Pipeline.RandomSeed != 42 {
		t.Errorf("RandomSeed = %d, want 42", cfg.Pipeline.RandomSeed)
	}
	if cfg.Pipeline.AccuracyThreshold != 0.9 {
		t.Errorf("AccuracyThreshold = %v, want 0.9", cfg.Pipeline.AccuracyThreshold)
	}
	if got := strings.Join(cfg.Pipeline.FeatureSet, ","); got != "temp_mean,precipitation_mm,humidity_mean,soil_moisture,season,sensor_reading" {
		t.Errorf("FeatureSet = %s", got)
	}
	if cfg.Source.Kind != SourceFile || cfg.Source.Path != "weather_data.csv" {
		t.Errorf("unexpected source %+v", cfg.Source)
	}
	if len(cfg.Output.Formats) != 4 {
		t.Errorf("Formats = %v, want 4 entries", cfg.Output.Formats)
	}
	if cfg.Database.AcquireTimeout != 5*time.Second {
		t.Errorf("AcquireTimeout = %v", cfg.Database.AcquireTimeout)
	}
	if cfg.Build.Version != "dev" {
		t.Errorf("Build.Version = %q, want dev", cfg.Build.Version)
	}
	if time.Local != time.UTC {
		t.Error("expected time.Local to be forced to UTC")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("MAX_DEPTH", "3")
	t.Setenv("TEST_FRACTION", "0.25")
	t.Setenv("FEATURE_SET", "sensor_reading,rain_flag")
	t.Setenv("SOURCE_KIND", "s3")
	t.Setenv("SOURCE_BUCKET", "datasets")
	t.Setenv("SOURCE_KEY", "ankara/daily.csv.zst")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Pipeline.MaxDepth != 3 || cfg.Pipeline.TestFraction != 0.25 {
		t.Errorf("unexpected pipeline config %+v", cfg.Pipeline)
	}
	if len(cfg.Pipeline.FeatureSet) != 2 {
		t.Errorf("FeatureSet = %v", cfg.Pipeline.FeatureSet)
	}
	if cfg.Source.Bucket != "datasets" || cfg.Source.Key != "ankara/daily.csv.zst" {
		t.Errorf("unexpected source %+v", cfg.Source)
	}
}

func TestLoadConfig_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want ConfigErrorType
	}{
		{"depth too large", map[string]string{"MAX_DEPTH": "9"}, ErrValidation},
		{"depth zero", map[string]string{"MAX_DEPTH": "0"}, ErrValidation},
		{"fraction one", map[string]string{"TEST_FRACTION": "1"}, ErrValidation},
		{"unknown feature", map[string]string{"FEATURE_SET": "temp_mean,wind_speed"}, ErrValidation},
		{"duplicate feature", map[string]string{"FEATURE_SET": "season,season"}, ErrValidation},
		{"s3 without bucket", map[string]string{"SOURCE_KIND": "s3"}, ErrValidation},
		{"unknown source", map[string]string{"SOURCE_KIND": "ftp"}, ErrValidation},
		{"bad date", map[string]string{"SOURCE_START_DATE": "2020/01/01"}, ErrValidation},
		{"reversed range", map[string]string{"SOURCE_START_DATE": "2024-01-01", "SOURCE_END_DATE": "2023-01-01"}, ErrValidation},
		{"unknown format", map[string]string{"OUTPUT_FORMATS": "text,pdf"}, ErrValidation},
		{"audit without db", map[string]string{"AUDIT_RUNS": "true"}, ErrMissingEnv},
		{"db source without db", map[string]string{"SOURCE_KIND": "db"}, ErrMissingEnv},
		{"unparseable depth", map[string]string{"MAX_DEPTH": "five"}, ErrParsing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", "local")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(nil)
			requireConfigError(t, err, tt.want)
		})
	}
}

func TestLoadConfig_ResolvesSSMParams(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("AUDIT_RUNS", "true")
	env := map[string]string{
		"APP_ENV":                "dev",
		"DATABASE_URL_SSM_PARAM": "/dev/irrigation/database/url",
	}
	provider := &testSecretProvider{values: map[string]string{
		"/dev/irrigation/database/url": "postgres://distiller:pw@db:5432/irrigation",
	}}

	cfg, err := loadConfigWithDeps(provider, testDeps(t, env))
	if err != nil {
		t.Fatalf("loadConfigWithDeps: %v", err)
	}
	if cfg.Database.URL.Unmask() != "postgres://distiller:pw@db:5432/irrigation" {
		t.Errorf("DATABASE_URL not resolved, got %q", cfg.Database.URL.Unmask())
	}
	if len(provider.calledWith) != 1 {
		t.Errorf("expected 1 resolved path, got %v", provider.calledWith)
	}
}

func TestResolveSSMParams_EnvTakesPriority(t *testing.T) {
	env := map[string]string{
		"DATABASE_URL":           "postgres://local",
		"DATABASE_URL_SSM_PARAM": "/dev/irrigation/database/url",
	}
	provider := &testSecretProvider{}

	if err := resolveSSMParams(provider, testDeps(t, env)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(provider.calledWith) != 0 {
		t.Errorf("provider should not be called, got %v", provider.calledWith)
	}
}

func TestResolveSSMParams_Failures(t *testing.T) {
	env := map[string]string{"DATABASE_URL_SSM_PARAM": "/dev/irrigation/database/url"}

	err := resolveSSMParams(nil, testDeps(t, env))
	cfgErr := requireConfigError(t, err, ErrSSMResolution)
	if !strings.Contains(cfgErr.Message, "DATABASE_URL") {
		t.Errorf("message should name the target variable: %s", cfgErr.Message)
	}

	err = resolveSSMParams(&testSecretProvider{values: map[string]string{}}, testDeps(t, env))
	cfgErr = requireConfigError(t, err, ErrSSMResolution)
	if !strings.Contains(cfgErr.Message, "not found") {
		t.Errorf("unexpected message: %s", cfgErr.Message)
	}

	boom := errors.New("throttled")
	err = resolveSSMParams(&testSecretProvider{err: boom}, testDeps(t, env))
	requireConfigError(t, err, ErrSSMResolution)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped provider error, got %v", err)
	}
}

func TestSourceConfig_Range(t *testing.T) {
	start, end, err := SourceConfig{StartDate: "2020-01-01", EndDate: "2024-12-31"}.Range()
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if start.Year() != 2020 || end.Year() != 2024 || end.Month() != time.December {
		t.Errorf("unexpected range %v..%v", start, end)
	}

	start, end, err = SourceConfig{}.Range()
	if err != nil || !start.IsZero() || !end.IsZero() {
		t.Errorf("empty range should be unbounded, got %v..%v (%v)", start, end, err)
	}
}

func TestConfigError_Format(t *testing.T) {
	e := &ConfigError{Type: ErrParsing, Message: "bad", Err: errors.New("boom")}
	if e.Error() != "[PARSING_FAILED] bad: boom" {
		t.Errorf("unexpected format: %s", e.Error())
	}
	if (&ConfigError{Type: ErrMissingEnv, Message: "x"}).Error() != "[MISSING_ENV] x" {
		t.Error("unexpected format without wrapped error")
	}
}
