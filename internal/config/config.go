// Package config defines the configuration of the irrigation rule distiller.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	Command-line flags (Highest) -> OS Environment -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Flags are applied by the binaries after LoadConfig returns; they must call
// Validate again once they have done so.
package config

import (
	"fmt"
	"time"

	"irrigation/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Source kinds accepted by SourceConfig.Kind.
const (
	SourceFile    = "file"
	SourceS3      = "s3"
	SourceArchive = "archive"
	SourceDB      = "db"
)

// Config is the top-level configuration struct.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"irrigation-distiller"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Site        string `envconfig:"SITE" default:"ankara" validate:"required,max=64"`

	Pipeline      PipelineConfig
	Source        SourceConfig
	Output        OutputConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// PipelineConfig holds the training parameters of a run.
type PipelineConfig struct {
	MaxDepth          int      `envconfig:"MAX_DEPTH" default:"5" validate:"min=1,max=8"`
	TestFraction      float64  `envconfig:"TEST_FRACTION" default:"0.2" validate:"gt=0,lt=1"`
	RandomSeed        int64    `envconfig:"RANDOM_SEED" default:"42"`
	FeatureSet        []string `envconfig:"FEATURE_SET" default:"temp_mean,precipitation_mm,humidity_mean,soil_moisture,season,sensor_reading" validate:"min=1,dive,required"`
	AccuracyThreshold float64  `envconfig:"ACCURACY_THRESHOLD" default:"0.9" validate:"gte=0,lte=1"`
	VerifySamples     int      `envconfig:"VERIFY_SAMPLES" default:"1000" validate:"min=0"`
}

// SourceConfig selects where the daily record table is read from.
type SourceConfig struct {
	Kind string `envconfig:"SOURCE_KIND" default:"file" validate:"oneof=file s3 archive db"`

	// file
	Path string `envconfig:"SOURCE_PATH" default:"weather_data.csv" validate:"required_if=Kind file"`

	// s3
	Bucket string `envconfig:"SOURCE_BUCKET" validate:"required_if=Kind s3"`
	Key    string `envconfig:"SOURCE_KEY" validate:"required_if=Kind s3"`

	// archive and db
	Latitude   float64 `envconfig:"SOURCE_LATITUDE" default:"39.93" validate:"gte=-90,lte=90"`
	Longitude  float64 `envconfig:"SOURCE_LONGITUDE" default:"32.86" validate:"gte=-180,lte=180"`
	Timezone   string  `envconfig:"SOURCE_TIMEZONE" default:"Europe/Istanbul"`
	StartDate  string  `envconfig:"SOURCE_START_DATE" default:"2020-01-01" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string  `envconfig:"SOURCE_END_DATE" default:"2024-12-31" validate:"omitempty,datetime=2006-01-02"`
	ArchiveURL string  `envconfig:"ARCHIVE_BASE_URL" validate:"omitempty,url"` // Empty uses the public archive
}

// OutputConfig holds where rendered artifacts are written. When Bucket is set
// artifacts go to S3 instead of Dir.
type OutputConfig struct {
	Dir     string   `envconfig:"OUTPUT_DIR" default:"out"`
	Bucket  string   `envconfig:"OUTPUT_BUCKET"`
	Prefix  string   `envconfig:"OUTPUT_PREFIX" default:"rules"`
	Formats []string `envconfig:"OUTPUT_FORMATS" default:"text,c,go,json" validate:"min=1,dive,oneof=text c go json"`
}

// DatabaseConfig holds the connection used for the observation source and
// the run audit.
type DatabaseConfig struct {
	// Resolved from SSM or Env
	URL SecretString `envconfig:"DATABASE_URL" validate:"omitempty,url"`

	AuditRuns      bool          `envconfig:"AUDIT_RUNS" default:"false"`
	MaxConns       int32         `envconfig:"DB_MAX_CONNS" default:"4" validate:"min=1"`
	AcquireTimeout time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"5s"`
}

// AWSConfig holds regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"IrrigationDistiller"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Location returns the site coordinates used by the archive source.
func (s SourceConfig) Location() types.Location {
	return types.Location{Lat: s.Latitude, Lon: s.Longitude, Timezone: s.Timezone}
}

// Range parses StartDate and EndDate. Either may be empty, in which case the
// corresponding bound is the zero time.
func (s SourceConfig) Range() (start, end time.Time, err error) {
	if s.StartDate != "" {
		if start, err = time.Parse(time.DateOnly, s.StartDate); err != nil {
			return start, end, fmt.Errorf("start date: %w", err)
		}
	}
	if s.EndDate != "" {
		if end, err = time.Parse(time.DateOnly, s.EndDate); err != nil {
			return start, end, fmt.Errorf("end date: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("end date %s is before start date %s", s.EndDate, s.StartDate)
	}
	return start, end, nil
}

// NeedsDatabase reports whether the configuration requires DATABASE_URL.
func (c *Config) NeedsDatabase() bool {
	return c.Source.Kind == SourceDB || c.Database.AuditRuns
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
