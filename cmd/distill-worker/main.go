// Package main is the entrypoint for the retraining Lambda function.
//
// The worker is triggered by S3 ObjectCreated events (filtered to the
// datasets/ prefix) when a new daily history lands in the dataset bucket. It
// trains and distills the site's rules and uploads the rendered artifacts to
// the output bucket.
//
// This file handles dependency wiring (Cold Start) and delegates all business
// logic to the internal/retrain package.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"

	"irrigation/internal/config"
	"irrigation/internal/db"
	"irrigation/internal/distill"
	"irrigation/internal/pipeline"
	"irrigation/internal/publish"
	"irrigation/internal/retrain"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Retrain Lambda initializing (cold start)")

	cfg, err := config.LoadConfig(config.ProviderFromEnv())
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	r, cleanup, err := newRetrainer(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to wire retrainer", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	logger.Info("Retrain Lambda initialized",
		"version", cfg.Build.String(),
		"dataset_bucket", r.Config.DatasetBucket,
		"output_bucket", r.Config.OutputBucket,
		"output_prefix", r.Config.OutputPrefix,
		"audit_runs", cfg.Database.AuditRuns,
		"metric_namespace", cfg.Observability.MetricNamespace,
	)

	if config.IsLocal(cfg.Environment) {
		logger.Info("APP_ENV=local: reading event from stdin")
		payload, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Error("Failed to read stdin", "error", err)
			os.Exit(1)
		}
		if len(payload) == 0 {
			logger.Error("No input received on stdin")
			os.Exit(1)
		}
		if err := r.Handler(context.Background(), json.RawMessage(payload)); err != nil {
			logger.Error("Handler execution failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Handler execution completed successfully")
		return
	}

	lambda.Start(r.Handler)
}

// newRetrainer builds the Retrainer from cfg. The returned cleanup closes the
// database pool when one was opened.
func newRetrainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*retrain.Retrainer, func(), error) {
	if cfg.Source.Bucket == "" || cfg.Output.Bucket == "" {
		return nil, nil, fmt.Errorf("SOURCE_BUCKET and OUTPUT_BUCKET are required")
	}

	pcfg, err := pipeline.ConfigFrom(cfg.Site, cfg.Pipeline)
	if err != nil {
		return nil, nil, err
	}
	formats := make([]distill.Format, 0, len(cfg.Output.Formats))
	for _, name := range cfg.Output.Formats {
		f, err := distill.ParseFormat(name)
		if err != nil {
			return nil, nil, err
		}
		formats = append(formats, f)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}
	if cfg.AWS.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// LocalStack serves buckets on the path, not a subdomain.
		o.UsePathStyle = cfg.AWS.EndpointURL != ""
	})

	pub := &retrain.Publisher{Formats: formats, Log: logger}
	if cfg.Observability.EnableMetrics {
		pub.Metrics = publish.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), logger).
			WithNamespace(cfg.Observability.MetricNamespace)
	} else {
		pub.Metrics = publish.NoopMetrics{}
	}

	cleanup := func() {}
	if cfg.Database.AuditRuns {
		pool, err := pgxpool.New(ctx, cfg.Database.URL.Unmask())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		pub.Runs = db.NewRunRepository(pool)
		cleanup = pool.Close
	}

	r := &retrain.Retrainer{
		Config: retrain.Config{
			DatasetBucket: cfg.Source.Bucket,
			OutputBucket:  cfg.Output.Bucket,
			OutputPrefix:  cfg.Output.Prefix,
			Pipeline:      pcfg,
		},
		S3:        s3Client,
		Runner:    pipeline.NewRunner(logger),
		Publisher: pub,
		Log:       logger,
	}
	return r, cleanup, nil
}
