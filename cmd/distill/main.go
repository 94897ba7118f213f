// Package main implements the distill CLI: it trains an irrigation decision
// tree on a site's daily history, distills it into threshold rules and
// writes the rendered rules and the run report.
//
// Usage:
//
//	go run ./cmd/distill --input=weather_data.csv
//	go run ./cmd/distill --source=archive --start=2020-01-01 --end=2024-12-31 --out=out/ankara
//	go run ./cmd/distill --source=s3 --bucket=irrigation-datasets --key=datasets/ankara/daily.csv.zst
//	go run ./cmd/distill --source=db --site=ankara --audit
//
// Every flag overrides the environment variable of the same setting (see
// internal/config). Exit status is 0 on success, 1 on a fatal run error and 2
// on invalid usage. Warnings never change the exit status.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"

	"irrigation/internal/config"
	"irrigation/internal/dataset"
	"irrigation/internal/db"
	"irrigation/internal/distill"
	"irrigation/internal/external"
	"irrigation/internal/pipeline"
	"irrigation/internal/publish"
	"irrigation/internal/retrain"
	"irrigation/internal/types"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without the process exit, so tests can drive it.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("distill", flag.ContinueOnError)
	fs.SetOutput(stderr)
	flags := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.LoadConfig(config.ProviderFromEnv())
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	if err := flags.apply(fs, cfg); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	logger := newLogger(stderr, cfg.LogLevel)
	logger.Info("distill starting", "version", cfg.Build.String(), "site", cfg.Site, "source", cfg.Source.Kind)

	if flags.dryRun {
		fmt.Fprintf(stdout, "source=%s site=%s max_depth=%d test_fraction=%g seed=%d features=%s formats=%s\n",
			cfg.Source.Kind, cfg.Site, cfg.Pipeline.MaxDepth, cfg.Pipeline.TestFraction, cfg.Pipeline.RandomSeed,
			strings.Join(cfg.Pipeline.FeatureSet, ","), strings.Join(cfg.Output.Formats, ","))
		return 0
	}

	rep, err := execute(ctx, cfg, logger)
	if err != nil {
		logger.Error("distillation failed", "error", err)
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			fmt.Fprintf(stderr, "error: %s\n", appErr.Error())
		} else {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return 1
	}

	if !flags.quiet {
		fmt.Fprint(stdout, rep.Text())
	}
	return 0
}

// execute wires the dependencies the configuration asks for, runs the
// pipeline and publishes the result.
func execute(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Report, error) {
	pcfg, err := pipeline.ConfigFrom(cfg.Site, cfg.Pipeline)
	if err != nil {
		return nil, err
	}
	formats, err := parseFormats(cfg.Output.Formats)
	if err != nil {
		return nil, err
	}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
		}
		if cfg.AWS.EndpointURL != "" {
			c.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
		awsCfg = &c
		return c, nil
	}

	var pool *pgxpool.Pool
	if cfg.NeedsDatabase() {
		pool, err = openPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		if err := db.EnsureSchema(ctx, pool); err != nil {
			return nil, err
		}
		logger.Info("database ready", "host", cfg.Database.URL.Host(), "max_conns", cfg.Database.MaxConns)
	}

	src, err := buildSource(ctx, cfg, logger, loadAWS, pool)
	if err != nil {
		return nil, err
	}

	rep, err := pipeline.NewRunner(logger).Run(ctx, src, pcfg)
	if err != nil {
		return nil, err
	}

	pub := &retrain.Publisher{Formats: formats, Log: logger}
	if cfg.Database.AuditRuns {
		pub.Runs = db.NewRunRepository(pool)
	}
	if cfg.Observability.EnableMetrics {
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		pub.Metrics = publish.NewCloudWatchMetrics(cloudwatch.NewFromConfig(c), logger).
			WithNamespace(cfg.Observability.MetricNamespace)
	}

	var s3Client publish.S3PutClient
	if cfg.Output.Bucket != "" {
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		s3Client = s3.NewFromConfig(c)
	}
	sink := outputSink(cfg, s3Client)

	if err := pub.Publish(ctx, sink, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

// outputSink writes to {prefix}/{site}/ in the output bucket when one is
// configured, otherwise to the output directory.
func outputSink(cfg *config.Config, client publish.S3PutClient) publish.Sink {
	if cfg.Output.Bucket == "" {
		return publish.FileSink{Dir: cfg.Output.Dir}
	}
	return publish.S3Sink{
		Client: client,
		Bucket: cfg.Output.Bucket,
		Prefix: path.Join(cfg.Output.Prefix, cfg.Site),
	}
}

// buildSource returns the record source selected by cfg.Source.Kind.
func buildSource(ctx context.Context, cfg *config.Config, logger *slog.Logger, loadAWS func() (aws.Config, error), pool *pgxpool.Pool) (types.RecordSource, error) {
	start, end, err := cfg.Source.Range()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationDateRange, "invalid source date range", err)
	}

	switch cfg.Source.Kind {
	case config.SourceFile:
		return dataset.FileSource{Path: cfg.Source.Path}, nil

	case config.SourceS3:
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		return dataset.S3Source{Client: s3.NewFromConfig(c), Bucket: cfg.Source.Bucket, Key: cfg.Source.Key}, nil

	case config.SourceArchive:
		client := external.NewOpenMeteoClient(&http.Client{Timeout: 60 * time.Second}, external.OpenMeteoConfig{
			BaseURL: cfg.Source.ArchiveURL,
			Logger:  logger,
		})
		return external.ArchiveSource{
			Client: client,
			Query:  external.ArchiveQuery{Location: cfg.Source.Location(), Start: start, End: end},
		}, nil

	case config.SourceDB:
		if pool == nil {
			return nil, fmt.Errorf("database source requires DATABASE_URL")
		}
		return db.ObservationSource{
			Repo:  db.NewObservationRepository(pool),
			Site:  cfg.Site,
			Start: start,
			End:   end,
		}, nil
	}
	return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
}

func openPool(ctx context.Context, dc config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dc.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = dc.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, dc.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, types.NewAppError(types.ErrCodeInternalDB, "database is unreachable", err)
	}
	return pool, nil
}

func parseFormats(names []string) ([]distill.Format, error) {
	out := make([]distill.Format, 0, len(names))
	for _, n := range names {
		f, err := distill.ParseFormat(n)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
