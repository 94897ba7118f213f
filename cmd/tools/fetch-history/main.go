// Package main implements the fetch-history tool, which downloads a site's
// daily weather history from the Open-Meteo archive and stores it as a
// dataset the distiller can train on.
//
// Usage:
//
//	go run ./cmd/tools/fetch-history --out=weather_data.csv
//	go run ./cmd/tools/fetch-history --start=2015-01-01 --end=2024-12-31 --out=history.csv.zst
//	go run ./cmd/tools/fetch-history --site=konya --lat=37.87 --lon=32.48 --store
//	go run ./cmd/tools/fetch-history --out=daily.csv.zst --upload
//
// The site location and date range default to SOURCE_LATITUDE,
// SOURCE_LONGITUDE, SOURCE_TIMEZONE, SOURCE_START_DATE and SOURCE_END_DATE.
// --store upserts the rows into the observations table (DATABASE_URL).
// --upload puts the written file under datasets/{site}/ in SOURCE_BUCKET,
// which triggers the retraining Lambda.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"

	"irrigation/internal/config"
	"irrigation/internal/dataset"
	"irrigation/internal/db"
	"irrigation/internal/external"
	"irrigation/internal/publish"
	"irrigation/internal/types"
)

// options is the resolved invocation.
type options struct {
	site    string
	query   external.ArchiveQuery
	out     string
	store   bool
	upload  bool
	baseURL string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.LoadConfig(config.ProviderFromEnv())
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	opts, err := parseOptions(args, cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	client := external.NewOpenMeteoClient(&http.Client{Timeout: 60 * time.Second}, external.OpenMeteoConfig{
		BaseURL: opts.baseURL,
		Logger:  logger,
	})

	rows, err := client.FetchDaily(ctx, opts.query)
	if err != nil {
		fmt.Fprintf(stderr, "error: fetching history: %v\n", err)
		return 1
	}
	if err := dataset.WriteFile(opts.out, rows); err != nil {
		fmt.Fprintf(stderr, "error: writing %s: %v\n", opts.out, err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote %d days (%s..%s) to %s\n", len(rows),
		opts.query.Start.Format(time.DateOnly), opts.query.End.Format(time.DateOnly), opts.out)

	if opts.store {
		n, err := storeRows(ctx, cfg.Database, opts.site, rows)
		if err != nil {
			fmt.Fprintf(stderr, "error: storing observations: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "stored %d observations for %s\n", n, opts.site)
	}

	if opts.upload {
		key, err := uploadFile(ctx, cfg, opts.site, opts.out)
		if err != nil {
			fmt.Fprintf(stderr, "error: uploading dataset: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "uploaded s3://%s/%s\n", cfg.Source.Bucket, key)
	}
	return 0
}

// parseOptions resolves flags against the configured defaults.
func parseOptions(args []string, cfg *config.Config, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("fetch-history", flag.ContinueOnError)
	fs.SetOutput(stderr)

	site := fs.String("site", cfg.Site, "site name")
	lat := fs.Float64("lat", cfg.Source.Latitude, "latitude")
	lon := fs.Float64("lon", cfg.Source.Longitude, "longitude")
	tz := fs.String("tz", cfg.Source.Timezone, "IANA timezone the archive aggregates days in")
	start := fs.String("start", cfg.Source.StartDate, "first day, YYYY-MM-DD")
	end := fs.String("end", cfg.Source.EndDate, "last day, YYYY-MM-DD")
	out := fs.String("out", cfg.Source.Path, "output CSV path, compressed when it ends in .zst")
	store := fs.Bool("store", false, "upsert the rows into the observations table")
	upload := fs.Bool("upload", false, "upload the file to the dataset bucket")
	baseURL := fs.String("archive-url", cfg.Source.ArchiveURL, "archive base URL override")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	src := cfg.Source
	src.StartDate, src.EndDate = *start, *end
	from, to, err := src.Range()
	if err != nil {
		return options{}, err
	}
	q := external.ArchiveQuery{
		Location: types.Location{Lat: *lat, Lon: *lon, Timezone: *tz},
		Start:    from,
		End:      to,
	}
	if err := q.Validate(); err != nil {
		return options{}, err
	}
	if *site == "" {
		return options{}, fmt.Errorf("--site must not be empty")
	}
	if *upload && cfg.Source.Bucket == "" {
		return options{}, fmt.Errorf("--upload requires SOURCE_BUCKET")
	}
	if *store && cfg.Database.URL == "" {
		return options{}, fmt.Errorf("--store requires DATABASE_URL")
	}

	return options{
		site:    *site,
		query:   q,
		out:     *out,
		store:   *store,
		upload:  *upload,
		baseURL: *baseURL,
	}, nil
}

func storeRows(ctx context.Context, dc config.DatabaseConfig, site string, rows []types.RawObservation) (int, error) {
	pool, err := pgxpool.New(ctx, dc.URL.Unmask())
	if err != nil {
		return 0, err
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return 0, err
	}
	return db.NewObservationRepository(pool).Upsert(ctx, site, rows)
}

// uploadFile stores the file under datasets/{site}/ and returns its key.
func uploadFile(ctx context.Context, cfg *config.Config, site, file string) (string, error) {
	body, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return "", err
	}
	if cfg.AWS.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
	}

	sink := publish.S3Sink{
		Client: s3.NewFromConfig(awsCfg),
		Bucket: cfg.Source.Bucket,
		Prefix: path.Join("datasets", site),
	}
	a := publish.Artifact{Name: filepath.Base(file), ContentType: "text/csv", Body: body}
	if dataset.IsCompressed(file) {
		a.ContentType = "application/zstd"
	}
	if err := sink.Put(ctx, a); err != nil {
		return "", err
	}
	return sink.Key(a.Name), nil
}
