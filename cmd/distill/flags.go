package main

import (
	"flag"
	"fmt"
	"strings"

	"irrigation/internal/config"
)

// cliFlags holds the raw flag values. Only flags the user actually set are
// copied onto the loaded configuration.
type cliFlags struct {
	source       string
	input        string
	bucket       string
	key          string
	start        string
	end          string
	site         string
	maxDepth     int
	testFraction float64
	seed         int64
	features     string
	threshold    float64
	out          string
	outBucket    string
	formats      string
	audit        bool
	metrics      bool
	dryRun       bool
	quiet        bool
}

func registerFlags(fs *flag.FlagSet) *cliFlags {
	f := &cliFlags{}
	fs.StringVar(&f.source, "source", "", "record source: file, s3, archive or db (SOURCE_KIND)")
	fs.StringVar(&f.input, "input", "", "CSV path, optionally .zst compressed (SOURCE_PATH)")
	fs.StringVar(&f.bucket, "bucket", "", "dataset bucket for the s3 source (SOURCE_BUCKET)")
	fs.StringVar(&f.key, "key", "", "dataset object key for the s3 source (SOURCE_KEY)")
	fs.StringVar(&f.start, "start", "", "first day, YYYY-MM-DD (SOURCE_START_DATE)")
	fs.StringVar(&f.end, "end", "", "last day, YYYY-MM-DD (SOURCE_END_DATE)")
	fs.StringVar(&f.site, "site", "", "site name (SITE)")
	fs.IntVar(&f.maxDepth, "max-depth", 0, "maximum tree depth, 1-8 (MAX_DEPTH)")
	fs.Float64Var(&f.testFraction, "test-fraction", 0, "evaluation share of the records (TEST_FRACTION)")
	fs.Int64Var(&f.seed, "seed", 0, "random seed for the split (RANDOM_SEED)")
	fs.StringVar(&f.features, "features", "", "comma separated feature set (FEATURE_SET)")
	fs.Float64Var(&f.threshold, "threshold", 0, "accuracy below which a warning is raised (ACCURACY_THRESHOLD)")
	fs.StringVar(&f.out, "out", "", "output directory (OUTPUT_DIR)")
	fs.StringVar(&f.outBucket, "out-bucket", "", "upload artifacts to this bucket instead of a directory (OUTPUT_BUCKET)")
	fs.StringVar(&f.formats, "formats", "", "comma separated render formats: text, c, go, json (OUTPUT_FORMATS)")
	fs.BoolVar(&f.audit, "audit", false, "record the run in the database (AUDIT_RUNS)")
	fs.BoolVar(&f.metrics, "metrics", false, "emit CloudWatch run metrics (ENABLE_METRICS)")
	fs.BoolVar(&f.dryRun, "dry-run", false, "print the effective configuration and exit")
	fs.BoolVar(&f.quiet, "quiet", false, "do not print the run summary")
	return f
}

// apply copies every flag set on the command line onto cfg and re-validates
// it.
func (f *cliFlags) apply(fs *flag.FlagSet, cfg *config.Config) error {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "source":
			cfg.Source.Kind = f.source
		case "input":
			cfg.Source.Path = f.input
		case "bucket":
			cfg.Source.Bucket = f.bucket
		case "key":
			cfg.Source.Key = f.key
		case "start":
			cfg.Source.StartDate = f.start
		case "end":
			cfg.Source.EndDate = f.end
		case "site":
			cfg.Site = f.site
		case "max-depth":
			cfg.Pipeline.MaxDepth = f.maxDepth
		case "test-fraction":
			cfg.Pipeline.TestFraction = f.testFraction
		case "seed":
			cfg.Pipeline.RandomSeed = f.seed
		case "features":
			cfg.Pipeline.FeatureSet = splitList(f.features)
		case "threshold":
			cfg.Pipeline.AccuracyThreshold = f.threshold
		case "out":
			cfg.Output.Dir = f.out
		case "out-bucket":
			cfg.Output.Bucket = f.outBucket
		case "formats":
			cfg.Output.Formats = splitList(f.formats)
		case "audit":
			cfg.Database.AuditRuns = f.audit
		case "metrics":
			cfg.Observability.EnableMetrics = f.metrics
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
