// Package retrain turns a dataset landing in S3 into a freshly distilled rule
// set: it runs the pipeline on the object, uploads the rendered artifacts,
// records the run and emits run metrics.
//
// The Publisher half is shared with the command-line distiller, which writes
// to a local directory instead of S3.
package retrain

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"irrigation/internal/dataset"
	"irrigation/internal/distill"
	"irrigation/internal/pipeline"
	"irrigation/internal/publish"
	"irrigation/internal/types"
)

// RunRecorder persists run summaries. *db.RunRepository satisfies it.
type RunRecorder interface {
	Insert(ctx context.Context, s *types.RunSummary) error
}

// S3API is the subset of the S3 client used to read datasets and upload
// artifacts.
type S3API interface {
	dataset.S3GetClient
	publish.S3PutClient
}

// Publisher delivers a finished report. Runs and Metrics are optional.
type Publisher struct {
	Formats []distill.Format
	Runs    RunRecorder
	Metrics publish.RunMetrics
	Log     *slog.Logger
}

// Publish uploads the artifacts of rep to sink, then audits the run and
// emits its metrics. An audit failure is returned after the artifacts are
// already stored.
func (p *Publisher) Publish(ctx context.Context, sink publish.Sink, rep *pipeline.Report) error {
	artifacts, err := rep.Artifacts(p.Formats)
	if err != nil {
		return err
	}
	if err := publish.PutAll(ctx, sink, artifacts); err != nil {
		return err
	}

	summary := rep.Summary()
	if p.Runs != nil {
		if err := p.Runs.Insert(ctx, summary); err != nil {
			return fmt.Errorf("failed to audit run %s: %w", rep.RunID, err)
		}
	}
	if p.Metrics != nil {
		p.Metrics.RecordRun(ctx, summary)
	}

	p.logger().InfoContext(ctx, "published run artifacts",
		"run_id", rep.RunID,
		"site", rep.Site,
		"artifacts", len(artifacts),
		"audited", p.Runs != nil,
	)
	return nil
}

func (p *Publisher) logger() *slog.Logger {
	if p.Log == nil {
		return slog.Default()
	}
	return p.Log
}

// Config holds the configuration for the retraining Lambda.
type Config struct {
	// S3 Validation
	DatasetBucket string // Strictly validate input event bucket

	// Artifacts land under OutputBucket/OutputPrefix/<site>/
	OutputBucket string
	OutputPrefix string

	Pipeline pipeline.Config
}

// RunContext identifies the dataset object a run is trained on.
type RunContext struct {
	Site   string `json:"site"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// Retrainer runs the pipeline for one dataset object and publishes the result.
type Retrainer struct {
	Config    Config
	S3        S3API
	Runner    *pipeline.Runner
	Publisher *Publisher
	Log       *slog.Logger
}

// OutputSink returns the sink artifacts of site are uploaded to.
func (r *Retrainer) OutputSink(site string) publish.S3Sink {
	return publish.S3Sink{
		Client: r.S3,
		Bucket: r.Config.OutputBucket,
		Prefix: path.Join(r.Config.OutputPrefix, site),
	}
}

// ProcessRun trains on rc and publishes the artifacts.
func (r *Retrainer) ProcessRun(ctx context.Context, rc RunContext) (*pipeline.Report, error) {
	cfg := r.Config.Pipeline
	cfg.Site = rc.Site

	src := dataset.S3Source{Client: r.S3, Bucket: rc.Bucket, Key: rc.Key}
	rep, err := r.Runner.Run(ctx, src, cfg)
	if err != nil {
		return nil, err
	}

	if err := r.Publisher.Publish(ctx, r.OutputSink(rc.Site), rep); err != nil {
		return rep, err
	}
	return rep, nil
}
