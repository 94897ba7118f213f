package retrain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"irrigation/internal/dataset"
	"irrigation/internal/types"
)

// datasetPrefix is the first segment of every dataset object key.
const datasetPrefix = "datasets"

// ParseDatasetKey extracts the site from a dataset object key.
// The expected format is: "datasets/{site}/{name}.csv" or
// "datasets/{site}/{name}.csv.zst".
func ParseDatasetKey(key string) (string, error) {
	parts := strings.Split(key, "/")
	if len(parts) < 3 {
		return "", fmt.Errorf("invalid dataset key format: %q (expected datasets/{site}/{name}.csv)", key)
	}
	if parts[0] != datasetPrefix {
		return "", fmt.Errorf("invalid dataset key prefix: %q (expected %q)", parts[0], datasetPrefix)
	}
	site := parts[1]
	if site == "" {
		return "", fmt.Errorf("empty site in dataset key %q", key)
	}
	name := strings.TrimSuffix(parts[len(parts)-1], dataset.ZstdSuffix)
	if !strings.HasSuffix(name, ".csv") {
		return "", fmt.Errorf("dataset key %q is not a csv file", key)
	}
	return site, nil
}

// Handler is the Lambda entrypoint. It accepts either an S3 ObjectCreated
// event for a dataset object or a manual RunContext JSON, which may omit the
// bucket (defaults to Config.DatasetBucket) and the site (parsed from the key).
//
// Events from a foreign bucket are logged and discarded. Runs that fail on
// the data itself (missing columns, nothing left after cleaning, invalid
// configuration) are logged and acknowledged, since a retry would see the
// same object. Storage, upstream and internal failures are returned so the
// invocation is retried and alarmed on.
func (r *Retrainer) Handler(ctx context.Context, payload json.RawMessage) error {
	var s3Event events.S3Event
	if err := json.Unmarshal(payload, &s3Event); err == nil && len(s3Event.Records) > 0 {
		return r.handleS3Event(ctx, s3Event)
	}

	var rc RunContext
	if err := json.Unmarshal(payload, &rc); err != nil {
		return fmt.Errorf("retrain: failed to parse payload as S3Event or RunContext: %w", err)
	}
	if rc.Key == "" {
		return fmt.Errorf("retrain: manual RunContext missing required field 'key'")
	}
	if rc.Bucket == "" {
		rc.Bucket = r.Config.DatasetBucket
	}
	if rc.Site == "" {
		site, err := ParseDatasetKey(rc.Key)
		if err != nil {
			return fmt.Errorf("retrain: %w", err)
		}
		rc.Site = site
	}

	r.Log.InfoContext(ctx, "processing manual run", "site", rc.Site, "bucket", rc.Bucket, "key", rc.Key)
	return r.run(ctx, rc)
}

// handleS3Event processes the first record of the event; each dataset upload
// produces its own notification.
func (r *Retrainer) handleS3Event(ctx context.Context, s3Event events.S3Event) error {
	record := s3Event.Records[0]
	bucket := record.S3.Bucket.Name
	key := record.S3.Object.URLDecodedKey
	if key == "" {
		key = record.S3.Object.Key
	}

	r.Log.InfoContext(ctx, "processing S3 event", "bucket", bucket, "key", key)

	if bucket != r.Config.DatasetBucket {
		r.Log.ErrorContext(ctx, "S3 event from unexpected bucket, discarding",
			"expected_bucket", r.Config.DatasetBucket,
			"actual_bucket", bucket,
			"key", key,
		)
		return nil
	}

	site, err := ParseDatasetKey(key)
	if err != nil {
		return fmt.Errorf("retrain: failed to parse S3 key: %w", err)
	}
	return r.run(ctx, RunContext{Site: site, Bucket: bucket, Key: key})
}

func (r *Retrainer) run(ctx context.Context, rc RunContext) error {
	rep, err := r.ProcessRun(ctx, rc)
	if err != nil {
		if !retryable(err) {
			r.Log.ErrorContext(ctx, "dataset rejected, not retrying",
				"site", rc.Site,
				"key", rc.Key,
				"error", err,
			)
			return nil
		}
		return fmt.Errorf("retrain %s: %w", rc.Site, err)
	}

	r.Log.InfoContext(ctx, "retraining complete",
		"run_id", rep.RunID,
		"site", rc.Site,
		"accuracy", rep.Model.Accuracy,
		"rules", len(rep.Rules.Rules),
	)
	return nil
}

// retryable reports whether a failed run might succeed on a retry. Errors
// without an AppError in the chain are treated as transient.
func retryable(err error) bool {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return true
	}
	switch appErr.Code {
	case types.ErrCodeMissingData, types.ErrCodeEmptyDataset:
		return false
	}
	return !appErr.Code.IsValidation()
}
