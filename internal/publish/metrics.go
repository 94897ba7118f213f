package publish

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"irrigation/internal/types"
)

// RunMetrics records the outcome of a run.
type RunMetrics interface {
	RecordRun(ctx context.Context, s *types.RunSummary)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertions.
var (
	_ RunMetrics = (*CloudWatchMetrics)(nil)
	_ RunMetrics = NoopMetrics{}
)

// CloudWatchMetrics emits run metrics to CloudWatch.
//
// Metrics emitted, all with the Site dimension:
//   - ModelAccuracy, ReferenceRuleAccuracy (None)
//   - TrainingRecords, EvaluationRecords, DistilledRuleCount, TreeDepth (Count)
//   - RunWarning (Count), one datum per warning with the WarningCode dimension
//
// Failures are logged, never returned: metrics must not fail a run.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics publishing to the
// default namespace.
func NewCloudWatchMetrics(client CloudWatchClient, logger types.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{
		client:    client,
		namespace: types.MetricNamespace,
		logger:    logger,
	}
}

// WithNamespace returns m publishing under ns instead. An empty ns keeps the
// current namespace.
func (m *CloudWatchMetrics) WithNamespace(ns string) *CloudWatchMetrics {
	if ns != "" {
		m.namespace = ns
	}
	return m
}

// RecordRun implements RunMetrics.
func (m *CloudWatchMetrics) RecordRun(ctx context.Context, s *types.RunSummary) {
	site := []cwtypes.Dimension{{Name: aws.String(types.DimSite), Value: aws.String(s.Site)}}

	datum := func(name string, v float64, unit cwtypes.StandardUnit) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Value:      aws.Float64(v),
			Unit:       unit,
			Dimensions: site,
			Timestamp:  aws.Time(s.FinishedAt),
		}
	}

	data := []cwtypes.MetricDatum{
		datum(types.MetricModelAccuracy, s.Accuracy, cwtypes.StandardUnitNone),
		datum(types.MetricReferenceAccuracy, s.ReferenceAccuracy, cwtypes.StandardUnitNone),
		datum(types.MetricTrainingRecords, float64(s.TrainRecords), cwtypes.StandardUnitCount),
		datum(types.MetricEvaluationRecords, float64(s.EvalRecords), cwtypes.StandardUnitCount),
		datum(types.MetricRuleCount, float64(s.Leaves), cwtypes.StandardUnitCount),
		datum(types.MetricTreeDepth, float64(s.TreeDepth), cwtypes.StandardUnitCount),
	}
	for _, code := range s.Warnings {
		d := datum(types.MetricRunWarning, 1, cwtypes.StandardUnitCount)
		d.Dimensions = []cwtypes.Dimension{
			{Name: aws.String(types.DimSite), Value: aws.String(s.Site)},
			{Name: aws.String(types.DimWarningCode), Value: aws.String(code)},
		}
		data = append(data, d)
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record run metrics",
			"error", err.Error(),
			"run_id", s.RunID,
			"site", s.Site,
		)
	}
}

// NoopMetrics discards metrics. Used when no CloudWatch namespace is configured.
type NoopMetrics struct{}

// RecordRun implements RunMetrics.
func (NoopMetrics) RecordRun(context.Context, *types.RunSummary) {}
