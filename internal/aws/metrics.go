package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metrics publishes per-step pipeline counters to CloudWatch. Emission is
// best-effort: callers log and continue when PutMetricData fails.
type Metrics struct {
	CloudWatch CloudWatchAPI
	Namespace  string
	nowFunc    func() time.Time
}

// NewMetrics returns a Metrics emitter for the given namespace.
func NewMetrics(cw CloudWatchAPI, namespace string) *Metrics {
	return &Metrics{
		CloudWatch: cw,
		Namespace:  namespace,
		nowFunc:    time.Now,
	}
}

// RecordStep emits a single count for a pipeline step outcome.
func (m *Metrics) RecordStep(ctx context.Context, step string, success bool) error {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	now := m.nowFunc()

	_, err := m.CloudWatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &m.Namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: awsString("PipelineStep"),
				Timestamp:  &now,
				Value:      awsFloat64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: awsString("Step"), Value: &step},
					{Name: awsString("Outcome"), Value: &outcome},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

func awsFloat64(f float64) *float64 { return &f }
