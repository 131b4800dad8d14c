package traffic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appboard/internal/domain"
)

type mockCloudWatchAPI struct {
	getMetricDataFunc func(ctx context.Context, params *cloudwatch.GetMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error)
}

func (m *mockCloudWatchAPI) GetMetricData(ctx context.Context, params *cloudwatch.GetMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error) {
	return m.getMetricDataFunc(ctx, params, optFns...)
}

func TestFetchEmitsSeriesPerMetric(t *testing.T) {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	r := domain.TimeRange{Start: start, End: start.Add(time.Hour), Granularity: domain.GranularityFiveMinutes}

	api := &mockCloudWatchAPI{
		getMetricDataFunc: func(_ context.Context, params *cloudwatch.GetMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error) {
			require.Len(t, params.MetricDataQueries, 4)
			for _, q := range params.MetricDataQueries {
				assert.Equal(t, "AWS/ApiGateway", aws.ToString(q.MetricStat.Metric.Namespace))
				require.Len(t, q.MetricStat.Metric.Dimensions, 1)
				assert.Equal(t, "demo-gateway", aws.ToString(q.MetricStat.Metric.Dimensions[0].Value))
			}
			return &cloudwatch.GetMetricDataOutput{
				MetricDataResults: []types.MetricDataResult{
					{Id: aws.String(MetricRequests), Timestamps: []time.Time{start}, Values: []float64{1200}},
					{Id: aws.String(MetricClientErrors), Timestamps: []time.Time{start}, Values: []float64{40}},
					{Id: aws.String(MetricServerErrors), Timestamps: []time.Time{start}, Values: []float64{8}},
					{Id: aws.String(MetricLatencyAvg), Timestamps: []time.Time{start}, Values: []float64{182.4}},
				},
			}, nil
		},
	}

	series, attrs, err := NewClientWithAPI(api).Fetch(context.Background(), "demo-gateway", r)
	require.NoError(t, err)
	assert.Nil(t, attrs)
	require.Len(t, series, 4)

	byMetric := map[string]domain.SourceSeries{}
	for _, s := range series {
		assert.Equal(t, SourceID, s.SourceID)
		assert.Equal(t, "demo-gateway", s.ResourceID)
		byMetric[s.Metric] = s
	}
	assert.Equal(t, 1200.0, byMetric[MetricRequests].Total())
	assert.Equal(t, 8.0, byMetric[MetricServerErrors].Total())
	assert.Equal(t, "ms", byMetric[MetricLatencyAvg].Unit)
}

func TestFetchClassifiesFailure(t *testing.T) {
	api := &mockCloudWatchAPI{
		getMetricDataFunc: func(context.Context, *cloudwatch.GetMetricDataInput, ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error) {
			return nil, errors.New("boom")
		},
	}

	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	r := domain.TimeRange{Start: start, End: start.Add(time.Hour), Granularity: domain.GranularityHour}

	_, _, err := NewClientWithAPI(api).Fetch(context.Background(), "demo-gateway", r)
	require.Error(t, err)

	var ce *domain.ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, domain.ConnectorUpstream, ce.Kind)
	assert.Equal(t, SourceID, ce.Source)
}

func TestSupportsEveryGranularity(t *testing.T) {
	c := NewClientWithAPI(nil)
	for _, g := range domain.GranularityLadder() {
		assert.True(t, c.SupportsGranularity(g))
	}
}
