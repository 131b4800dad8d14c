package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/applicationautoscaling"
	aastypes "github.com/aws/aws-sdk-go-v2/service/applicationautoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appboard/internal/domain"
)

type mockDynamoDBAPI struct {
	describeTableFunc func(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

func (m *mockDynamoDBAPI) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return m.describeTableFunc(ctx, params, optFns...)
}

type mockCloudWatchAPI struct {
	getMetricDataFunc func(ctx context.Context, params *cloudwatch.GetMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error)
}

func (m *mockCloudWatchAPI) GetMetricData(ctx context.Context, params *cloudwatch.GetMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error) {
	return m.getMetricDataFunc(ctx, params, optFns...)
}

type mockAutoScalingAPI struct {
	describeScalableTargetsFunc func(ctx context.Context, params *applicationautoscaling.DescribeScalableTargetsInput, optFns ...func(*applicationautoscaling.Options)) (*applicationautoscaling.DescribeScalableTargetsOutput, error)
}

func (m *mockAutoScalingAPI) DescribeScalableTargets(ctx context.Context, params *applicationautoscaling.DescribeScalableTargetsInput, optFns ...func(*applicationautoscaling.Options)) (*applicationautoscaling.DescribeScalableTargetsOutput, error) {
	return m.describeScalableTargetsFunc(ctx, params, optFns...)
}

func consumptionAPI(start time.Time) *mockCloudWatchAPI {
	return &mockCloudWatchAPI{
		getMetricDataFunc: func(_ context.Context, params *cloudwatch.GetMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error) {
			return &cloudwatch.GetMetricDataOutput{
				MetricDataResults: []cwtypes.MetricDataResult{
					{Id: aws.String(MetricConsumedRCU), Timestamps: []time.Time{start}, Values: []float64{840}},
					{Id: aws.String(MetricConsumedWCU), Timestamps: []time.Time{start}, Values: []float64{120}},
					{Id: aws.String(MetricReadThrottles), Timestamps: []time.Time{start}, Values: []float64{2}},
					{Id: aws.String(MetricWriteThrottles), Timestamps: []time.Time{start}, Values: []float64{0}},
				},
			}, nil
		},
	}
}

func TestFetchProvisionedTable(t *testing.T) {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	r := domain.TimeRange{Start: start, End: start.Add(time.Hour), Granularity: domain.GranularityFiveMinutes}

	db := &mockDynamoDBAPI{
		describeTableFunc: func(_ context.Context, params *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			assert.Equal(t, "demo-users", aws.ToString(params.TableName))
			return &dynamodb.DescribeTableOutput{Table: &ddbtypes.TableDescription{
				TableSizeBytes: aws.Int64(1 << 30),
				ItemCount:      aws.Int64(250000),
				BillingModeSummary: &ddbtypes.BillingModeSummary{
					BillingMode: ddbtypes.BillingModeProvisioned,
				},
				ProvisionedThroughput: &ddbtypes.ProvisionedThroughputDescription{
					ReadCapacityUnits:  aws.Int64(100),
					WriteCapacityUnits: aws.Int64(50),
				},
			}}, nil
		},
	}
	scaling := &mockAutoScalingAPI{
		describeScalableTargetsFunc: func(_ context.Context, params *applicationautoscaling.DescribeScalableTargetsInput, _ ...func(*applicationautoscaling.Options)) (*applicationautoscaling.DescribeScalableTargetsOutput, error) {
			assert.Equal(t, aastypes.ServiceNamespaceDynamodb, params.ServiceNamespace)
			assert.Equal(t, []string{"table/demo-users"}, params.ResourceIds)
			return &applicationautoscaling.DescribeScalableTargetsOutput{
				ScalableTargets: []aastypes.ScalableTarget{
					{ScalableDimension: aastypes.ScalableDimensionDynamoDBTableReadCapacityUnits, MaxCapacity: aws.Int32(400)},
					{ScalableDimension: aastypes.ScalableDimensionDynamoDBTableWriteCapacityUnits, MaxCapacity: aws.Int32(200)},
				},
			}, nil
		},
	}

	series, attrs, err := NewClientWithAPIs(db, consumptionAPI(start), scaling).Fetch(context.Background(), "demo-users", r)
	require.NoError(t, err)
	require.Len(t, series, 4)

	byMetric := map[string]domain.SourceSeries{}
	for _, s := range series {
		assert.Equal(t, SourceID, s.SourceID)
		assert.Equal(t, "demo-users", s.ResourceID)
		byMetric[s.Metric] = s
	}
	assert.Equal(t, 840.0, byMetric[MetricConsumedRCU].Total())
	assert.Equal(t, 2.0, byMetric[MetricReadThrottles].Total())

	assert.Equal(t, "PROVISIONED", attrs[domain.AttrBillingMode])
	assert.Equal(t, "1073741824", attrs[domain.AttrSizeBytes])
	assert.Equal(t, "250000", attrs[domain.AttrItemCount])
	assert.Equal(t, "100", attrs[domain.AttrProvisionedRCU])
	assert.Equal(t, "50", attrs[domain.AttrProvisionedWCU])
	assert.Equal(t, "400", attrs[domain.AttrAutoscaleMaxRCU])
	assert.Equal(t, "200", attrs[domain.AttrAutoscaleMaxWCU])
}

func TestFetchOnDemandTableSkipsScalingLookup(t *testing.T) {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	r := domain.TimeRange{Start: start, End: start.Add(time.Hour), Granularity: domain.GranularityFiveMinutes}

	db := &mockDynamoDBAPI{
		describeTableFunc: func(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return &dynamodb.DescribeTableOutput{Table: &ddbtypes.TableDescription{
				TableSizeBytes: aws.Int64(2048),
				ItemCount:      aws.Int64(12),
				BillingModeSummary: &ddbtypes.BillingModeSummary{
					BillingMode: ddbtypes.BillingModePayPerRequest,
				},
			}}, nil
		},
	}
	scaling := &mockAutoScalingAPI{
		describeScalableTargetsFunc: func(context.Context, *applicationautoscaling.DescribeScalableTargetsInput, ...func(*applicationautoscaling.Options)) (*applicationautoscaling.DescribeScalableTargetsOutput, error) {
			t.Fatal("scaling lookup must not run for on-demand tables")
			return nil, nil
		},
	}

	_, attrs, err := NewClientWithAPIs(db, consumptionAPI(start), scaling).Fetch(context.Background(), "demo-users", r)
	require.NoError(t, err)
	assert.Equal(t, "PAY_PER_REQUEST", attrs[domain.AttrBillingMode])
	assert.NotContains(t, attrs, domain.AttrProvisionedRCU)
	assert.NotContains(t, attrs, domain.AttrAutoscaleMaxRCU)
}

func TestFetchInfersLegacyProvisionedMode(t *testing.T) {
	table := &ddbtypes.TableDescription{
		TableSizeBytes: aws.Int64(1),
		ItemCount:      aws.Int64(1),
		ProvisionedThroughput: &ddbtypes.ProvisionedThroughputDescription{
			ReadCapacityUnits:  aws.Int64(5),
			WriteCapacityUnits: aws.Int64(5),
		},
	}
	attrs := tableAttrs(table)
	assert.Equal(t, "PROVISIONED", attrs[domain.AttrBillingMode])
	assert.Equal(t, "5", attrs[domain.AttrProvisionedRCU])
}

func TestFetchFailsWhenDescribeFails(t *testing.T) {
	db := &mockDynamoDBAPI{
		describeTableFunc: func(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return nil, errors.New("table not found")
		},
	}

	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	r := domain.TimeRange{Start: start, End: start.Add(time.Hour), Granularity: domain.GranularityHour}

	_, _, err := NewClientWithAPIs(db, nil, nil).Fetch(context.Background(), "demo-users", r)
	require.Error(t, err)

	var ce *domain.ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, domain.ConnectorUpstream, ce.Kind)
}

func TestScalingFailureLeavesCeilingsUnset(t *testing.T) {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	r := domain.TimeRange{Start: start, End: start.Add(time.Hour), Granularity: domain.GranularityFiveMinutes}

	db := &mockDynamoDBAPI{
		describeTableFunc: func(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return &dynamodb.DescribeTableOutput{Table: &ddbtypes.TableDescription{
				TableSizeBytes:     aws.Int64(1),
				ItemCount:          aws.Int64(1),
				BillingModeSummary: &ddbtypes.BillingModeSummary{BillingMode: ddbtypes.BillingModeProvisioned},
				ProvisionedThroughput: &ddbtypes.ProvisionedThroughputDescription{
					ReadCapacityUnits:  aws.Int64(10),
					WriteCapacityUnits: aws.Int64(10),
				},
			}}, nil
		},
	}
	scaling := &mockAutoScalingAPI{
		describeScalableTargetsFunc: func(context.Context, *applicationautoscaling.DescribeScalableTargetsInput, ...func(*applicationautoscaling.Options)) (*applicationautoscaling.DescribeScalableTargetsOutput, error) {
			return nil, errors.New("access denied")
		},
	}

	_, attrs, err := NewClientWithAPIs(db, consumptionAPI(start), scaling).Fetch(context.Background(), "demo-users", r)
	require.NoError(t, err)
	assert.Equal(t, "10", attrs[domain.AttrProvisionedRCU])
	assert.NotContains(t, attrs, domain.AttrAutoscaleMaxRCU)
}
