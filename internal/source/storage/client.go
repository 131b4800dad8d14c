// Package storage pulls key-value table capacity metrics: table
// description plus CloudWatch AWS/DynamoDB consumption series, with
// autoscaling ceilings for provisioned tables.
package storage

import (
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/applicationautoscaling"
	aastypes "github.com/aws/aws-sdk-go-v2/service/applicationautoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"appboard/internal/domain"
	"appboard/internal/source"
	"appboard/internal/source/cwquery"
)

const SourceID = "storage"

// Normalized metric names emitted per table.
const (
	MetricConsumedRCU    = "consumed_rcu"
	MetricConsumedWCU    = "consumed_wcu"
	MetricReadThrottles  = "read_throttles"
	MetricWriteThrottles = "write_throttles"
)

// DynamoDBAPI is the subset of the DynamoDB client we use.
type DynamoDBAPI interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// AutoScalingAPI is the subset of the Application Auto Scaling client we use.
type AutoScalingAPI interface {
	DescribeScalableTargets(ctx context.Context, params *applicationautoscaling.DescribeScalableTargetsInput, optFns ...func(*applicationautoscaling.Options)) (*applicationautoscaling.DescribeScalableTargetsOutput, error)
}

// Client is the storage connector.
type Client struct {
	db      DynamoDBAPI
	cw      cwquery.CloudWatchAPI
	scaling AutoScalingAPI
}

var _ source.Connector = (*Client)(nil)

// NewClient creates a storage connector from an AWS config.
func NewClient(cfg aws.Config) *Client {
	return &Client{
		db:      dynamodb.NewFromConfig(cfg),
		cw:      cloudwatch.NewFromConfig(cfg),
		scaling: applicationautoscaling.NewFromConfig(cfg),
	}
}

// NewClientWithAPIs creates a storage connector with custom API
// implementations (for testing).
func NewClientWithAPIs(db DynamoDBAPI, cw cwquery.CloudWatchAPI, scaling AutoScalingAPI) *Client {
	return &Client{db: db, cw: cw, scaling: scaling}
}

func (c *Client) Domain() domain.Domain { return domain.DomainStorage }

// SupportsGranularity is true for every step: table metrics resolve down
// to one minute.
func (c *Client) SupportsGranularity(domain.Granularity) bool { return true }

// Fetch returns consumption series for one table plus its description
// (size, item count, billing mode, capacity settings) as attributes. The
// table description and the series are both required; autoscaling ceilings
// are best-effort and only looked up for provisioned tables.
func (c *Client) Fetch(ctx context.Context, tableName string, r domain.TimeRange) ([]domain.SourceSeries, map[string]string, error) {
	desc, err := c.db.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)})
	if err != nil {
		return nil, nil, source.Classify(SourceID, err)
	}

	dims := map[string]string{"TableName": tableName}
	specs := []cwquery.Spec{
		{ID: MetricConsumedRCU, Namespace: "AWS/DynamoDB", MetricName: "ConsumedReadCapacityUnits", Stat: "Sum", Dimensions: dims, Unit: "units"},
		{ID: MetricConsumedWCU, Namespace: "AWS/DynamoDB", MetricName: "ConsumedWriteCapacityUnits", Stat: "Sum", Dimensions: dims, Unit: "units"},
		{ID: MetricReadThrottles, Namespace: "AWS/DynamoDB", MetricName: "ReadThrottleEvents", Stat: "Sum", Dimensions: dims, Unit: "count"},
		{ID: MetricWriteThrottles, Namespace: "AWS/DynamoDB", MetricName: "WriteThrottleEvents", Stat: "Sum", Dimensions: dims, Unit: "count"},
	}
	byID, err := cwquery.Run(ctx, c.cw, r, specs)
	if err != nil {
		return nil, nil, source.Classify(SourceID, err)
	}

	series := make([]domain.SourceSeries, 0, len(specs))
	for _, s := range specs {
		series = append(series, domain.SourceSeries{
			SourceID:   SourceID,
			Metric:     s.ID,
			ResourceID: tableName,
			Unit:       s.Unit,
			Samples:    byID[s.ID],
		})
	}

	attrs := tableAttrs(desc.Table)
	if attrs[domain.AttrBillingMode] == string(ddbtypes.BillingModeProvisioned) {
		c.addScalingCeilings(ctx, tableName, attrs)
	}
	return series, attrs, nil
}

// tableAttrs flattens the table description into connector attributes.
func tableAttrs(table *ddbtypes.TableDescription) map[string]string {
	attrs := map[string]string{}
	if table == nil {
		return attrs
	}
	attrs[domain.AttrSizeBytes] = strconv.FormatInt(aws.ToInt64(table.TableSizeBytes), 10)
	attrs[domain.AttrItemCount] = strconv.FormatInt(aws.ToInt64(table.ItemCount), 10)

	mode := ddbtypes.BillingModePayPerRequest
	if table.BillingModeSummary != nil {
		mode = table.BillingModeSummary.BillingMode
	} else if table.ProvisionedThroughput != nil && aws.ToInt64(table.ProvisionedThroughput.ReadCapacityUnits) > 0 {
		// Tables created before on-demand billing existed report no
		// billing mode summary.
		mode = ddbtypes.BillingModeProvisioned
	}
	attrs[domain.AttrBillingMode] = string(mode)

	if mode == ddbtypes.BillingModeProvisioned && table.ProvisionedThroughput != nil {
		attrs[domain.AttrProvisionedRCU] = strconv.FormatInt(aws.ToInt64(table.ProvisionedThroughput.ReadCapacityUnits), 10)
		attrs[domain.AttrProvisionedWCU] = strconv.FormatInt(aws.ToInt64(table.ProvisionedThroughput.WriteCapacityUnits), 10)
	}
	return attrs
}

// addScalingCeilings records autoscaling max capacity for a provisioned
// table. Lookup failure leaves the attributes unset.
func (c *Client) addScalingCeilings(ctx context.Context, tableName string, attrs map[string]string) {
	if c.scaling == nil {
		return
	}
	out, err := c.scaling.DescribeScalableTargets(ctx, &applicationautoscaling.DescribeScalableTargetsInput{
		ServiceNamespace: aastypes.ServiceNamespaceDynamodb,
		ResourceIds:      []string{"table/" + tableName},
	})
	if err != nil {
		return
	}
	for _, target := range out.ScalableTargets {
		max := strconv.FormatInt(int64(aws.ToInt32(target.MaxCapacity)), 10)
		switch target.ScalableDimension {
		case aastypes.ScalableDimensionDynamoDBTableReadCapacityUnits:
			attrs[domain.AttrAutoscaleMaxRCU] = max
		case aastypes.ScalableDimensionDynamoDBTableWriteCapacityUnits:
			attrs[domain.AttrAutoscaleMaxWCU] = max
		}
	}
}
