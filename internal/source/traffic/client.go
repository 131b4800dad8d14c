// Package traffic pulls API gateway request metrics from CloudWatch.
package traffic

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"appboard/internal/domain"
	"appboard/internal/source"
	"appboard/internal/source/cwquery"
)

const SourceID = "traffic"

// Normalized metric names emitted per gateway.
const (
	MetricRequests     = "requests"
	MetricClientErrors = "client_errors"
	MetricServerErrors = "server_errors"
	MetricLatencyAvg   = "latency_avg_ms"
)

// Client is the traffic connector over the CloudWatch AWS/ApiGateway
// namespace.
type Client struct {
	cw cwquery.CloudWatchAPI
}

var _ source.Connector = (*Client)(nil)

// NewClient creates a traffic connector from an AWS config.
func NewClient(cfg aws.Config) *Client {
	return &Client{cw: cloudwatch.NewFromConfig(cfg)}
}

// NewClientWithAPI creates a traffic connector with a custom CloudWatch
// implementation (for testing).
func NewClientWithAPI(api cwquery.CloudWatchAPI) *Client {
	return &Client{cw: api}
}

func (c *Client) Domain() domain.Domain { return domain.DomainTraffic }

// SupportsGranularity is true for every step: gateway metrics resolve down
// to one minute.
func (c *Client) SupportsGranularity(domain.Granularity) bool { return true }

// Fetch returns request count, client/server error and latency series for
// one gateway.
func (c *Client) Fetch(ctx context.Context, gatewayName string, r domain.TimeRange) ([]domain.SourceSeries, map[string]string, error) {
	dims := map[string]string{"ApiName": gatewayName}
	specs := []cwquery.Spec{
		{ID: MetricRequests, Namespace: "AWS/ApiGateway", MetricName: "Count", Stat: "Sum", Dimensions: dims, Unit: "count"},
		{ID: MetricClientErrors, Namespace: "AWS/ApiGateway", MetricName: "4XXError", Stat: "Sum", Dimensions: dims, Unit: "count"},
		{ID: MetricServerErrors, Namespace: "AWS/ApiGateway", MetricName: "5XXError", Stat: "Sum", Dimensions: dims, Unit: "count"},
		{ID: MetricLatencyAvg, Namespace: "AWS/ApiGateway", MetricName: "Latency", Stat: "Average", Dimensions: dims, Unit: "ms"},
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
			ResourceID: gatewayName,
			Unit:       s.Unit,
			Samples:    byID[s.ID],
		})
	}
	return series, nil, nil
}
