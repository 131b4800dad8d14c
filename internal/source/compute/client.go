// Package compute pulls serverless function health metrics: CloudWatch
// AWS/Lambda series plus function configuration and the most recent error
// log line per function.
package compute

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"appboard/internal/domain"
	"appboard/internal/source"
	"appboard/internal/source/cwquery"
)

const SourceID = "compute"

// Normalized metric names emitted per function.
const (
	MetricInvocations = "invocations"
	MetricErrors      = "errors"
	MetricThrottles   = "throttles"
	MetricDurationAvg = "duration_avg_ms"
)

const (
	logGroupPrefix  = "/aws/lambda/"
	errorPattern    = "?ERROR ?Exception"
	errorScanWindow = time.Hour
	errorScanLimit  = 50
	maxErrorLen     = 240
)

// LambdaAPI is the subset of the Lambda client we use.
type LambdaAPI interface {
	GetFunctionConfiguration(ctx context.Context, params *lambda.GetFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionConfigurationOutput, error)
}

// CloudWatchLogsAPI is the subset of the CloudWatch Logs client we use.
type CloudWatchLogsAPI interface {
	FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
}

// Client is the compute connector.
type Client struct {
	cw   cwquery.CloudWatchAPI
	fn   LambdaAPI
	logs CloudWatchLogsAPI
}

var _ source.Connector = (*Client)(nil)

// NewClient creates a compute connector from an AWS config.
func NewClient(cfg aws.Config) *Client {
	return &Client{
		cw:   cloudwatch.NewFromConfig(cfg),
		fn:   lambda.NewFromConfig(cfg),
		logs: cloudwatchlogs.NewFromConfig(cfg),
	}
}

// NewClientWithAPIs creates a compute connector with custom API
// implementations (for testing).
func NewClientWithAPIs(cw cwquery.CloudWatchAPI, fn LambdaAPI, logs CloudWatchLogsAPI) *Client {
	return &Client{cw: cw, fn: fn, logs: logs}
}

func (c *Client) Domain() domain.Domain { return domain.DomainCompute }

// SupportsGranularity is true for every step: function metrics resolve
// down to one minute.
func (c *Client) SupportsGranularity(domain.Granularity) bool { return true }

// Fetch returns invocation, error, throttle and duration series for one
// function. Function configuration and the latest error log line are
// attached as attributes; either enrichment failing never fails the fetch.
func (c *Client) Fetch(ctx context.Context, functionName string, r domain.TimeRange) ([]domain.SourceSeries, map[string]string, error) {
	dims := map[string]string{"FunctionName": functionName}
	specs := []cwquery.Spec{
		{ID: MetricInvocations, Namespace: "AWS/Lambda", MetricName: "Invocations", Stat: "Sum", Dimensions: dims, Unit: "count"},
		{ID: MetricErrors, Namespace: "AWS/Lambda", MetricName: "Errors", Stat: "Sum", Dimensions: dims, Unit: "count"},
		{ID: MetricThrottles, Namespace: "AWS/Lambda", MetricName: "Throttles", Stat: "Sum", Dimensions: dims, Unit: "count"},
		{ID: MetricDurationAvg, Namespace: "AWS/Lambda", MetricName: "Duration", Stat: "Average", Dimensions: dims, Unit: "ms"},
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
			ResourceID: functionName,
			Unit:       s.Unit,
			Samples:    byID[s.ID],
		})
	}

	attrs := map[string]string{}
	if runtime, memoryMB, err := c.functionConfig(ctx, functionName); err == nil {
		if runtime != "" {
			attrs[domain.AttrRuntime] = runtime
		}
		if memoryMB > 0 {
			attrs[domain.AttrMemoryMB] = strconv.Itoa(int(memoryMB))
		}
	}
	if line, err := c.latestErrorLine(ctx, functionName, r); err == nil && line != "" {
		attrs[domain.AttrLastError] = line
	}
	if len(attrs) == 0 {
		attrs = nil
	}
	return series, attrs, nil
}

func (c *Client) functionConfig(ctx context.Context, functionName string) (runtime string, memoryMB int32, err error) {
	if c.fn == nil {
		return "", 0, nil
	}
	out, err := c.fn.GetFunctionConfiguration(ctx, &lambda.GetFunctionConfigurationInput{
		FunctionName: aws.String(functionName),
	})
	if err != nil {
		return "", 0, err
	}
	return string(out.Runtime), aws.ToInt32(out.MemorySize), nil
}

// latestErrorLine scans the tail of the range for error-looking log
// events and returns the newest match. One unpaginated call keeps this
// cheap; with more matches than the scan limit the newest inside the
// first page wins.
func (c *Client) latestErrorLine(ctx context.Context, functionName string, r domain.TimeRange) (string, error) {
	if c.logs == nil {
		return "", nil
	}
	start := r.End.Add(-errorScanWindow)
	if start.Before(r.Start) {
		start = r.Start
	}
	out, err := c.logs.FilterLogEvents(ctx, &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName:  aws.String(logGroupPrefix + functionName),
		FilterPattern: aws.String(errorPattern),
		StartTime:     aws.Int64(start.UnixMilli()),
		EndTime:       aws.Int64(r.End.UnixMilli()),
		Limit:         aws.Int32(errorScanLimit),
	})
	if err != nil {
		return "", err
	}
	if len(out.Events) == 0 {
		return "", nil
	}
	line := strings.TrimSpace(aws.ToString(out.Events[len(out.Events)-1].Message))
	if len(line) > maxErrorLen {
		line = line[:maxErrorLen]
	}
	return line, nil
}
