// Package cost pulls daily spend from the billing API, filtered to one
// application by its cost allocation tag and grouped by service.
package cost

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"appboard/internal/domain"
	"appboard/internal/source"
)

const SourceID = "cost"

// Normalized metric names. The total series carries the tag resource id;
// per-service series carry the service name as their resource id.
const (
	MetricDailyCost        = "daily_cost"
	MetricServiceDailyCost = "service_daily_cost"
)

const dateLayout = "2006-01-02"

// CostExplorerAPI is the subset of the AWS Cost Explorer client we use.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// Client is the cost connector.
type Client struct {
	ce CostExplorerAPI
}

var _ source.Connector = (*Client)(nil)

// NewClient creates a cost connector from an AWS config.
func NewClient(cfg aws.Config) *Client {
	return &Client{ce: costexplorer.NewFromConfig(cfg)}
}

// NewClientWithAPI creates a client with a custom API implementation (for
// testing).
func NewClientWithAPI(api CostExplorerAPI) *Client {
	return &Client{ce: api}
}

func (c *Client) Domain() domain.Domain { return domain.DomainCost }

// SupportsGranularity is true only for daily sampling: the billing API
// reports by calendar day.
func (c *Client) SupportsGranularity(g domain.Granularity) bool {
	return g == domain.GranularityDay
}

// Fetch returns one total daily-spend series for the tag selector plus a
// daily series per contributing service.
func (c *Client) Fetch(ctx context.Context, resourceID string, r domain.TimeRange) ([]domain.SourceSeries, map[string]string, error) {
	tagKey, tagValue, err := parseTagResource(resourceID)
	if err != nil {
		return nil, nil, domain.NotConfiguredError(SourceID, err.Error())
	}

	interval := dateInterval(r)
	agg, err := c.fetchUsage(ctx, tagKey, tagValue, interval)
	if err != nil {
		return nil, nil, source.Classify(SourceID, err)
	}

	series := make([]domain.SourceSeries, 0, 1+len(agg.serviceDailyMap))
	series = append(series, domain.SourceSeries{
		SourceID:   SourceID,
		Metric:     MetricDailyCost,
		ResourceID: resourceID,
		Unit:       agg.currency,
		Samples:    dailySamples(agg.dailyMap, agg.currency),
	})
	for _, svc := range sortedKeys(agg.serviceDailyMap) {
		series = append(series, domain.SourceSeries{
			SourceID:   SourceID,
			Metric:     MetricServiceDailyCost,
			ResourceID: svc,
			Unit:       agg.currency,
			Samples:    dailySamples(agg.serviceDailyMap[svc], agg.currency),
		})
	}

	var attrs map[string]string
	if agg.currency != "" {
		attrs = map[string]string{domain.AttrCurrency: agg.currency}
	}
	return series, attrs, nil
}

// usageAggregation holds per-day and per-service spend accumulated from
// the paginated usage response.
type usageAggregation struct {
	dailyMap        map[string]float64
	serviceDailyMap map[string]map[string]float64
	currency        string
}

func (c *Client) fetchUsage(ctx context.Context, tagKey, tagValue string, interval types.DateInterval) (usageAggregation, error) {
	agg := usageAggregation{
		dailyMap:        make(map[string]float64),
		serviceDailyMap: make(map[string]map[string]float64),
	}

	var next *string
	for {
		out, err := c.ce.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
			TimePeriod:  &interval,
			Granularity: types.GranularityDaily,
			Metrics:     []string{"UnblendedCost"},
			GroupBy: []types.GroupDefinition{
				{Type: types.GroupDefinitionTypeDimension, Key: aws.String("SERVICE")},
			},
			Filter: &types.Expression{
				Tags: &types.TagValues{
					Key:          aws.String(tagKey),
					Values:       []string{tagValue},
					MatchOptions: []types.MatchOption{types.MatchOptionEquals},
				},
			},
			NextPageToken: next,
		})
		if err != nil {
			return agg, err
		}

		for _, result := range out.ResultsByTime {
			dateStr := aws.ToString(result.TimePeriod.Start)
			for _, group := range result.Groups {
				if len(group.Keys) == 0 {
					continue
				}
				svcName := group.Keys[0]
				mv, ok := group.Metrics["UnblendedCost"]
				if !ok {
					continue
				}
				amount, _ := strconv.ParseFloat(aws.ToString(mv.Amount), 64)
				if agg.currency == "" {
					agg.currency = aws.ToString(mv.Unit)
				}
				agg.dailyMap[dateStr] += amount
				if agg.serviceDailyMap[svcName] == nil {
					agg.serviceDailyMap[svcName] = make(map[string]float64)
				}
				agg.serviceDailyMap[svcName][dateStr] += amount
			}
		}

		if out.NextPageToken == nil {
			break
		}
		next = out.NextPageToken
	}
	return agg, nil
}

// parseTagResource splits the synthetic "tag:Key=Value" resource id built
// from the application profile.
func parseTagResource(resourceID string) (key, value string, err error) {
	rest, ok := strings.CutPrefix(resourceID, "tag:")
	if !ok {
		return "", "", fmt.Errorf("cost selector %q is not of the form tag:Key=Value", resourceID)
	}
	key, value, ok = strings.Cut(rest, "=")
	if !ok || key == "" || value == "" {
		return "", "", fmt.Errorf("cost selector %q is not of the form tag:Key=Value", resourceID)
	}
	return key, value, nil
}

// dateInterval converts the range into calendar-day boundaries. The end
// date is exclusive; a partial final day extends it so in-progress spend
// is included.
func dateInterval(r domain.TimeRange) types.DateInterval {
	start := r.Start.UTC()
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	end := r.End.UTC()
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if end.After(endDay) {
		endDay = endDay.AddDate(0, 0, 1)
	}
	if !endDay.After(startDay) {
		endDay = startDay.AddDate(0, 0, 1)
	}

	return types.DateInterval{
		Start: aws.String(startDay.Format(dateLayout)),
		End:   aws.String(endDay.Format(dateLayout)),
	}
}

// dailySamples renders a date map as an ascending sample series with
// day-start timestamps.
func dailySamples(byDate map[string]float64, unit string) []domain.MetricSample {
	samples := make([]domain.MetricSample, 0, len(byDate))
	for _, date := range sortedKeys(byDate) {
		ts, err := time.Parse(dateLayout, date)
		if err != nil {
			continue
		}
		samples = append(samples, domain.MetricSample{Timestamp: ts, Value: byDate[date], Unit: unit})
	}
	return samples
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
