// Package cwquery translates metric requests into CloudWatch GetMetricData
// calls. The compute, traffic and storage connectors share it.
package cwquery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"appboard/internal/domain"
)

// CloudWatchAPI is the subset of the CloudWatch client we use.
type CloudWatchAPI interface {
	GetMetricData(ctx context.Context, params *cloudwatch.GetMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error)
}

// Spec describes one metric to query.
type Spec struct {
	// ID keys the result and doubles as the normalized metric name.
	// CloudWatch requires ^[a-z][a-zA-Z0-9_]*$.
	ID         string
	Namespace  string
	MetricName string
	Stat       string
	Dimensions map[string]string
	Unit       string
}

// Run executes all specs in a single GetMetricData request (following
// pagination) and returns samples keyed by spec ID in ascending timestamp
// order.
func Run(ctx context.Context, api CloudWatchAPI, r domain.TimeRange, specs []Spec) (map[string][]domain.MetricSample, error) {
	period := int32(r.Granularity.Duration() / time.Second)
	queries := make([]types.MetricDataQuery, 0, len(specs))
	units := make(map[string]string, len(specs))
	for _, s := range specs {
		units[s.ID] = s.Unit
		queries = append(queries, types.MetricDataQuery{
			Id: aws.String(s.ID),
			MetricStat: &types.MetricStat{
				Metric: &types.Metric{
					Namespace:  aws.String(s.Namespace),
					MetricName: aws.String(s.MetricName),
					Dimensions: dimensionList(s.Dimensions),
				},
				Period: aws.Int32(period),
				Stat:   aws.String(s.Stat),
			},
			ReturnData: aws.Bool(true),
		})
	}

	out := make(map[string][]domain.MetricSample, len(specs))
	var next *string
	for {
		resp, err := api.GetMetricData(ctx, &cloudwatch.GetMetricDataInput{
			StartTime:         aws.Time(r.Start),
			EndTime:           aws.Time(r.End),
			MetricDataQueries: queries,
			ScanBy:            types.ScanByTimestampAscending,
			NextToken:         next,
		})
		if err != nil {
			return nil, fmt.Errorf("GetMetricData: %w", err)
		}
		for _, res := range resp.MetricDataResults {
			id := aws.ToString(res.Id)
			n := len(res.Timestamps)
			if len(res.Values) < n {
				n = len(res.Values)
			}
			for i := 0; i < n; i++ {
				out[id] = append(out[id], domain.MetricSample{
					Timestamp: res.Timestamps[i],
					Value:     res.Values[i],
					Unit:      units[id],
				})
			}
		}
		if resp.NextToken == nil {
			break
		}
		next = resp.NextToken
	}
	return out, nil
}

// dimensionList renders dimensions in a stable order so requests are
// reproducible.
func dimensionList(dims map[string]string) []types.Dimension {
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]types.Dimension, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Dimension{Name: aws.String(k), Value: aws.String(dims[k])})
	}
	return out
}
