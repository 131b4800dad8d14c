package aggregate

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"appboard/internal/derive"
	"appboard/internal/domain"
	"appboard/internal/source/compute"
	"appboard/internal/source/cost"
	"appboard/internal/source/distribution"
	"appboard/internal/source/storage"
	"appboard/internal/source/traffic"
)

// topServicesInSummary caps the service ranking embedded in the cost
// summary; the breakdown view ranks everything.
const topServicesInSummary = 5

// buildSnapshot assembles the full dashboard snapshot from a fetch report.
// It fails only when nothing at all could be fetched; partial failure
// degrades health and records issues instead.
func buildSnapshot(appID, token string, r domain.TimeRange, report FetchReport, now time.Time) (*domain.AggregatedSnapshot, error) {
	results := report.Results
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no sources to aggregate for %q", domain.ErrUnavailable, appID)
	}
	if countOK(results) == 0 {
		return nil, fmt.Errorf("%w: every source failed for %q", domain.ErrUnavailable, appID)
	}

	snap := &domain.AggregatedSnapshot{
		AppID:       appID,
		RangeToken:  token,
		Range:       r,
		GeneratedAt: now,
		Health:      healthFor(results),
		Issues:      failureIssues(results),
		Sources:     sourceStatuses(results),
	}

	if rs := okForDomain(results, domain.DomainCompute); len(rs) > 0 {
		summary, warnings := buildCompute(rs)
		snap.Compute = summary
		snap.Issues = append(snap.Issues, warnings...)
	}
	if rs := okForDomain(results, domain.DomainTraffic); len(rs) > 0 {
		snap.Traffic = buildTraffic(rs)
	}
	if rs := okForDomain(results, domain.DomainStorage); len(rs) > 0 {
		summary, warnings := buildStorage(rs)
		snap.Storage = summary
		snap.Issues = append(snap.Issues, warnings...)
	}
	if rs := okForDomain(results, domain.DomainCost); len(rs) > 0 {
		snap.Cost = buildCost(rs, now)
	}
	if rs := okForDomain(results, domain.DomainDistribution); len(rs) > 0 {
		snap.Distribution = buildDistribution(rs)
	}
	return snap, nil
}

// healthFor grades the run: healthy when every fetch succeeded, critical
// when some domain lost every one of its sources, degraded otherwise.
// Callers have already ruled out the all-failed case.
func healthFor(results []domain.SourceFetchResult) domain.HealthStatus {
	failed := 0
	okByDomain := map[domain.Domain]int{}
	totalByDomain := map[domain.Domain]int{}
	for _, res := range results {
		totalByDomain[res.Domain]++
		if res.OK() {
			okByDomain[res.Domain]++
		} else {
			failed++
		}
	}
	if failed == 0 {
		return domain.HealthHealthy
	}
	for d, total := range totalByDomain {
		if total > 0 && okByDomain[d] == 0 {
			return domain.HealthCritical
		}
	}
	return domain.HealthDegraded
}

func countOK(results []domain.SourceFetchResult) int {
	n := 0
	for _, res := range results {
		if res.OK() {
			n++
		}
	}
	return n
}

func okForDomain(results []domain.SourceFetchResult, d domain.Domain) []domain.SourceFetchResult {
	var out []domain.SourceFetchResult
	for _, res := range results {
		if res.Domain == d && res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// failureIssues renders one human-readable line per failed source.
func failureIssues(results []domain.SourceFetchResult) []string {
	issues := []string{}
	for _, res := range results {
		if res.OK() {
			continue
		}
		verb := "failed"
		switch res.Status {
		case domain.FetchTimeout:
			verb = "timed out"
		case domain.FetchUnavailable:
			verb = "unavailable"
		}
		issues = append(issues, fmt.Sprintf("%s: %s %s: %s", res.Domain, res.ResourceID, verb, res.ErrorDetail))
	}
	return issues
}

func sourceStatuses(results []domain.SourceFetchResult) []domain.SourceStatus {
	statuses := make([]domain.SourceStatus, len(results))
	for i, res := range results {
		statuses[i] = domain.SourceStatus{
			SourceID:   res.SourceID,
			Domain:     res.Domain,
			ResourceID: res.ResourceID,
			Status:     res.Status,
			Detail:     res.ErrorDetail,
		}
	}
	return statuses
}

// --- per-domain summaries ---

func buildCompute(results []domain.SourceFetchResult) (*domain.ComputeSummary, []string) {
	summary := &domain.ComputeSummary{}
	var warnings []string
	var weightedDuration, invocationWeight float64

	for _, res := range results {
		invocations := seriesTotal(res, compute.MetricInvocations)
		errs := seriesTotal(res, compute.MetricErrors)
		throttles := seriesTotal(res, compute.MetricThrottles)
		duration := seriesMean(res, compute.MetricDurationAvg)

		fn := domain.FunctionStats{
			Name:             res.ResourceID,
			Invocations:      invocations,
			Errors:           errs,
			Throttles:        throttles,
			ErrorRatePercent: derive.ErrorRate(errs, invocations),
			AvgDurationMS:    duration,
			Runtime:          res.Attrs[domain.AttrRuntime],
			LastError:        res.Attrs[domain.AttrLastError],
			MemoryMB:         int32(attrInt64(res.Attrs, domain.AttrMemoryMB)),
		}
		summary.Functions = append(summary.Functions, fn)

		summary.Invocations += invocations
		summary.Errors += errs
		summary.Throttles += throttles
		weightedDuration += duration * invocations
		invocationWeight += invocations

		if compute.DeprecatedRuntime(fn.Runtime) {
			warnings = append(warnings, fmt.Sprintf("compute: %s uses deprecated runtime %s", fn.Name, fn.Runtime))
		}
		if throttles > 0 {
			warnings = append(warnings, fmt.Sprintf("compute: %s throttled %.0f times", fn.Name, throttles))
		}
	}

	summary.ErrorRatePercent = derive.ErrorRate(summary.Errors, summary.Invocations)
	if invocationWeight > 0 {
		summary.AvgDurationMS = weightedDuration / invocationWeight
	}
	summary.TrendPercent = derive.HalfSplitTrend(mergedValues(results, compute.MetricInvocations))
	return summary, warnings
}

func buildTraffic(results []domain.SourceFetchResult) *domain.TrafficSummary {
	summary := &domain.TrafficSummary{}
	var latencySum float64
	var latencyCount int

	for _, res := range results {
		summary.Requests += seriesTotal(res, traffic.MetricRequests)
		summary.ClientErrors += seriesTotal(res, traffic.MetricClientErrors)
		summary.ServerErrors += seriesTotal(res, traffic.MetricServerErrors)
		if m := seriesMean(res, traffic.MetricLatencyAvg); m > 0 {
			latencySum += m
			latencyCount++
		}
	}

	summary.ErrorRatePercent = derive.ErrorRate(summary.ClientErrors+summary.ServerErrors, summary.Requests)
	if latencyCount > 0 {
		summary.AvgLatencyMS = latencySum / float64(latencyCount)
	}
	summary.TrendPercent = derive.HalfSplitTrend(mergedValues(results, traffic.MetricRequests))
	return summary
}

func buildStorage(results []domain.SourceFetchResult) (*domain.StorageSummary, []string) {
	summary := &domain.StorageSummary{}
	var warnings []string

	for _, res := range results {
		throttled := seriesTotal(res, storage.MetricReadThrottles) + seriesTotal(res, storage.MetricWriteThrottles)
		table := domain.TableStats{
			Name:              res.ResourceID,
			SizeBytes:         attrInt64(res.Attrs, domain.AttrSizeBytes),
			ItemCount:         attrInt64(res.Attrs, domain.AttrItemCount),
			BillingMode:       res.Attrs[domain.AttrBillingMode],
			ProvisionedRCU:    attrInt64(res.Attrs, domain.AttrProvisionedRCU),
			ProvisionedWCU:    attrInt64(res.Attrs, domain.AttrProvisionedWCU),
			AutoscaleMaxRCU:   attrInt64(res.Attrs, domain.AttrAutoscaleMaxRCU),
			AutoscaleMaxWCU:   attrInt64(res.Attrs, domain.AttrAutoscaleMaxWCU),
			ConsumedRCU:       seriesTotal(res, storage.MetricConsumedRCU),
			ConsumedWCU:       seriesTotal(res, storage.MetricConsumedWCU),
			ThrottledRequests: throttled,
		}
		summary.Tables = append(summary.Tables, table)

		summary.TotalSizeBytes += table.SizeBytes
		summary.TotalItems += table.ItemCount
		summary.ConsumedRCU += table.ConsumedRCU
		summary.ConsumedWCU += table.ConsumedWCU
		summary.ThrottledRequests += throttled

		if throttled > 0 {
			warnings = append(warnings, fmt.Sprintf("storage: %s throttled %.0f requests", table.Name, throttled))
		}
	}
	return summary, warnings
}

func buildCost(results []domain.SourceFetchResult, now time.Time) *domain.CostSummary {
	summary := &domain.CostSummary{}

	var serviceItems []domain.BreakdownItem
	for _, res := range results {
		if summary.Currency == "" {
			summary.Currency = res.Attrs[domain.AttrCurrency]
		}
		for _, s := range res.Series {
			switch s.Metric {
			case cost.MetricDailyCost:
				for _, p := range s.Samples {
					summary.DailyCosts = append(summary.DailyCosts, domain.DailyCost{
						Date:   p.Timestamp.UTC().Format("2006-01-02"),
						Amount: p.Value,
					})
					summary.TotalCost += p.Value
				}
			case cost.MetricServiceDailyCost:
				serviceItems = append(serviceItems, domain.BreakdownItem{
					ID:    s.ResourceID,
					Value: s.Total(),
					Unit:  s.Unit,
				})
			}
		}
	}
	sort.Slice(summary.DailyCosts, func(i, j int) bool {
		return summary.DailyCosts[i].Date < summary.DailyCosts[j].Date
	})

	summary.TopServices = derive.RankBreakdown(serviceItems, topServicesInSummary)
	summary.TrendPercent = derive.HalfSplitTrend(dailyAmounts(summary.DailyCosts))

	if mtd := monthToDate(summary.DailyCosts, now); len(mtd) > 0 {
		proj := derive.ProjectMonthlyCost(mtd, now)
		summary.Projection = &proj
	}
	return summary
}

func buildDistribution(results []domain.SourceFetchResult) *domain.DistributionSummary {
	summary := &domain.DistributionSummary{}
	var devicesSum, devicesN, payingSum, payingN float64

	for _, res := range results {
		if summary.Currency == "" {
			summary.Currency = res.Attrs[domain.AttrCurrency]
		}
		summary.Downloads += seriesTotal(res, distribution.MetricDownloads)
		summary.Revenue += seriesTotal(res, distribution.MetricRevenue)
		for _, s := range res.Series {
			switch s.Metric {
			case distribution.MetricActiveDevices:
				devicesSum += s.Total()
				devicesN += float64(len(s.Samples))
			case distribution.MetricPayingUsers:
				payingSum += s.Total()
				payingN += float64(len(s.Samples))
			}
		}
	}

	// Audience counts are averaged over the range so revenue-per-user
	// figures stay stable across range lengths.
	if devicesN > 0 {
		summary.ActiveDevices = devicesSum / devicesN
	}
	if payingN > 0 {
		summary.PayingUsers = payingSum / payingN
	}
	summary.ARPU, summary.ARPPU = derive.RevenuePerUser(summary.Revenue, summary.ActiveDevices, summary.PayingUsers)
	summary.DownloadTrendPercent = derive.HalfSplitTrend(mergedValues(results, distribution.MetricDownloads))
	summary.RevenueTrendPercent = derive.HalfSplitTrend(mergedValues(results, distribution.MetricRevenue))
	return summary
}

// --- view shaping ---

// buildTimeSeries collects the successful series of one domain, in result
// order.
func buildTimeSeries(results []domain.SourceFetchResult, d domain.Domain) []domain.SourceSeries {
	var out []domain.SourceSeries
	for _, res := range okForDomain(results, d) {
		out = append(out, res.Series...)
	}
	return out
}

// breakdownMetric names the ranking metric and unit per domain.
func breakdownMetric(d domain.Domain) (metric, unit string) {
	switch d {
	case domain.DomainCompute:
		return compute.MetricInvocations, "invocations"
	case domain.DomainTraffic:
		return traffic.MetricRequests, "requests"
	case domain.DomainStorage:
		return "", "bytes" // ranked by table size attribute
	case domain.DomainCost:
		return cost.MetricServiceDailyCost, ""
	case domain.DomainDistribution:
		return distribution.MetricDownloads, "downloads"
	}
	return "", ""
}

// buildBreakdown ranks a domain's sub-components: functions by
// invocations, gateways by requests, tables by size, services by spend,
// store listings by downloads.
func buildBreakdown(results []domain.SourceFetchResult, d domain.Domain) ([]domain.BreakdownItem, float64, string) {
	metric, unit := breakdownMetric(d)
	var items []domain.BreakdownItem

	for _, res := range okForDomain(results, d) {
		switch d {
		case domain.DomainStorage:
			items = append(items, domain.BreakdownItem{
				ID:    res.ResourceID,
				Value: float64(attrInt64(res.Attrs, domain.AttrSizeBytes)),
				Unit:  unit,
			})
		case domain.DomainCost:
			for _, s := range res.Series {
				if s.Metric != metric {
					continue
				}
				items = append(items, domain.BreakdownItem{ID: s.ResourceID, Value: s.Total(), Unit: s.Unit})
			}
		default:
			items = append(items, domain.BreakdownItem{
				ID:    res.ResourceID,
				Value: seriesTotal(res, metric),
				Unit:  unit,
			})
		}
	}

	ranked := derive.RankBreakdown(items, 0)
	var total float64
	for _, item := range ranked {
		total += item.Value
	}
	if len(ranked) > 0 && unit == "" {
		unit = ranked[0].Unit
	}
	return ranked, total, unit
}

// --- series helpers ---

// seriesTotal sums the samples of the named metric across the result's
// series.
func seriesTotal(res domain.SourceFetchResult, metric string) float64 {
	var sum float64
	for _, s := range res.Series {
		if s.Metric == metric {
			sum += s.Total()
		}
	}
	return sum
}

// seriesMean averages the samples of the named metric.
func seriesMean(res domain.SourceFetchResult, metric string) float64 {
	var sum float64
	var n int
	for _, s := range res.Series {
		if s.Metric != metric {
			continue
		}
		for _, p := range s.Samples {
			sum += p.Value
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// mergedValues sums the named metric across all results bucket by bucket,
// returning the bucket totals in time order. Resources reporting on the
// same axis reinforce each other; missing buckets simply contribute
// nothing.
func mergedValues(results []domain.SourceFetchResult, metric string) []float64 {
	byBucket := map[int64]float64{}
	for _, res := range results {
		for _, s := range res.Series {
			if s.Metric != metric {
				continue
			}
			for _, p := range s.Samples {
				byBucket[p.Timestamp.Unix()] += p.Value
			}
		}
	}
	if len(byBucket) == 0 {
		return nil
	}
	keys := make([]int64, 0, len(byBucket))
	for k := range byBucket {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	values := make([]float64, len(keys))
	for i, k := range keys {
		values[i] = byBucket[k]
	}
	return values
}

func dailyAmounts(daily []domain.DailyCost) []float64 {
	values := make([]float64, len(daily))
	for i, d := range daily {
		values[i] = d.Amount
	}
	return values
}

// monthToDate filters daily costs to the month containing now; the
// projection must not mix in days from a previous month.
func monthToDate(daily []domain.DailyCost, now time.Time) []domain.DailyCost {
	prefix := now.UTC().Format("2006-01")
	var out []domain.DailyCost
	for _, d := range daily {
		if len(d.Date) >= len(prefix) && d.Date[:len(prefix)] == prefix {
			out = append(out, d)
		}
	}
	return out
}

func attrInt64(attrs map[string]string, key string) int64 {
	v, err := strconv.ParseInt(attrs[key], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
