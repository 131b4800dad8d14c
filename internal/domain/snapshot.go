package domain

import "time"

// HealthStatus summarizes source-fetch success across domains.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthCritical HealthStatus = "critical"
)

// SourceStatus reports one connector call's outcome without its series,
// for clients that want to show which sources were usable.
type SourceStatus struct {
	SourceID   string      `json:"source_id"`
	Domain     Domain      `json:"domain"`
	ResourceID string      `json:"resource_id"`
	Status     FetchStatus `json:"status"`
	Detail     string      `json:"detail,omitempty"`
}

// FunctionStats is the per-function slice of the compute summary.
type FunctionStats struct {
	Name             string  `json:"name"`
	Invocations      float64 `json:"invocations"`
	Errors           float64 `json:"errors"`
	Throttles        float64 `json:"throttles"`
	ErrorRatePercent float64 `json:"error_rate_percent"`
	AvgDurationMS    float64 `json:"avg_duration_ms"`
	Runtime          string  `json:"runtime,omitempty"`
	MemoryMB         int32   `json:"memory_mb,omitempty"`
	LastError        string  `json:"last_error,omitempty"`
}

// ComputeSummary aggregates serverless function health.
type ComputeSummary struct {
	Invocations      float64         `json:"invocations"`
	Errors           float64         `json:"errors"`
	Throttles        float64         `json:"throttles"`
	ErrorRatePercent float64         `json:"error_rate_percent"`
	AvgDurationMS    float64         `json:"avg_duration_ms"`
	TrendPercent     float64         `json:"trend_percent"`
	Functions        []FunctionStats `json:"functions,omitempty"`
}

// TrafficSummary aggregates API gateway request metrics.
type TrafficSummary struct {
	Requests         float64 `json:"requests"`
	ClientErrors     float64 `json:"client_errors"`
	ServerErrors     float64 `json:"server_errors"`
	ErrorRatePercent float64 `json:"error_rate_percent"`
	AvgLatencyMS     float64 `json:"avg_latency_ms"`
	TrendPercent     float64 `json:"trend_percent"`
}

// TableStats is the per-table slice of the storage summary.
type TableStats struct {
	Name              string  `json:"name"`
	SizeBytes         int64   `json:"size_bytes"`
	ItemCount         int64   `json:"item_count"`
	BillingMode       string  `json:"billing_mode"`
	ProvisionedRCU    int64   `json:"provisioned_rcu,omitempty"`
	ProvisionedWCU    int64   `json:"provisioned_wcu,omitempty"`
	AutoscaleMaxRCU   int64   `json:"autoscale_max_rcu,omitempty"`
	AutoscaleMaxWCU   int64   `json:"autoscale_max_wcu,omitempty"`
	ConsumedRCU       float64 `json:"consumed_rcu"`
	ConsumedWCU       float64 `json:"consumed_wcu"`
	ThrottledRequests float64 `json:"throttled_requests"`
}

// StorageSummary aggregates key-value store capacity.
type StorageSummary struct {
	TotalSizeBytes    int64        `json:"total_size_bytes"`
	TotalItems        int64        `json:"total_items"`
	ConsumedRCU       float64      `json:"consumed_rcu"`
	ConsumedWCU       float64      `json:"consumed_wcu"`
	ThrottledRequests float64      `json:"throttled_requests"`
	Tables            []TableStats `json:"tables,omitempty"`
}

// CostSummary aggregates spend over the requested range.
type CostSummary struct {
	TotalCost    float64         `json:"total_cost"`
	Currency     string          `json:"currency"`
	TrendPercent float64         `json:"trend_percent"`
	DailyCosts   []DailyCost     `json:"daily_costs,omitempty"`
	TopServices  []BreakdownItem `json:"top_services,omitempty"`
	Projection   *CostProjection `json:"projection,omitempty"`
}

// DistributionSummary aggregates storefront downloads and revenue.
type DistributionSummary struct {
	Downloads            float64 `json:"downloads"`
	Revenue              float64 `json:"revenue"`
	Currency             string  `json:"currency"`
	ActiveDevices        float64 `json:"active_devices"`
	PayingUsers          float64 `json:"paying_users"`
	ARPU                 float64 `json:"arpu"`
	ARPPU                float64 `json:"arppu"`
	DownloadTrendPercent float64 `json:"download_trend_percent"`
	RevenueTrendPercent  float64 `json:"revenue_trend_percent"`
}

// AggregatedSnapshot is the full dashboard view for one application and
// range. Constructed fresh per aggregation run and immutable once returned.
type AggregatedSnapshot struct {
	AppID        string               `json:"app_id"`
	RangeToken   string               `json:"range_token"`
	Range        TimeRange            `json:"range"`
	GeneratedAt  time.Time            `json:"generated_at"`
	Health       HealthStatus         `json:"health"`
	Issues       []string             `json:"issues"`
	Compute      *ComputeSummary      `json:"compute,omitempty"`
	Traffic      *TrafficSummary      `json:"traffic,omitempty"`
	Storage      *StorageSummary      `json:"storage,omitempty"`
	Cost         *CostSummary         `json:"cost,omitempty"`
	Distribution *DistributionSummary `json:"distribution,omitempty"`
	Sources      []SourceStatus       `json:"sources"`
	Stale        bool                 `json:"stale,omitempty"`
}

// TimeSeriesView is the single-domain charting view.
type TimeSeriesView struct {
	AppID       string         `json:"app_id"`
	Domain      Domain         `json:"domain"`
	RangeToken  string         `json:"range_token"`
	Range       TimeRange      `json:"range"`
	GeneratedAt time.Time      `json:"generated_at"`
	Health      HealthStatus   `json:"health"`
	Issues      []string       `json:"issues"`
	Series      []SourceSeries `json:"series"`
	Stale       bool           `json:"stale,omitempty"`
}

// BreakdownView ranks a domain's sub-components by value.
type BreakdownView struct {
	AppID       string          `json:"app_id"`
	Domain      Domain          `json:"domain"`
	RangeToken  string          `json:"range_token"`
	Range       TimeRange       `json:"range"`
	GeneratedAt time.Time       `json:"generated_at"`
	Health      HealthStatus    `json:"health"`
	Issues      []string        `json:"issues"`
	Items       []BreakdownItem `json:"items"`
	Total       float64         `json:"total"`
	Unit        string          `json:"unit,omitempty"`
	Stale       bool            `json:"stale,omitempty"`
}

// ProjectionView carries the cost projection alone.
type ProjectionView struct {
	AppID           string         `json:"app_id"`
	GeneratedAt     time.Time      `json:"generated_at"`
	Currency        string         `json:"currency"`
	MonthToDateCost float64        `json:"month_to_date_cost"`
	Projection      CostProjection `json:"projection"`
	Stale           bool           `json:"stale,omitempty"`
}
