package domain

import "time"

// Granularity is the time-bucket width used to sample a series.
type Granularity string

const (
	GranularityMinute         Granularity = "minute"
	GranularityFiveMinutes    Granularity = "5min"
	GranularityFifteenMinutes Granularity = "15min"
	GranularityHour           Granularity = "hour"
	GranularityDay            Granularity = "day"
)

// granularityLadder orders granularities finest to coarsest.
var granularityLadder = []Granularity{
	GranularityMinute,
	GranularityFiveMinutes,
	GranularityFifteenMinutes,
	GranularityHour,
	GranularityDay,
}

// GranularityLadder returns the granularities ordered finest to coarsest.
func GranularityLadder() []Granularity {
	out := make([]Granularity, len(granularityLadder))
	copy(out, granularityLadder)
	return out
}

// Duration returns the bucket width. Unknown granularities default to a day.
func (g Granularity) Duration() time.Duration {
	switch g {
	case GranularityMinute:
		return time.Minute
	case GranularityFiveMinutes:
		return 5 * time.Minute
	case GranularityFifteenMinutes:
		return 15 * time.Minute
	case GranularityHour:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// TimeRange is a concrete [Start, End) interval with a sampling granularity.
type TimeRange struct {
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	Granularity Granularity `json:"granularity"`
}

// Buckets returns the number of samples the range implies at its granularity.
func (r TimeRange) Buckets() int {
	step := r.Granularity.Duration()
	if step <= 0 || !r.End.After(r.Start) {
		return 0
	}
	span := r.End.Sub(r.Start)
	n := int(span / step)
	if span%step != 0 {
		n++
	}
	return n
}

// WithGranularity returns a copy of the range sampled at g.
func (r TimeRange) WithGranularity(g Granularity) TimeRange {
	r.Granularity = g
	return r
}

// MetricSample is a single measured value. Immutable once fetched.
type MetricSample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
}

// SourceSeries is an ordered sequence of samples for one
// (source, metric, resource) tuple over a time range. Samples are kept in
// non-decreasing timestamp order as fetched.
type SourceSeries struct {
	SourceID   string         `json:"source_id"`
	Metric     string         `json:"metric"`
	ResourceID string         `json:"resource_id"`
	Unit       string         `json:"unit,omitempty"`
	Samples    []MetricSample `json:"samples"`
}

// Total sums all sample values.
func (s SourceSeries) Total() float64 {
	var sum float64
	for _, p := range s.Samples {
		sum += p.Value
	}
	return sum
}

// Mean returns the average sample value, or 0 for an empty series.
func (s SourceSeries) Mean() float64 {
	if len(s.Samples) == 0 {
		return 0
	}
	return s.Total() / float64(len(s.Samples))
}

// Values returns the sample values in timestamp order.
func (s SourceSeries) Values() []float64 {
	vals := make([]float64, len(s.Samples))
	for i, p := range s.Samples {
		vals[i] = p.Value
	}
	return vals
}

// DailyCost is one day of spend, used by cost series and projections.
type DailyCost struct {
	Date   string  `json:"date"` // 2006-01-02
	Amount float64 `json:"amount"`
}

// BreakdownItem is one ranked entry of a cost or usage breakdown.
type BreakdownItem struct {
	ID    string  `json:"id"`
	Label string  `json:"label,omitempty"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// CostProjection is a month-end spend estimate.
type CostProjection struct {
	ProjectedMonthCost float64 `json:"projected_month_cost"`
	DailyAverage       float64 `json:"daily_average"`
	// Confidence is in [0, 1]; 1 means the fit had no residual error.
	Confidence  float64 `json:"confidence"`
	Method      string  `json:"method"` // "ols" or "average"
	DaysElapsed int     `json:"days_elapsed"`
	DaysInMonth int     `json:"days_in_month"`
}
