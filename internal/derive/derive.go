// Package derive computes secondary business metrics from raw samples.
// Every function takes value types and returns value types; nothing here
// touches connectors, caches, or the clock beyond values passed in.
package derive

import (
	"math"
	"sort"
	"time"

	"appboard/internal/domain"
)

// ErrorRate returns errors as a percentage of invocations, clamped to
// [0, 100]. Zero invocations yield exactly 0, never NaN.
func ErrorRate(errs, invocations float64) float64 {
	if invocations <= 0 {
		return 0
	}
	rate := errs / invocations * 100
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}

// TrendDelta compares the mean of the most recent n values against the mean
// of the n values preceding them, as a percentage change. A zero previous
// mean reports 0 rather than a division blow-up.
func TrendDelta(values []float64, n int) float64 {
	if n <= 0 || len(values) < 2*n {
		return 0
	}
	recent := mean(values[len(values)-n:])
	previous := mean(values[len(values)-2*n : len(values)-n])
	if previous == 0 {
		return 0
	}
	return (recent - previous) / previous * 100
}

// HalfSplitTrend splits the series in half and reports the percentage
// change of the later half against the earlier one.
func HalfSplitTrend(values []float64) float64 {
	return TrendDelta(values, len(values)/2)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Projection method names.
const (
	ProjectionMethodOLS     = "ols"
	ProjectionMethodAverage = "average"
)

// ProjectMonthlyCost extrapolates the month's total spend from its daily
// cost series. With two or more points it fits a least-squares line through
// (day index, amount) and sums the line over every day of the month; with
// fewer it falls back to dailyAverage x daysInMonth. Confidence reflects
// the fit's residual error, clamped to [0, 1]; a perfect fit scores 1.
func ProjectMonthlyCost(daily []domain.DailyCost, now time.Time) domain.CostProjection {
	daysInMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	proj := domain.CostProjection{
		DaysElapsed: len(daily),
		DaysInMonth: daysInMonth,
	}
	if len(daily) == 0 {
		proj.Method = ProjectionMethodAverage
		return proj
	}

	xs := make([]float64, len(daily))
	ys := make([]float64, len(daily))
	var total float64
	for i, d := range daily {
		xs[i] = dayIndex(d.Date, i)
		ys[i] = d.Amount
		total += d.Amount
	}
	proj.DailyAverage = total / float64(len(daily))

	if len(daily) < 2 {
		proj.Method = ProjectionMethodAverage
		proj.ProjectedMonthCost = proj.DailyAverage * float64(daysInMonth)
		proj.Confidence = lowSampleConfidence
		return proj
	}

	slope, intercept, ok := leastSquares(xs, ys)
	if !ok {
		// Degenerate x spread; treat like the average fallback.
		proj.Method = ProjectionMethodAverage
		proj.ProjectedMonthCost = proj.DailyAverage * float64(daysInMonth)
		proj.Confidence = lowSampleConfidence
		return proj
	}

	var projected float64
	for day := 0; day < daysInMonth; day++ {
		v := intercept + slope*float64(day)
		if v < 0 {
			v = 0
		}
		projected += v
	}

	proj.Method = ProjectionMethodOLS
	proj.ProjectedMonthCost = projected
	proj.Confidence = fitConfidence(xs, ys, slope, intercept)
	return proj
}

// lowSampleConfidence is reported when fewer than two points force the
// average fallback.
const lowSampleConfidence = 0.3

// dayIndex maps a 2006-01-02 date to its zero-based day of month,
// falling back to the series position when the date does not parse.
func dayIndex(date string, position int) float64 {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return float64(position)
	}
	return float64(t.Day() - 1)
}

func leastSquares(xs, ys []float64) (slope, intercept float64, ok bool) {
	n := float64(len(xs))
	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0, false
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept, true
}

// fitConfidence scores the fit by its root-mean-square residual relative to
// the mean absolute value of the series. Zero residual scores 1.
func fitConfidence(xs, ys []float64, slope, intercept float64) float64 {
	var sqSum, absSum float64
	for i := range xs {
		r := ys[i] - (intercept + slope*xs[i])
		sqSum += r * r
		absSum += math.Abs(ys[i])
	}
	rmse := math.Sqrt(sqSum / float64(len(xs)))
	if rmse == 0 {
		return 1
	}
	meanAbs := absSum / float64(len(xs))
	if meanAbs == 0 {
		return 0
	}
	return clamp01(1 - rmse/meanAbs)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RevenuePerUser returns average revenue per active device (ARPU) and per
// paying user (ARPPU). Zero denominators yield 0.
func RevenuePerUser(revenue, activeDevices, payingUsers float64) (arpu, arppu float64) {
	if activeDevices > 0 {
		arpu = revenue / activeDevices
	}
	if payingUsers > 0 {
		arppu = revenue / payingUsers
	}
	return arpu, arppu
}

// RankBreakdown sorts items by descending value, breaking ties by id so the
// order is deterministic, and caps the list at n when n > 0.
func RankBreakdown(items []domain.BreakdownItem, n int) []domain.BreakdownItem {
	ranked := append([]domain.BreakdownItem(nil), items...)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Value != ranked[j].Value {
			return ranked[i].Value > ranked[j].Value
		}
		return ranked[i].ID < ranked[j].ID
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
