package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultDisplayBudget caps the number of chart points a resolved range
// may imply. Resolution coarsens granularity until the range fits.
const DefaultDisplayBudget = 400

// rangeSpans maps symbolic range tokens to their lookback window.
var rangeSpans = map[string]time.Duration{
	"1h":      time.Hour,
	"6h":      6 * time.Hour,
	"24h":     24 * time.Hour,
	"day":     24 * time.Hour,
	"7d":      7 * 24 * time.Hour,
	"week":    7 * 24 * time.Hour,
	"30d":     30 * 24 * time.Hour,
	"month":   30 * 24 * time.Hour,
	"90d":     90 * 24 * time.Hour,
	"quarter": 90 * 24 * time.Hour,
}

// ResolveRange turns a symbolic token ("24h", "week", ...) into a concrete
// [start, end) interval ending at now, picking the finest granularity whose
// implied bucket count stays within budget. A budget <= 0 uses
// DefaultDisplayBudget. Unknown tokens fail with ErrInvalidRange.
func ResolveRange(token string, now time.Time, budget int) (TimeRange, error) {
	if budget <= 0 {
		budget = DefaultDisplayBudget
	}

	span, ok := rangeSpans[strings.ToLower(strings.TrimSpace(token))]
	if !ok {
		return TimeRange{}, fmt.Errorf("%w: %q", ErrInvalidRange, token)
	}

	r := TimeRange{Start: now.Add(-span), End: now}
	for _, g := range granularityLadder {
		r.Granularity = g
		if r.Buckets() <= budget {
			return r, nil
		}
	}

	// Even daily buckets exceed the budget only for ranges far beyond the
	// supported tokens; return the coarsest rather than failing.
	r.Granularity = GranularityDay
	return r, nil
}

// RangeTokens returns the supported symbolic tokens, for error messages
// and CLI help.
func RangeTokens() []string {
	return []string{"1h", "6h", "24h", "7d", "30d", "90d"}
}
