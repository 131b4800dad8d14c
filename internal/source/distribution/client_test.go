package distribution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appboard/internal/domain"
)

func weekRange() domain.TimeRange {
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	return domain.TimeRange{Start: end.AddDate(0, 0, -7), End: end, Granularity: domain.GranularityDay}
}

func TestFetchParsesDailyMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/apps/1234567890/metrics/daily", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2026-03-03", r.URL.Query().Get("start"))
		assert.Equal(t, "2026-03-10", r.URL.Query().Get("end"))

		// Out of order on purpose; the client sorts by date.
		_ = json.NewEncoder(w).Encode(apiDailyResponse{
			Currency: "USD",
			Data: []apiDailyRow{
				{Date: "2026-03-09", Downloads: 140, Revenue: 60.5, ActiveDevices: 930, PayingUsers: 64},
				{Date: "2026-03-08", Downloads: 120, Revenue: 45.0, ActiveDevices: 900, PayingUsers: 60},
			},
		})
	}))
	defer server.Close()

	series, attrs, err := NewClient(server.URL, "test-token").Fetch(context.Background(), "1234567890", weekRange())
	require.NoError(t, err)
	require.Len(t, series, 4)

	byMetric := map[string]domain.SourceSeries{}
	for _, s := range series {
		assert.Equal(t, SourceID, s.SourceID)
		assert.Equal(t, "1234567890", s.ResourceID)
		byMetric[s.Metric] = s
	}

	downloads := byMetric[MetricDownloads]
	require.Len(t, downloads.Samples, 2)
	assert.True(t, downloads.Samples[0].Timestamp.Before(downloads.Samples[1].Timestamp))
	assert.Equal(t, 260.0, downloads.Total())

	revenue := byMetric[MetricRevenue]
	assert.Equal(t, 105.5, revenue.Total())
	assert.Equal(t, "USD", revenue.Unit)

	assert.Equal(t, 64.0, byMetric[MetricPayingUsers].Samples[1].Value)
	assert.Equal(t, "USD", attrs[domain.AttrCurrency])
}

func TestFetchWithoutTokenFailsFast(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	_, _, err := NewClient(server.URL, "").Fetch(context.Background(), "1234567890", weekRange())
	require.Error(t, err)

	var ce *domain.ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, domain.ConnectorNotConfigured, ce.Kind)
	assert.Equal(t, 0, calls, "unconfigured connector must not call the API")
}

func TestFetchMapsAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "UNAUTHENTICATED", "message": "token expired"},
		})
	}))
	defer server.Close()

	_, _, err := NewClient(server.URL, "stale-token").Fetch(context.Background(), "1234567890", weekRange())
	var ce *domain.ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, domain.ConnectorNotConfigured, ce.Kind)
	assert.Contains(t, ce.Error(), "token expired")
}

func TestFetchMapsServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, _, err := NewClient(server.URL, "test-token").Fetch(context.Background(), "1234567890", weekRange())
	var ce *domain.ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, domain.ConnectorUpstream, ce.Kind)
}

func TestFetchMapsContextTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := NewClient(server.URL, "test-token").Fetch(ctx, "1234567890", weekRange())
	var ce *domain.ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, domain.ConnectorTimeout, ce.Kind)
}

func TestSupportsOnlyDailyGranularity(t *testing.T) {
	c := NewClient("https://example.test", "token")
	for _, g := range domain.GranularityLadder() {
		assert.Equal(t, g == domain.GranularityDay, c.SupportsGranularity(g))
	}
}
