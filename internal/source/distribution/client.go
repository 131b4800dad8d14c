// Package distribution pulls daily downloads, revenue and audience counts
// for a storefront listing from the distribution analytics REST API.
package distribution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"time"

	"appboard/internal/domain"
	"appboard/internal/source"
)

const SourceID = "distribution"

// Normalized metric names emitted per store listing.
const (
	MetricDownloads     = "downloads"
	MetricRevenue       = "revenue"
	MetricActiveDevices = "active_devices"
	MetricPayingUsers   = "paying_users"
)

const (
	defaultTimeout = 15 * time.Second
	dateLayout     = "2006-01-02"
)

// Client is the distribution connector. It authenticates with a bearer
// token scoped to analytics reads.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ source.Connector = (*Client)(nil)

// NewClient creates a distribution connector for the given API base URL
// and token. An empty token leaves the connector unconfigured; every
// fetch then fails fast without a network call.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) Domain() domain.Domain { return domain.DomainDistribution }

// Configured reports whether the connector has an endpoint and token.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.token != ""
}

// SupportsGranularity is true only for daily sampling: storefront
// analytics report by calendar day.
func (c *Client) SupportsGranularity(g domain.Granularity) bool {
	return g == domain.GranularityDay
}

// Fetch returns download, revenue, active-device and paying-user series
// for one store listing.
func (c *Client) Fetch(ctx context.Context, storeID string, r domain.TimeRange) ([]domain.SourceSeries, map[string]string, error) {
	if c.token == "" || c.baseURL == "" {
		return nil, nil, domain.NotConfiguredError(SourceID, "distribution API endpoint or token not configured")
	}

	path := fmt.Sprintf("/v1/apps/%s/metrics/daily?start=%s&end=%s",
		url.PathEscape(storeID),
		r.Start.UTC().Format(dateLayout),
		r.End.UTC().Format(dateLayout))

	var body apiDailyResponse
	if err := c.getJSON(ctx, path, &body); err != nil {
		return nil, nil, err
	}

	rows := append([]apiDailyRow(nil), body.Data...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })

	downloads := make([]domain.MetricSample, 0, len(rows))
	revenue := make([]domain.MetricSample, 0, len(rows))
	devices := make([]domain.MetricSample, 0, len(rows))
	paying := make([]domain.MetricSample, 0, len(rows))
	for _, row := range rows {
		ts, err := time.Parse(dateLayout, row.Date)
		if err != nil {
			continue
		}
		downloads = append(downloads, domain.MetricSample{Timestamp: ts, Value: row.Downloads, Unit: "count"})
		revenue = append(revenue, domain.MetricSample{Timestamp: ts, Value: row.Revenue, Unit: body.Currency})
		devices = append(devices, domain.MetricSample{Timestamp: ts, Value: row.ActiveDevices, Unit: "count"})
		paying = append(paying, domain.MetricSample{Timestamp: ts, Value: row.PayingUsers, Unit: "count"})
	}

	series := []domain.SourceSeries{
		{SourceID: SourceID, Metric: MetricDownloads, ResourceID: storeID, Unit: "count", Samples: downloads},
		{SourceID: SourceID, Metric: MetricRevenue, ResourceID: storeID, Unit: body.Currency, Samples: revenue},
		{SourceID: SourceID, Metric: MetricActiveDevices, ResourceID: storeID, Unit: "count", Samples: devices},
		{SourceID: SourceID, Metric: MetricPayingUsers, ResourceID: storeID, Unit: "count", Samples: paying},
	}

	var attrs map[string]string
	if body.Currency != "" {
		attrs = map[string]string{domain.AttrCurrency: body.Currency}
	}
	return series, attrs, nil
}

// getJSON performs an authenticated GET and decodes the response,
// mapping transport and HTTP-level failures to typed connector errors.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return domain.UpstreamError(SourceID, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		var nerr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
			return domain.TimeoutError(SourceID, err)
		}
		return domain.UpstreamError(SourceID, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		msg := apiErr.Error.Message
		if msg == "" {
			msg = resp.Status
		}
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.NotConfiguredError(SourceID, msg)
		default:
			return domain.UpstreamError(SourceID, fmt.Errorf("%s", msg))
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.UpstreamError(SourceID, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
