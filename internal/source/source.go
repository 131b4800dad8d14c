// Package source defines the capability surface shared by all metric
// connectors and groups concrete connectors into a per-domain set.
package source

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"

	"appboard/internal/domain"
)

// Connector pulls raw metrics for one domain. Implementations are safe for
// concurrent use and return *domain.ConnectorError on failure.
type Connector interface {
	// Domain names the metric domain this connector serves.
	Domain() domain.Domain
	// Fetch returns every series the resource emits over the range, plus
	// point-in-time attributes keyed by domain.Attr* constants. Samples
	// within each series are in non-decreasing timestamp order.
	Fetch(ctx context.Context, resourceID string, r domain.TimeRange) ([]domain.SourceSeries, map[string]string, error)
	// SupportsGranularity reports whether the upstream can sample at g.
	SupportsGranularity(g domain.Granularity) bool
}

// Probe is implemented by connectors that can tell without an upstream
// call whether they are usable. The orchestrator skips fetching from an
// unconfigured connector entirely.
type Probe interface {
	Configured() bool
}

// Set indexes connectors by domain. Connectors for domains a profile does
// not configure are simply never consulted.
type Set struct {
	byDomain map[domain.Domain]Connector
}

// NewSet indexes the given connectors. A later connector for the same
// domain replaces an earlier one; nils are skipped.
func NewSet(connectors ...Connector) *Set {
	idx := make(map[domain.Domain]Connector, len(connectors))
	for _, c := range connectors {
		if c == nil {
			continue
		}
		idx[c.Domain()] = c
	}
	return &Set{byDomain: idx}
}

// For returns the connector serving d.
func (s *Set) For(d domain.Domain) (Connector, bool) {
	c, ok := s.byDomain[d]
	return c, ok
}

// Domains returns the domains with a connector, in presentation order.
func (s *Set) Domains() []domain.Domain {
	var out []domain.Domain
	for _, d := range domain.AllDomains() {
		if _, ok := s.byDomain[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

// AdaptRange returns r sampled at a granularity the connector supports,
// preferring the requested one, then coarser steps. Billing-style sources
// that only report daily figures receive the day variant of the range.
func AdaptRange(c Connector, r domain.TimeRange) domain.TimeRange {
	if c.SupportsGranularity(r.Granularity) {
		return r
	}
	ladder := domain.GranularityLadder()
	from := 0
	for i, g := range ladder {
		if g == r.Granularity {
			from = i + 1
			break
		}
	}
	for _, g := range ladder[from:] {
		if c.SupportsGranularity(g) {
			return r.WithGranularity(g)
		}
	}
	for _, g := range ladder {
		if c.SupportsGranularity(g) {
			return r.WithGranularity(g)
		}
	}
	return r
}

// Credential-shaped API error codes that mean the source is not usable
// rather than transiently failing.
var notConfiguredCodes = map[string]struct{}{
	"AccessDenied":                {},
	"AccessDeniedException":       {},
	"ExpiredToken":                {},
	"ExpiredTokenException":       {},
	"InvalidClientTokenId":        {},
	"UnrecognizedClientException": {},
}

// Classify wraps an upstream failure as a typed connector error. Deadline
// and cancellation map to timeout, credential-shaped API errors to
// not-configured, everything else to upstream.
func Classify(sourceID string, err error) *domain.ConnectorError {
	var ce *domain.ConnectorError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.TimeoutError(sourceID, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, ok := notConfiguredCodes[apiErr.ErrorCode()]; ok {
			return &domain.ConnectorError{Kind: domain.ConnectorNotConfigured, Source: sourceID, Err: err}
		}
	}
	return domain.UpstreamError(sourceID, err)
}
