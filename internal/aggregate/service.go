package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"appboard/internal/cache"
	"appboard/internal/derive"
	"appboard/internal/domain"
)

// View names used as cache-key components and TTL keys.
const (
	ViewSummary    = "summary"
	ViewSeries     = "series"
	ViewBreakdown  = "breakdown"
	ViewProjection = "projection"
)

// DefaultViewTTLs returns the freshness window per view. The projection
// moves slowly and tolerates a longer window.
func DefaultViewTTLs() map[string]time.Duration {
	return map[string]time.Duration{
		ViewSummary:    30 * time.Second,
		ViewSeries:     30 * time.Second,
		ViewBreakdown:  60 * time.Second,
		ViewProjection: 5 * time.Minute,
	}
}

// Archiver persists summary snapshots for later inspection. A nil
// Archiver disables archiving.
type Archiver interface {
	Save(ctx context.Context, snap *domain.AggregatedSnapshot) error
}

// ServiceOptions tunes the read side.
type ServiceOptions struct {
	// DisplayBudget caps the chart points a resolved range may imply.
	// Non-positive uses domain.DefaultDisplayBudget.
	DisplayBudget int
}

// Service serves the four read views over one fetch-and-build pipeline.
// Every view resolves its range, consults the cache, and only on a miss
// fans out to the sources.
type Service struct {
	registry *domain.Registry
	orch     *Orchestrator
	cache    *cache.Cache
	archive  Archiver
	budget   int
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the read-side service.
func NewService(registry *domain.Registry, orch *Orchestrator, c *cache.Cache, archive Archiver, opts ServiceOptions, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		orch:     orch,
		cache:    c,
		archive:  archive,
		budget:   opts.DisplayBudget,
		logger:   logger,
		now:      time.Now,
	}
}

// Applications lists the registered application profiles in id order.
func (s *Service) Applications() []domain.ApplicationProfile {
	ids := s.registry.IDs()
	profiles := make([]domain.ApplicationProfile, 0, len(ids))
	for _, id := range ids {
		p, err := s.registry.Get(id)
		if err != nil {
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles
}

// GetAggregatedSnapshot returns the cross-domain summary for one
// application and range token. Successful fresh builds are archived
// best-effort.
func (s *Service) GetAggregatedSnapshot(ctx context.Context, appID, rangeToken string) (*domain.AggregatedSnapshot, error) {
	profile, err := s.registry.Get(appID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	r, err := domain.ResolveRange(rangeToken, now, s.budget)
	if err != nil {
		return nil, err
	}

	key := cache.Key{App: appID, View: ViewSummary, Range: rangeToken}
	payload, status, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (any, error) {
		report := s.orch.Fetch(ctx, profile, profile.Domains(), r)
		snap, err := buildSnapshot(appID, rangeToken, r, report, now)
		if err != nil {
			return nil, err
		}
		s.archiveSnapshot(ctx, snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}

	snap := payload.(*domain.AggregatedSnapshot)
	if status == cache.StatusStale {
		stale := *snap
		stale.Stale = true
		return &stale, nil
	}
	return snap, nil
}

// GetTimeSeries returns the raw per-resource series of one domain, for
// charting.
func (s *Service) GetTimeSeries(ctx context.Context, appID string, d domain.Domain, rangeToken string) (*domain.TimeSeriesView, error) {
	profile, r, now, err := s.resolveDomainView(appID, d, rangeToken)
	if err != nil {
		return nil, err
	}

	key := cache.Key{App: appID, View: ViewSeries, Range: string(d) + "/" + rangeToken}
	payload, status, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (any, error) {
		results := s.fetchDomain(ctx, profile, d, r)
		if countOK(results) == 0 {
			return nil, domainUnavailable(appID, d, results)
		}
		return &domain.TimeSeriesView{
			AppID:       appID,
			Domain:      d,
			RangeToken:  rangeToken,
			Range:       r,
			GeneratedAt: now,
			Health:      healthFor(results),
			Issues:      failureIssues(results),
			Series:      buildTimeSeries(results, d),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	view := payload.(*domain.TimeSeriesView)
	if status == cache.StatusStale {
		stale := *view
		stale.Stale = true
		return &stale, nil
	}
	return view, nil
}

// GetBreakdown ranks one domain's sub-components by their dominant metric.
func (s *Service) GetBreakdown(ctx context.Context, appID string, d domain.Domain, rangeToken string) (*domain.BreakdownView, error) {
	profile, r, now, err := s.resolveDomainView(appID, d, rangeToken)
	if err != nil {
		return nil, err
	}

	key := cache.Key{App: appID, View: ViewBreakdown, Range: string(d) + "/" + rangeToken}
	payload, status, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (any, error) {
		results := s.fetchDomain(ctx, profile, d, r)
		if countOK(results) == 0 {
			return nil, domainUnavailable(appID, d, results)
		}
		items, total, unit := buildBreakdown(results, d)
		return &domain.BreakdownView{
			AppID:       appID,
			Domain:      d,
			RangeToken:  rangeToken,
			Range:       r,
			GeneratedAt: now,
			Health:      healthFor(results),
			Issues:      failureIssues(results),
			Items:       items,
			Total:       total,
			Unit:        unit,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	view := payload.(*domain.BreakdownView)
	if status == cache.StatusStale {
		stale := *view
		stale.Stale = true
		return &stale, nil
	}
	return view, nil
}

// GetProjection estimates month-end spend from month-to-date daily costs.
// The window is anchored at the service clock regardless of the range
// token, which is validated and keyed on only.
func (s *Service) GetProjection(ctx context.Context, appID, rangeToken string) (*domain.ProjectionView, error) {
	profile, err := s.registry.Get(appID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if _, err := domain.ResolveRange(rangeToken, now, s.budget); err != nil {
		return nil, err
	}
	if !profile.Configured(domain.DomainCost) {
		return nil, fmt.Errorf("%w: cost not configured for %q", domain.ErrUnavailable, appID)
	}

	key := cache.Key{App: appID, View: ViewProjection, Range: rangeToken}
	payload, status, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (any, error) {
		results := s.fetchDomain(ctx, profile, domain.DomainCost, monthToDateRange(now))
		ok := okForDomain(results, domain.DomainCost)
		if len(ok) == 0 {
			return nil, domainUnavailable(appID, domain.DomainCost, results)
		}
		summary := buildCost(ok, now)
		view := &domain.ProjectionView{
			AppID:           appID,
			GeneratedAt:     now,
			Currency:        summary.Currency,
			MonthToDateCost: summary.TotalCost,
		}
		if summary.Projection != nil {
			view.Projection = *summary.Projection
		} else {
			view.Projection = derive.ProjectMonthlyCost(nil, now)
		}
		return view, nil
	})
	if err != nil {
		return nil, err
	}

	view := payload.(*domain.ProjectionView)
	if status == cache.StatusStale {
		stale := *view
		stale.Stale = true
		return &stale, nil
	}
	return view, nil
}

// resolveDomainView validates the common inputs of the single-domain views.
func (s *Service) resolveDomainView(appID string, d domain.Domain, rangeToken string) (domain.ApplicationProfile, domain.TimeRange, time.Time, error) {
	profile, err := s.registry.Get(appID)
	if err != nil {
		return domain.ApplicationProfile{}, domain.TimeRange{}, time.Time{}, err
	}
	now := s.now()
	r, err := domain.ResolveRange(rangeToken, now, s.budget)
	if err != nil {
		return domain.ApplicationProfile{}, domain.TimeRange{}, time.Time{}, err
	}
	if !profile.Configured(d) {
		return domain.ApplicationProfile{}, domain.TimeRange{}, time.Time{},
			fmt.Errorf("%w: %s not configured for %q", domain.ErrUnavailable, d, appID)
	}
	return profile, r, now, nil
}

func (s *Service) fetchDomain(ctx context.Context, profile domain.ApplicationProfile, d domain.Domain, r domain.TimeRange) []domain.SourceFetchResult {
	return s.orch.Fetch(ctx, profile, []domain.Domain{d}, r).Results
}

func (s *Service) archiveSnapshot(ctx context.Context, snap *domain.AggregatedSnapshot) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Save(ctx, snap); err != nil {
		s.logger.Warn("snapshot archive failed", "app", snap.AppID, "error", err)
	}
}

// domainUnavailable wraps ErrUnavailable with the first failure detail so
// callers see why the domain produced nothing.
func domainUnavailable(appID string, d domain.Domain, results []domain.SourceFetchResult) error {
	for _, res := range results {
		if !res.OK() && res.ErrorDetail != "" {
			return fmt.Errorf("%w: %s for %q: %s", domain.ErrUnavailable, d, appID, res.ErrorDetail)
		}
	}
	return fmt.Errorf("%w: %s for %q", domain.ErrUnavailable, d, appID)
}

// monthToDateRange is the projection fetch window: first of the current
// month up to now, in daily buckets.
func monthToDateRange(now time.Time) domain.TimeRange {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return domain.TimeRange{Start: start, End: now, Granularity: domain.GranularityDay}
}
