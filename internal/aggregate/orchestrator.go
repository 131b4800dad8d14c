// Package aggregate runs the fetch-reconcile-derive pipeline behind the
// four read views: it fans out to the configured sources, assembles the
// results into snapshots and shapes them per view.
package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"appboard/internal/domain"
	"appboard/internal/source"
)

const (
	defaultMaxInFlight   = 8
	defaultCallTimeout   = 5 * time.Second
	defaultOverallBudget = 10 * time.Second
)

// OrchestratorOptions tunes the fan-out. Zero fields take package
// defaults.
type OrchestratorOptions struct {
	MaxInFlight   int
	CallTimeout   time.Duration
	OverallBudget time.Duration
}

// FetchReport is the outcome of one fan-out: exactly one result per
// (connector, resource) work item, in work-item order. The time budget is
// observability only; exceeding it never cancels anything.
type FetchReport struct {
	Results      []domain.SourceFetchResult
	Elapsed      time.Duration
	WithinBudget bool
}

// Orchestrator fans one aggregation request out to every configured
// source with bounded concurrency. Failures are captured per result and
// never abort the run.
type Orchestrator struct {
	sources       *source.Set
	maxInFlight   int
	callTimeout   time.Duration
	overallBudget time.Duration
	logger        *slog.Logger
}

// NewOrchestrator builds an orchestrator over the connector set.
func NewOrchestrator(sources *source.Set, opts OrchestratorOptions, logger *slog.Logger) *Orchestrator {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = defaultMaxInFlight
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.OverallBudget <= 0 {
		opts.OverallBudget = defaultOverallBudget
	}
	return &Orchestrator{
		sources:       sources,
		maxInFlight:   opts.MaxInFlight,
		callTimeout:   opts.CallTimeout,
		overallBudget: opts.OverallBudget,
		logger:        logger,
	}
}

// workItem is one (domain, resource) pair to fetch. The connector is nil
// when none is registered for the domain.
type workItem struct {
	domain     domain.Domain
	connector  source.Connector
	resourceID string
}

// Fetch pulls every resource the profile configures for the requested
// domains. Each call gets its own timeout; cancelling ctx stops in-flight
// and queued work.
func (o *Orchestrator) Fetch(ctx context.Context, profile domain.ApplicationProfile, domains []domain.Domain, r domain.TimeRange) FetchReport {
	items := o.workItems(profile, domains)
	results := make([]domain.SourceFetchResult, len(items))
	started := time.Now()

	// Bounded fan-out; each goroutine writes only its own slot.
	sem := make(chan struct{}, o.maxInFlight)
	var wg sync.WaitGroup
	for i, item := range items {
		if item.connector == nil {
			results[i] = failureResult(item, domain.NotConfiguredError(string(item.domain), "no connector registered"))
			continue
		}
		if p, ok := item.connector.(source.Probe); ok && !p.Configured() {
			results[i] = failureResult(item, domain.NotConfiguredError(string(item.domain), "source not configured"))
			continue
		}

		wg.Add(1)
		go func(idx int, item workItem) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[idx] = failureResult(item, domain.TimeoutError(string(item.domain), ctx.Err()))
				return
			}
			defer func() { <-sem }()

			results[idx] = o.fetchOne(ctx, item, r)
		}(i, item)
	}
	wg.Wait()

	elapsed := time.Since(started)
	within := elapsed <= o.overallBudget
	if !within && o.logger != nil {
		o.logger.Warn("aggregation exceeded time budget",
			"app", profile.ID, "elapsed", elapsed, "budget", o.overallBudget)
	}
	return FetchReport{Results: results, Elapsed: elapsed, WithinBudget: within}
}

func (o *Orchestrator) fetchOne(ctx context.Context, item workItem, r domain.TimeRange) domain.SourceFetchResult {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	adapted := source.AdaptRange(item.connector, r)
	series, attrs, err := item.connector.Fetch(callCtx, item.resourceID, adapted)
	if err != nil {
		if o.logger != nil {
			o.logger.Warn("source fetch failed",
				"source", string(item.domain), "resource", item.resourceID, "error", err)
		}
		return failureResult(item, source.Classify(string(item.domain), err))
	}
	return domain.SourceFetchResult{
		SourceID:   string(item.domain),
		Domain:     item.domain,
		ResourceID: item.resourceID,
		Series:     series,
		Attrs:      attrs,
		Status:     domain.FetchOK,
	}
}

func (o *Orchestrator) workItems(profile domain.ApplicationProfile, domains []domain.Domain) []workItem {
	var items []workItem
	for _, d := range domains {
		if !profile.Configured(d) {
			continue
		}
		c, _ := o.sources.For(d)
		for _, id := range profile.ResourceIDs(d) {
			items = append(items, workItem{domain: d, connector: c, resourceID: id})
		}
	}
	return items
}

func failureResult(item workItem, err error) domain.SourceFetchResult {
	// The detail is shown in issue strings already prefixed with the
	// source, so keep only the underlying cause here.
	detail := err.Error()
	var ce *domain.ConnectorError
	if errors.As(err, &ce) && ce.Err != nil {
		detail = ce.Err.Error()
	}
	return domain.SourceFetchResult{
		SourceID:    string(item.domain),
		Domain:      item.domain,
		ResourceID:  item.resourceID,
		Status:      domain.StatusForError(err),
		ErrorDetail: detail,
	}
}
