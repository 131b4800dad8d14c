package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"appboard/internal/aggregate"
	awsclient "appboard/internal/aws"
	"appboard/internal/cache"
	"appboard/internal/config"
	"appboard/internal/history"
	"appboard/internal/source"
	"appboard/internal/source/distribution"
)

// stack bundles the wired aggregation service with the pieces commands
// need to tear down afterwards.
type stack struct {
	cfg   *config.Config
	svc   *aggregate.Service
	store *history.Store
}

func (s *stack) Close() {
	if s.store != nil {
		s.store.Close()
	}
}

// buildStack loads configuration and wires connectors, orchestrator,
// cache, and archive into a ready aggregation service.
func buildStack(ctx context.Context, cfgPath string, logger *slog.Logger) (*stack, error) {
	path, err := config.ResolvePath(cfgPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsclient.LoadConfig(ctx, cfg.AWS.Profile, cfg.AWS.Region)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	if accountID := awsclient.GetAccountID(ctx, awsCfg); accountID != "" {
		logger.Info("aws session ready", "account", accountID, "region", awsCfg.Region)
	}

	connectors := awsclient.Connectors(awsCfg)
	if cfg.Distribution.BaseURL != "" {
		connectors = append(connectors, distribution.NewClient(cfg.Distribution.BaseURL, cfg.Distribution.Token))
	}

	orch := aggregate.NewOrchestrator(source.NewSet(connectors...), aggregate.OrchestratorOptions{
		MaxInFlight:   cfg.Engine.MaxInFlight,
		CallTimeout:   cfg.Engine.CallTimeout(),
		OverallBudget: cfg.Engine.OverallBudget(),
	}, logger)

	ttls := aggregate.DefaultViewTTLs()
	for view, ttl := range cfg.Engine.ViewTTLs() {
		ttls[view] = ttl
	}
	resultCache := cache.New(ttls, 0, cfg.Engine.StaleAllowance())

	st := &stack{cfg: cfg}
	var archive aggregate.Archiver
	if !cfg.History.Disabled {
		store, err := openArchiveAt(cfg.History.Path)
		if err != nil {
			// Archiving is best effort; aggregation still works without it.
			logger.Warn("snapshot archive unavailable", "error", err)
		} else {
			st.store = store
			archive = store
		}
	}

	st.svc = aggregate.NewService(registry, orch, resultCache, archive, aggregate.ServiceOptions{
		DisplayBudget: cfg.Engine.DisplayBudget,
	}, logger)
	return st, nil
}

// openArchiveAt opens the snapshot archive at path, or at the default
// location when path is empty.
func openArchiveAt(path string) (*history.Store, error) {
	if path != "" {
		return history.OpenAt(path)
	}
	return history.Open()
}
