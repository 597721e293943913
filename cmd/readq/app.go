package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pario-ai/readq/pkg/ai"
	"github.com/pario-ai/readq/pkg/analysis"
	"github.com/pario-ai/readq/pkg/audit"
	"github.com/pario-ai/readq/pkg/budget"
	cachepkg "github.com/pario-ai/readq/pkg/cache/sqlite"
	"github.com/pario-ai/readq/pkg/config"
	"github.com/pario-ai/readq/pkg/cost"
	"github.com/pario-ai/readq/pkg/events"
	"github.com/pario-ai/readq/pkg/logger"
	"github.com/pario-ai/readq/pkg/metrics"
	"github.com/pario-ai/readq/pkg/provider"
	"github.com/pario-ai/readq/pkg/tracker"
)

// app holds every component of a running readq process.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	emitter  *events.Emitter
	store    *tracker.SQLiteTracker
	costs    *cost.Tracker
	enforcer *budget.Enforcer
	cache    *cachepkg.Cache
	auditor  *audit.Logger
	svc      *ai.Service
	analyzer *analysis.Analyzer
	metrics  *metrics.Collector
}

func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{cfg: cfg, log: logger.New(cfg.LogLevel, "readq")}
	a.emitter = events.New(events.WithLogger(a.log))
	a.metrics = metrics.New()
	a.metrics.Attach(a.emitter)

	a.store, err = tracker.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init ledger store: %w", err)
	}

	a.costs = cost.New(cfg.AI.BudgetLimit,
		cost.WithStore(a.store),
		cost.WithEmitter(a.emitter),
		cost.WithLogger(a.log.With().Str("component", "cost").Logger()),
	)
	if err := a.costs.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.metrics.SetSpend(a.costs.CurrentSpend(), cfg.AI.BudgetLimit)
	a.enforcer = budget.New(cfg.Budget.Period, a.costs)

	opts := []ai.Option{
		ai.WithEmitter(a.emitter),
		ai.WithRetryPolicy(cfg.Retry),
		ai.WithLogger(a.log.With().Str("component", "ai").Logger()),
	}
	if cfg.Cache.Enabled {
		a.cache, err = cachepkg.New(cfg.CachePath(), cfg.Cache.TTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init cache: %w", err)
		}
		opts = append(opts, ai.WithCache(a.cache))
	}
	if cfg.Audit.Enabled {
		auditCfg := cfg.Audit
		auditCfg.DBPath = cfg.AuditPath()
		a.auditor, err = audit.New(auditCfg, audit.WithLogger(a.log.With().Str("component", "audit").Logger()))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init audit log: %w", err)
		}
	}
	var next metrics.Auditor
	if a.auditor != nil {
		next = a.auditor
	}
	opts = append(opts, ai.WithAuditor(a.metrics.Auditor(next)))

	a.svc = ai.New(cfg.AI, opts...)
	for _, p := range provider.All(
		provider.WithTimeout(cfg.Timeouts.Provider),
		provider.WithLogger(a.log.With().Str("component", "provider").Logger()),
	) {
		a.svc.RegisterProvider(p)
	}

	a.analyzer = analysis.New(a.svc, a.costs,
		analysis.WithFetcher(analysis.NewHTTPFetcher(cfg.Timeouts.Fetch)),
		analysis.WithSpend(a.enforcer.Spend),
		analysis.WithEmitter(a.emitter),
		analysis.WithLogger(a.log.With().Str("component", "analysis").Logger()),
	)
	return a, nil
}

// budgetLimit reads the limit from the live settings.
func (a *app) budgetLimit() *float64 {
	return a.svc.Settings().BudgetLimit
}

func (a *app) Close() {
	if a.auditor != nil {
		_ = a.auditor.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
