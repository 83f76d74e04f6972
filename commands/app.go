package commands

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/penwyp/go-eo-explorer/internal/application/analysis"
	"github.com/penwyp/go-eo-explorer/internal/application/exploration"
	"github.com/penwyp/go-eo-explorer/internal/config"
	"github.com/penwyp/go-eo-explorer/internal/core/asynccache"
	"github.com/penwyp/go-eo-explorer/internal/core/urlstore"
	"github.com/penwyp/go-eo-explorer/internal/data/catalog"
	"github.com/penwyp/go-eo-explorer/internal/data/httpclient"
	"github.com/penwyp/go-eo-explorer/internal/data/metadata"
	"github.com/penwyp/go-eo-explorer/internal/data/raster"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

// app wires the services of one command run from its configuration.
type app struct {
	cfg          *config.Config
	registry     *prometheus.Registry
	cache        *asynccache.Cache
	catalog      *catalog.Client
	reconciler   *metadata.Reconciler
	orchestrator *analysis.Orchestrator
}

func newApp(cfg *config.Config) *app {
	registry := prometheus.NewRegistry()
	cache := asynccache.New(asynccache.Options{
		Size:    cfg.Cache.Size,
		TTL:     cfg.Cache.TTL,
		Metrics: asynccache.NewMetrics(registry),
	})
	return newAppWithCache(cfg, registry, cache)
}

// reload rebuilds the services from cfg. The cache and its registry are
// kept, so cache size and TTL changes need a restart.
func (a *app) reload(cfg *config.Config) *app {
	return newAppWithCache(cfg, a.registry, a.cache)
}

func newAppWithCache(cfg *config.Config, registry *prometheus.Registry, cache *asynccache.Cache) *app {
	client := httpclient.NewDefaultClient(cfg.HTTPTimeout)
	cat := catalog.NewClient(client, cfg.CatalogEndpoint)
	stats := raster.NewClient(client, cfg.RasterEndpoint)

	return &app{
		cfg:      cfg,
		registry: registry,
		cache:    cache,
		catalog:  cat,
		reconciler: metadata.NewReconciler(cat, metadata.Options{
			Time:    util.GetTimeProvider(),
			Timeout: cfg.HTTPTimeout,
		}),
		orchestrator: analysis.NewOrchestrator(cat, stats, cache, analysis.Options{
			MaxItems:    cfg.Analysis.MaxItems,
			Concurrency: cfg.Analysis.Concurrency,
		}),
	}
}

// newView creates a view over loc. A nil loc starts from an empty URL.
func (a *app) newView(loc urlstore.Location) (*exploration.View, error) {
	view, err := exploration.NewView(exploration.Deps{
		Location:     loc,
		Layers:       a.cfg.Layers,
		Reconciler:   a.reconciler,
		Orchestrator: a.orchestrator,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create view: %w", err)
	}
	return view, nil
}

// cacheCounter sums one cache counter over every key kind.
func (a *app) cacheCounter(name string) float64 {
	families, err := a.registry.Gather()
	if err != nil {
		util.LogWarnf("Failed to gather cache metrics: %v", err)
		return 0
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
