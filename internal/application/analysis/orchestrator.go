// Package analysis runs aggregate analyses: for every layer it discovers
// the assets intersecting a date range and area, then fetches per-asset
// statistics, reporting progress per layer as it goes.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/penwyp/go-eo-explorer/internal/core/asynccache"
	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/data/catalog"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

// Cache key kinds.
const (
	KindDiscovery  = "discovery"
	KindStatistics = "statistics"
)

const defaultConcurrency = 8

// AssetSearcher discovers the assets of a collection.
type AssetSearcher interface {
	Search(ctx context.Context, req catalog.SearchRequest) ([]model.Asset, error)
}

// StatisticsFetcher fetches the statistics of one asset.
type StatisticsFetcher interface {
	Statistics(ctx context.Context, assetURL string) (*model.Statistics, error)
}

// LayerRef names a layer and the collection it is analysed from.
type LayerRef struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
}

// Request is one analysis input.
type Request struct {
	DateRange model.DateRange `json:"dateRange"`
	AOI       model.AOI       `json:"aoi"`
	Layers    []LayerRef      `json:"layers"`
}

// Validate checks that the request names a range, an area and distinct layers.
func (r Request) Validate() error {
	if err := r.DateRange.Validate(); err != nil {
		return err
	}
	if err := r.AOI.Validate(); err != nil {
		return err
	}
	if len(r.Layers) == 0 {
		return fmt.Errorf("%w: no layers to analyse", model.ErrInvalidRequest)
	}
	seen := make(map[string]bool, len(r.Layers))
	for _, l := range r.Layers {
		if l.ID == "" || l.Collection == "" {
			return fmt.Errorf("%w: layer requires id and collection", model.ErrInvalidRequest)
		}
		if seen[l.ID] {
			return fmt.Errorf("%w: layer %q listed twice", model.ErrInvalidRequest, l.ID)
		}
		seen[l.ID] = true
	}
	return nil
}

// Options configures an Orchestrator.
type Options struct {
	// MaxItems refuses layers discovering more assets. Zero disables the guard.
	MaxItems int
	// Concurrency bounds statistics fetches per layer.
	Concurrency int
}

type Orchestrator struct {
	searcher    AssetSearcher
	stats       StatisticsFetcher
	cache       *asynccache.Cache
	maxItems    int
	concurrency int
}

func NewOrchestrator(searcher AssetSearcher, stats StatisticsFetcher, cache *asynccache.Cache, opts Options) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Orchestrator{
		searcher:    searcher,
		stats:       stats,
		cache:       cache,
		maxItems:    opts.MaxItems,
		concurrency: opts.Concurrency,
	}
}

// Start validates req and launches one worker per layer. Every layer is
// loading with unknown total when Start returns.
func (o *Orchestrator) Start(ctx context.Context, req Request) (*Operation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithCancel(ctx)
	op := &Operation{
		id:       uuid.NewString(),
		request:  req,
		ctx:      opCtx,
		cancel:   cancel,
		emitters: make(map[string]*emitter, len(req.Layers)),
		done:     make(chan struct{}),
	}
	for _, layer := range req.Layers {
		e := newEmitter()
		e.transition(func(model.AnalysisState) (model.AnalysisState, bool) {
			return model.AnalysisState{Status: model.AnalysisLoading}, true
		})
		op.emitters[layer.ID] = e
	}

	util.LogInfof("Analysis %s: started for %d layers (%s..%s)", op.id, len(req.Layers),
		util.FormatDate(req.DateRange.Start), util.FormatDate(req.DateRange.End))

	var g errgroup.Group
	for _, layer := range req.Layers {
		g.Go(func() error {
			o.runLayer(opCtx, op, layer)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		cancel()
		close(op.done)
		util.LogDebugf("Analysis %s: done", op.id)
	}()

	return op, nil
}

func (o *Orchestrator) runLayer(ctx context.Context, op *Operation, layer LayerRef) {
	e := op.emitters[layer.ID]
	start := time.Now()

	assets, err := o.discover(ctx, op.request, layer)
	if err != nil {
		o.fail(ctx, op, layer, e, err)
		return
	}
	if o.maxItems > 0 && len(assets) > o.maxItems {
		o.fail(ctx, op, layer, e, fmt.Errorf("%w: %s matched %d assets, limit is %d",
			model.ErrTooManyItems, layer.ID, len(assets), o.maxItems))
		return
	}

	total := len(assets)
	e.transition(func(prev model.AnalysisState) (model.AnalysisState, bool) {
		return model.AnalysisState{
			Status: model.AnalysisLoading,
			Meta:   &model.AnalysisMeta{Total: &total, Loaded: 0},
		}, true
	})

	points := make([]model.TimeseriesPoint, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, asset := range assets {
		g.Go(func() error {
			stats, err := asynccache.Load(gctx, o.cache, asynccache.Key{Kind: KindStatistics, ID: asset.URL},
				func(fctx context.Context) (*model.Statistics, error) {
					return o.stats.Statistics(fctx, asset.URL)
				})
			if err != nil {
				return fmt.Errorf("statistics of %s: %w", asset.URL, err)
			}
			points[i] = model.TimeseriesPoint{Date: asset.Date, Statistics: *stats}
			e.transition(incrementLoaded)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		o.fail(ctx, op, layer, e, err)
		return
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	e.transition(func(prev model.AnalysisState) (model.AnalysisState, bool) {
		return model.AnalysisState{Status: model.AnalysisSucceeded, Meta: prev.Meta, Data: points}, true
	})
	util.LogInfof("Analysis %s: %s succeeded with %d points in %v", op.id, layer.ID, len(points), time.Since(start))
}

// incrementLoaded counts one more completed asset on top of the latest
// snapshot rather than a value captured earlier.
func incrementLoaded(prev model.AnalysisState) (model.AnalysisState, bool) {
	if prev.Status != model.AnalysisLoading || prev.Meta == nil {
		return prev, false
	}
	return model.AnalysisState{
		Status: model.AnalysisLoading,
		Meta:   &model.AnalysisMeta{Total: prev.Meta.Total, Loaded: prev.Meta.Loaded + 1},
	}, true
}

func (o *Orchestrator) discover(ctx context.Context, req Request, layer LayerRef) ([]model.Asset, error) {
	key := asynccache.Key{Kind: KindDiscovery, ID: discoveryID(req, layer)}
	assets, err := asynccache.Load(ctx, o.cache, key, func(fctx context.Context) ([]model.Asset, error) {
		return o.searcher.Search(fctx, catalog.SearchRequest{
			Collection: layer.Collection,
			DateRange:  req.DateRange,
			AOI:        req.AOI,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("discovery of %s: %w", layer.ID, err)
	}
	return assets, nil
}

// discoveryID keys discovery by layer and by the inputs that shape its
// answer, so changed inputs never reuse a stale asset list.
func discoveryID(req Request, layer LayerRef) string {
	return layer.ID + "@" + util.Fingerprint(
		layer.Collection,
		req.DateRange.Start.UTC().Format(time.RFC3339Nano),
		req.DateRange.End.UTC().Format(time.RFC3339Nano),
		req.AOI.Type,
		string(req.AOI.Coordinates),
	)
}

// fail records err as the terminal state of layer. Cancellation is not a
// failure and leaves the layer silent.
func (o *Orchestrator) fail(ctx context.Context, op *Operation, layer LayerRef, e *emitter, err error) {
	if model.IsCancellation(err) || ctx.Err() != nil {
		util.LogDebugf("Analysis %s: %s cancelled", op.id, layer.ID)
		return
	}
	util.LogWarnf("Analysis %s: %s failed: %v", op.id, layer.ID, err)
	e.transition(func(prev model.AnalysisState) (model.AnalysisState, bool) {
		return model.AnalysisState{Status: model.AnalysisErrored, Meta: prev.Meta, Error: err}, true
	})
}
