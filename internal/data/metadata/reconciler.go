// Package metadata reconciles heterogeneous catalog metadata into each
// dataset's canonical time domain.
package metadata

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/data/catalog"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

const defaultConcurrency = 8

// Options configures a Reconciler.
type Options struct {
	// Time supplies "now" for open extents and timeless datasets.
	Time *util.TimeProvider
	// Timeout bounds each Reconcile call. Zero means no extra bound.
	Timeout time.Duration
	// Concurrency bounds ReconcileAll fan-out.
	Concurrency int
}

// Result is the outcome of reconciling one layer.
type Result struct {
	Layer model.LayerConfig
	Data  *model.DatasetData
	Err   error
}

type Reconciler struct {
	normalizers map[model.Protocol]Normalizer
	timeout     time.Duration
	concurrency int
}

func NewReconciler(cat *catalog.Client, opts Options) *Reconciler {
	if opts.Time == nil {
		opts.Time = util.GetTimeProvider()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}

	collection := &collectionNormalizer{catalog: cat, time: opts.Time}
	return &Reconciler{
		normalizers: map[model.Protocol]Normalizer{
			model.ProtocolRaster: collection,
			model.ProtocolWMS:    collection,
			model.ProtocolWMTS:   collection,
			model.ProtocolCMR:    collection,
			model.ProtocolVector: &vectorNormalizer{catalog: cat, time: opts.Time},
		},
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
	}
}

// Reconcile fetches and normalizes the metadata of one layer.
func (r *Reconciler) Reconcile(ctx context.Context, layer model.LayerConfig) (*model.DatasetData, error) {
	n, ok := r.normalizers[layer.Protocol]
	if !ok {
		return nil, fmt.Errorf("%w: layer %q has unknown protocol %q", model.ErrConfiguration, layer.ID, layer.Protocol)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	data, err := n.Normalize(ctx, layer)
	if err != nil {
		if !model.IsCancellation(err) {
			util.LogWarnf("Metadata: failed to reconcile %s: %v", layer.ID, err)
		}
		return nil, fmt.Errorf("reconcile %s: %w", layer.ID, err)
	}

	util.LogDebugf("Metadata: %s reconciled in %v (%d instants, density=%q, periodic=%v)",
		layer.ID, time.Since(start), len(data.Domain), data.TimeDensity, data.IsPeriodic)
	return data, nil
}

// ReconcileAll reconciles layers concurrently. Results keep the order of
// layers; a failure is recorded on its own result and never cancels or
// blocks the others.
func (r *Reconciler) ReconcileAll(ctx context.Context, layers []model.LayerConfig) []Result {
	results := make([]Result, len(layers))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, layer := range layers {
		g.Go(func() error {
			data, err := r.Reconcile(ctx, layer)
			results[i] = Result{Layer: layer, Data: data, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
