// Package exploration is the context object of the exploration and
// analysis view. It owns the URL-bound state and the services that fill it.
package exploration

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/penwyp/go-eo-explorer/internal/application/analysis"
	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/core/urlstore"
	"github.com/penwyp/go-eo-explorer/internal/data/metadata"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

// MetadataReconciler resolves the time domain of layers.
type MetadataReconciler interface {
	ReconcileAll(ctx context.Context, layers []model.LayerConfig) []metadata.Result
}

// AnalysisStarter launches analyses.
type AnalysisStarter interface {
	Start(ctx context.Context, req analysis.Request) (*analysis.Operation, error)
}

// Deps are the collaborators of a View.
type Deps struct {
	Location     urlstore.Location
	Layers       []model.LayerConfig
	Reconciler   MetadataReconciler
	Orchestrator AnalysisStarter
}

type View struct {
	loc          urlstore.Location
	layers       map[string]model.LayerConfig
	reconciler   MetadataReconciler
	orchestrator AnalysisStarter

	datasets *urlstore.ReconciledAtom[[]model.TimelineDataset, []urlstore.DatasetParam]
	date     *urlstore.Atom[model.DateRange]
	aoi      *urlstore.Atom[model.AOI]
	embed    *urlstore.Atom[bool]

	mu       sync.Mutex
	current  *analysis.Operation
	stopFold func()
	closed   bool

	// active is the operation whose states may still be folded in.
	active atomic.Pointer[analysis.Operation]
}

func NewView(deps Deps) (*View, error) {
	if deps.Reconciler == nil || deps.Orchestrator == nil {
		return nil, fmt.Errorf("%w: view requires a reconciler and an orchestrator", model.ErrConfiguration)
	}
	if deps.Location == nil {
		deps.Location = urlstore.NewMemoryLocation()
	}

	v := &View{
		loc:          deps.Location,
		layers:       make(map[string]model.LayerConfig, len(deps.Layers)),
		reconciler:   deps.Reconciler,
		orchestrator: deps.Orchestrator,
	}
	for _, l := range deps.Layers {
		v.layers[l.ID] = l
	}

	var err error
	if v.datasets, err = urlstore.NewReconciledAtom(v.loc, urlstore.DatasetsOptions(v.layer)); err != nil {
		return nil, err
	}
	if v.date, err = urlstore.NewAtom(v.loc, urlstore.DateRangeOptions()); err != nil {
		return nil, err
	}
	if v.aoi, err = urlstore.NewAtom(v.loc, urlstore.AOIOptions()); err != nil {
		return nil, err
	}
	if v.embed, err = urlstore.NewAtom(v.loc, urlstore.BoolOptions(urlstore.ParamEmbed)); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *View) layer(id string) (model.LayerConfig, bool) {
	l, ok := v.layers[id]
	return l, ok
}

// Location returns the URL state the view is bound to.
func (v *View) Location() urlstore.Location {
	return v.loc
}

// Datasets returns the current dataset list in URL order.
func (v *View) Datasets() []model.TimelineDataset {
	return v.datasets.Get()
}

// Dataset returns one dataset by id.
func (v *View) Dataset(id string) (model.TimelineDataset, bool) {
	for _, d := range v.datasets.Get() {
		if d.ID == id {
			return d, true
		}
	}
	return model.TimelineDataset{}, false
}

// AddDatasets appends configured layers as idle datasets. Ids already
// present are kept as they are. An unknown id fails the whole call.
func (v *View) AddDatasets(ids ...string) error {
	added := make([]model.TimelineDataset, 0, len(ids))
	for _, id := range ids {
		layer, ok := v.layer(id)
		if !ok {
			return fmt.Errorf("%w: dataset %q is not configured", model.ErrConfiguration, id)
		}
		added = append(added, model.NewTimelineDataset(layer))
	}

	v.datasets.Update(func(list []model.TimelineDataset) []model.TimelineDataset {
		next := slices.Clone(list)
		for _, d := range added {
			if !slices.ContainsFunc(next, func(x model.TimelineDataset) bool { return x.ID == d.ID }) {
				next = append(next, d)
			}
		}
		return next
	})
	return nil
}

// RemoveDataset drops id and reports whether it was present.
func (v *View) RemoveDataset(id string) bool {
	removed := false
	v.datasets.Update(func(list []model.TimelineDataset) []model.TimelineDataset {
		next := slices.DeleteFunc(slices.Clone(list), func(d model.TimelineDataset) bool { return d.ID == id })
		removed = len(next) != len(list)
		return next
	})
	return removed
}

// UpdateSettings applies fn to the settings of dataset id.
func (v *View) UpdateSettings(id string, fn func(model.Settings) model.Settings) error {
	found := false
	v.updateDataset(id, func(d *model.TimelineDataset) {
		found = true
		d.Settings = fn(d.Settings)
	})
	if !found {
		return fmt.Errorf("%w: dataset %q is not selected", model.ErrConfiguration, id)
	}
	return nil
}

func (v *View) updateDataset(id string, fn func(d *model.TimelineDataset)) {
	v.datasets.Update(func(list []model.TimelineDataset) []model.TimelineDataset {
		i := slices.IndexFunc(list, func(d model.TimelineDataset) bool { return d.ID == id })
		if i < 0 {
			return list
		}
		next := slices.Clone(list)
		fn(&next[i])
		return next
	})
}

func (v *View) DateRange() model.DateRange {
	return v.date.Get()
}

func (v *View) SetDateRange(r model.DateRange) error {
	if err := r.Validate(); err != nil {
		return err
	}
	v.date.Set(r)
	return nil
}

func (v *View) AOI() model.AOI {
	return v.aoi.Get()
}

func (v *View) SetAOI(a model.AOI) error {
	if err := a.Validate(); err != nil {
		return err
	}
	v.aoi.Set(a)
	return nil
}

func (v *View) Embed() bool {
	return v.embed.Get()
}

func (v *View) SetEmbed(embed bool) {
	v.embed.Set(embed)
}

// SyncMetadata reconciles every idle or errored dataset. Each moves to
// loading, then to success or error on its own. The returned error joins
// the per-dataset failures.
func (v *View) SyncMetadata(ctx context.Context) error {
	var pending []model.LayerConfig
	v.datasets.Update(func(list []model.TimelineDataset) []model.TimelineDataset {
		next := slices.Clone(list)
		for i := range next {
			if next[i].Status == model.DatasetIdle || next[i].Status == model.DatasetError {
				next[i].Status = model.DatasetLoading
				next[i].Error = nil
				pending = append(pending, next[i].Data.Layer)
			}
		}
		return next
	})
	if len(pending) == 0 {
		return nil
	}

	util.LogDebugf("View: reconciling metadata of %d datasets", len(pending))
	var errs []error
	for _, res := range v.reconciler.ReconcileAll(ctx, pending) {
		v.updateDataset(res.Layer.ID, func(d *model.TimelineDataset) {
			switch {
			case res.Err == nil:
				d.Status = model.DatasetSuccess
				d.Data = *res.Data
			case model.IsCancellation(res.Err):
				d.Status = model.DatasetIdle
			default:
				d.Status = model.DatasetError
				d.Error = res.Err
			}
		})
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// RunAnalysis cancels the running analysis, if any, and starts a new one
// over every selected dataset. Layer states are folded into each dataset's
// Analysis as they arrive.
func (v *View) RunAnalysis(ctx context.Context) (*analysis.Operation, error) {
	datasets := v.datasets.Get()
	req := analysis.Request{DateRange: v.date.Get(), AOI: v.aoi.Get()}
	for _, d := range datasets {
		req.Layers = append(req.Layers, analysis.LayerRef{ID: d.ID, Collection: d.Data.Layer.Collection})
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, fmt.Errorf("%w: view is closed", model.ErrCancelled)
	}
	v.stopLocked()

	op, err := v.orchestrator.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	v.current = op
	v.active.Store(op)
	v.stopFold = op.OnAny(func(layerID string, s model.AnalysisState) {
		if v.active.Load() != op {
			return
		}
		v.updateDataset(layerID, func(d *model.TimelineDataset) { d.Analysis = s })
	})
	util.LogDebugf("View: analysis %s started", op.ID())
	return op, nil
}

// Analysis returns the running or last finished analysis.
func (v *View) Analysis() *analysis.Operation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// CancelAnalysis stops the current analysis and resets every dataset's
// analysis state, as if it never started.
func (v *View) CancelAnalysis() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopLocked()
}

func (v *View) stopLocked() {
	if v.current == nil {
		return
	}
	v.active.Store(nil)
	v.current.Close()
	if v.stopFold != nil {
		v.stopFold()
	}
	v.current, v.stopFold = nil, nil

	v.datasets.Update(func(list []model.TimelineDataset) []model.TimelineDataset {
		next := slices.Clone(list)
		for i := range next {
			next[i].Analysis = model.AnalysisState{Status: model.AnalysisIdle}
		}
		return next
	})
}

// Close cancels the current analysis and drops every subscription.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopLocked()
	v.closed = true
}
