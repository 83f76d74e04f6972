package urlstore

import (
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

// Parameter names of the exploration view.
const (
	ParamDatasets = "datasets"
	ParamDate     = "date"
	ParamAOI      = "aoi"
	ParamEmbed    = "embed"
)

const dateRangeSeparator = "|"

// BoolOptions stores a flag as "true" or an absent parameter.
func BoolOptions(param string) Options[bool, bool] {
	return Options[bool, bool]{
		Param:   param,
		Hydrate: func(raw string, ok bool) bool { return ok && raw == "true" },
		Dehydrate: func(v bool) string {
			if v {
				return "true"
			}
			return ""
		},
		Equal: func(a, b bool) bool { return a == b },
	}
}

// DateRangeOptions stores a range as "start|end" RFC 3339 instants.
func DateRangeOptions() Options[model.DateRange, model.DateRange] {
	return Options[model.DateRange, model.DateRange]{
		Param:     ParamDate,
		Hydrate:   hydrateDateRange,
		Dehydrate: dehydrateDateRange,
		Equal:     model.DateRange.Equal,
	}
}

func hydrateDateRange(raw string, ok bool) model.DateRange {
	if !ok || raw == "" {
		return model.DateRange{}
	}
	startRaw, endRaw, found := strings.Cut(raw, dateRangeSeparator)
	if !found {
		util.LogWarnf("URL: ignoring malformed date parameter %q", raw)
		return model.DateRange{}
	}
	start, errStart := time.Parse(time.RFC3339Nano, startRaw)
	end, errEnd := time.Parse(time.RFC3339Nano, endRaw)
	if errStart != nil || errEnd != nil {
		util.LogWarnf("URL: ignoring unparsable date parameter %q", raw)
		return model.DateRange{}
	}
	return model.DateRange{Start: start, End: end}
}

func dehydrateDateRange(r model.DateRange) string {
	if r.IsZero() {
		return ""
	}
	return r.Start.UTC().Format(time.RFC3339Nano) + dateRangeSeparator + r.End.UTC().Format(time.RFC3339Nano)
}

// AOIOptions stores an area of interest as GeoJSON geometry.
func AOIOptions() Options[model.AOI, model.AOI] {
	return Options[model.AOI, model.AOI]{
		Param: ParamAOI,
		Hydrate: func(raw string, ok bool) model.AOI {
			if !ok || raw == "" {
				return model.AOI{}
			}
			aoi, err := model.ParseAOI([]byte(raw))
			if err != nil {
				util.LogWarnf("URL: ignoring invalid aoi parameter: %v", err)
				return model.AOI{}
			}
			return aoi
		},
		Dehydrate: func(a model.AOI) string {
			if a.IsZero() {
				return ""
			}
			data, err := sonic.Marshal(a)
			if err != nil {
				util.LogErrorf("URL: failed to encode aoi: %v", err)
				return ""
			}
			return string(data)
		},
		Equal: model.AOI.Equal,
	}
}

// DatasetParam is the URL form of one dataset: its id and user settings.
type DatasetParam struct {
	ID       string         `json:"id"`
	Settings model.Settings `json:"settings"`
}

// LayerLookup resolves a dataset id to its configured layer.
type LayerLookup func(id string) (model.LayerConfig, bool)

// DatasetsOptions stores the dataset list as a JSON array of DatasetParam.
// Reconciling rebuilds the list in URL order, keeping fetched data and status
// of datasets already in storage and adding idle entries for new ids. Ids
// lookup cannot resolve are dropped.
func DatasetsOptions(lookup LayerLookup) Options[[]model.TimelineDataset, []DatasetParam] {
	return Options[[]model.TimelineDataset, []DatasetParam]{
		Param:     ParamDatasets,
		Hydrate:   hydrateDatasets,
		Dehydrate: dehydrateDatasets,
		Reconcile: func(params []DatasetParam, storage []model.TimelineDataset) []model.TimelineDataset {
			return reconcileDatasets(params, storage, lookup)
		},
		Equal: DatasetsEqual,
	}
}

func hydrateDatasets(raw string, ok bool) []DatasetParam {
	if !ok || raw == "" {
		return nil
	}
	var params []DatasetParam
	if err := sonic.UnmarshalString(raw, &params); err != nil {
		util.LogWarnf("URL: ignoring invalid datasets parameter: %v", err)
		return nil
	}
	return params
}

func dehydrateDatasets(datasets []model.TimelineDataset) string {
	if len(datasets) == 0 {
		return ""
	}
	params := make([]DatasetParam, len(datasets))
	for i, d := range datasets {
		params[i] = DatasetParam{ID: d.ID, Settings: d.Settings}
	}
	s, err := sonic.MarshalString(params)
	if err != nil {
		util.LogErrorf("URL: failed to encode datasets: %v", err)
		return ""
	}
	return s
}

func reconcileDatasets(params []DatasetParam, storage []model.TimelineDataset, lookup LayerLookup) []model.TimelineDataset {
	if len(params) == 0 {
		return nil
	}

	byID := make(map[string]model.TimelineDataset, len(storage))
	for _, d := range storage {
		byID[d.ID] = d
	}

	out := make([]model.TimelineDataset, 0, len(params))
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true

		d, ok := byID[p.ID]
		if !ok {
			layer, known := lookup(p.ID)
			if !known {
				util.LogWarnf("URL: dropping unknown dataset %q", p.ID)
				continue
			}
			d = model.NewTimelineDataset(layer)
		}
		d.Settings = p.Settings
		out = append(out, d)
	}
	return out
}

// DatasetsEqual compares two dataset lists by the state a consumer can
// observe: order, id, status, settings, domain and analysis progress.
func DatasetsEqual(a, b []model.TimelineDataset) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.Status != y.Status || x.Error != y.Error || !x.Settings.Equal(y.Settings) {
			return false
		}
		if len(x.Data.Domain) != len(y.Data.Domain) || x.Data.IsPeriodic != y.Data.IsPeriodic {
			return false
		}
		if x.Analysis.Status != y.Analysis.Status || x.Analysis.Loaded() != y.Analysis.Loaded() ||
			len(x.Analysis.Data) != len(y.Analysis.Data) {
			return false
		}
	}
	return true
}
