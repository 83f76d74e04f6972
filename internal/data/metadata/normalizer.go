package metadata

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/data/catalog"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

// Normalizer turns a layer's published metadata into the canonical
// DatasetData shape. There is one per protocol.
type Normalizer interface {
	Normalize(ctx context.Context, layer model.LayerConfig) (*model.DatasetData, error)
}

// Catalog fields read from a collection document. gjson paths, so the
// colon keys need no escaping.
const (
	fieldSummaryDatetime = "summaries.datetime"
	fieldInterval        = "extent.temporal.interval.0"
	fieldTimeDensity     = "dashboard:time_density"
	fieldIsPeriodic      = "dashboard:is_periodic"
	fieldIsTimeless      = "dashboard:is_timeless"
	fieldRenders         = "renders"
	fieldParentLink      = `links.#(rel=="parent").href`
)

// collectionNormalizer reads the layer's collection document directly.
// Raster, WMS, WMTS and CMR layers publish their extent this way.
type collectionNormalizer struct {
	catalog *catalog.Client
	time    *util.TimeProvider
}

func (n *collectionNormalizer) Normalize(ctx context.Context, layer model.LayerConfig) (*model.DatasetData, error) {
	doc, err := n.catalog.Collection(ctx, layer.Collection)
	if err != nil {
		return nil, err
	}
	return normalizeDocument(gjson.ParseBytes(doc), gjson.Result{}, layer, n.time.Now())
}

// vectorNormalizer follows the collection's parent link; vector layers
// carry their temporal extent on the parent feature collection.
type vectorNormalizer struct {
	catalog *catalog.Client
	time    *util.TimeProvider
}

func (n *vectorNormalizer) Normalize(ctx context.Context, layer model.LayerConfig) (*model.DatasetData, error) {
	doc, err := n.catalog.Collection(ctx, layer.Collection)
	if err != nil {
		return nil, err
	}
	child := gjson.ParseBytes(doc)

	href := child.Get(fieldParentLink).String()
	if href == "" {
		return nil, fmt.Errorf("%w: vector collection %q has no parent link", model.ErrMalformedResponse, layer.Collection)
	}
	util.LogDebugf("Metadata: %s follows parent %s", layer.ID, href)

	parent, err := n.catalog.FetchJSON(ctx, href)
	if err != nil {
		return nil, err
	}
	return normalizeDocument(gjson.ParseBytes(parent), child, layer, n.time.Now())
}

// normalizeDocument builds DatasetData from doc. Dashboard fields missing
// from doc are taken from overlay when it exists.
func normalizeDocument(doc, overlay gjson.Result, layer model.LayerConfig, now time.Time) (*model.DatasetData, error) {
	get := func(path string) gjson.Result {
		if v := overlay.Get(path); v.Exists() {
			return v
		}
		return doc.Get(path)
	}

	data := &model.DatasetData{
		Layer:       layer,
		Domain:      []time.Time{},
		TimeDensity: model.ParseTimeDensity(get(fieldTimeDensity).String()),
		IsPeriodic:  get(fieldIsPeriodic).Bool(),
		IsTimeless:  get(fieldIsTimeless).Bool(),
	}
	if data.TimeDensity == "" {
		data.TimeDensity = layer.TimeDensity
	}

	if renders := get(fieldRenders); renders.IsObject() {
		if err := sonic.UnmarshalString(renders.Raw, &data.Renders); err != nil {
			return nil, fmt.Errorf("%w: renders of %q: %w", model.ErrMalformedResponse, layer.Collection, err)
		}
	}

	if data.IsTimeless {
		data.Domain = []time.Time{util.StartOfDay(now), util.EndOfDay(now)}
		return data, nil
	}

	var raw []gjson.Result
	if summary := doc.Get(fieldSummaryDatetime); summary.IsArray() && len(summary.Array()) > 0 {
		raw = summary.Array()
	} else if interval := doc.Get(fieldInterval); interval.IsArray() {
		raw = interval.Array()
		// An interval without a start describes no usable domain.
		if len(raw) == 0 || raw[0].Type == gjson.Null {
			raw = nil
		}
	}

	for _, v := range raw {
		t, err := parseInstant(v, now)
		if err != nil {
			return nil, fmt.Errorf("%w: collection %q: %w", model.ErrMalformedResponse, layer.Collection, err)
		}
		data.Domain = append(data.Domain, t)
	}
	sort.Slice(data.Domain, func(i, j int) bool { return data.Domain[i].Before(data.Domain[j]) })

	return data, nil
}

var instantLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// parseInstant parses a catalog datetime. A null bound is open and means now.
func parseInstant(v gjson.Result, now time.Time) (time.Time, error) {
	if v.Type == gjson.Null {
		return now, nil
	}
	s := v.String()
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable datetime %q", s)
}
