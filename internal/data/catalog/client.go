// Package catalog talks to a STAC catalog: collection metadata lookups and
// CQL2-JSON item search.
package catalog

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/data/httpclient"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

const (
	// DefaultSearchLimit is the page size requested from /search.
	DefaultSearchLimit = 10000
	maxSearchPages     = 20

	cogAssetPath = "assets.cog_default.href"
)

type Client struct {
	http     httpclient.Client
	endpoint string
}

// NewClient returns a client for the catalog rooted at endpoint.
func NewClient(client httpclient.Client, endpoint string) *Client {
	return &Client{http: client, endpoint: strings.TrimRight(endpoint, "/")}
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Collection returns the raw JSON document of a collection.
func (c *Client) Collection(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty collection id", model.ErrConfiguration)
	}
	return c.FetchJSON(ctx, c.endpoint+"/collections/"+url.PathEscape(id))
}

// FetchJSON fetches any catalog document by absolute href and checks that
// it is JSON.
func (c *Client) FetchJSON(ctx context.Context, href string) ([]byte, error) {
	data, err := c.http.Get(ctx, href)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s did not return json", model.ErrMalformedResponse, href)
	}
	return data, nil
}

// SearchRequest selects the items of one collection intersecting a date
// range and, optionally, an area.
type SearchRequest struct {
	Collection string
	DateRange  model.DateRange
	AOI        model.AOI
	Limit      int
}

// Search returns one asset per matching item, following next links.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]model.Asset, error) {
	search, err := searchBody(req)
	if err != nil {
		return nil, err
	}
	body, err := sonic.Marshal(search)
	if err != nil {
		return nil, err
	}

	util.LogDebugf("Catalog: searching %s between %s and %s",
		req.Collection, util.FormatDate(req.DateRange.Start), util.FormatDate(req.DateRange.End))

	data, err := c.http.Post(ctx, c.endpoint+"/search", body)
	if err != nil {
		return nil, err
	}

	var assets []model.Asset
	for page := 1; ; page++ {
		pageAssets, err := parseFeatures(data)
		if err != nil {
			return nil, err
		}
		assets = append(assets, pageAssets...)

		next := gjson.GetBytes(data, `links.#(rel=="next")`)
		if !next.Exists() {
			break
		}
		if page >= maxSearchPages {
			return nil, fmt.Errorf("%w: search of %s spans more than %d pages",
				model.ErrTooManyItems, req.Collection, maxSearchPages)
		}
		if data, err = c.nextPage(ctx, next, search); err != nil {
			return nil, err
		}
	}

	util.LogDebugf("Catalog: %s matched %d assets", req.Collection, len(assets))
	return assets, nil
}

// nextPage follows a next link. A POST link carries the body to send,
// laid over the original search body when merge is set.
func (c *Client) nextPage(ctx context.Context, link gjson.Result, search map[string]any) ([]byte, error) {
	href := link.Get("href").String()
	if href == "" {
		return nil, fmt.Errorf("%w: next link has no href", model.ErrMalformedResponse)
	}
	if !strings.EqualFold(link.Get("method").String(), "POST") {
		return c.FetchJSON(ctx, href)
	}

	body := make(map[string]any, len(search))
	if link.Get("merge").Bool() {
		maps.Copy(body, search)
	}
	if raw := link.Get("body"); raw.IsObject() {
		var extra map[string]any
		if err := sonic.UnmarshalString(raw.Raw, &extra); err != nil {
			return nil, fmt.Errorf("%w: next link body: %w", model.ErrMalformedResponse, err)
		}
		maps.Copy(body, extra)
	}
	payload, err := sonic.Marshal(body)
	if err != nil {
		return nil, err
	}
	return c.http.Post(ctx, href, payload)
}

type cql2Expr struct {
	Op   string `json:"op"`
	Args []any  `json:"args"`
}

type property struct {
	Property string `json:"property"`
}

type interval struct {
	Interval []string `json:"interval"`
}

func searchBody(req SearchRequest) (map[string]any, error) {
	if req.Collection == "" {
		return nil, fmt.Errorf("%w: search requires a collection", model.ErrInvalidRequest)
	}
	if err := req.DateRange.Validate(); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	args := []any{
		cql2Expr{Op: "=", Args: []any{property{"collection"}, req.Collection}},
		cql2Expr{Op: "t_intersects", Args: []any{
			property{"datetime"},
			interval{[]string{
				req.DateRange.Start.UTC().Format(time.RFC3339Nano),
				req.DateRange.End.UTC().Format(time.RFC3339Nano),
			}},
		}},
	}
	if !req.AOI.IsZero() {
		args = append(args, cql2Expr{Op: "s_intersects", Args: []any{property{"geometry"}, req.AOI}})
	}

	return map[string]any{
		"filter-lang": "cql2-json",
		"limit":       limit,
		"filter":      cql2Expr{Op: "and", Args: args},
		"fields": map[string][]string{
			"include": {cogAssetPath, "properties.datetime", "properties.start_datetime"},
		},
	}, nil
}

func parseFeatures(data []byte) ([]model.Asset, error) {
	features := gjson.GetBytes(data, "features")
	if !features.IsArray() {
		return nil, fmt.Errorf("%w: search response has no features", model.ErrMalformedResponse)
	}

	assets := make([]model.Asset, 0, len(features.Array()))
	var parseErr error
	features.ForEach(func(_, f gjson.Result) bool {
		id := f.Get("id").String()
		href := f.Get(cogAssetPath)
		if !href.Exists() || href.String() == "" {
			parseErr = fmt.Errorf("%w: item %q has no %s", model.ErrMalformedResponse, id, cogAssetPath)
			return false
		}

		raw := f.Get("properties.datetime").String()
		if raw == "" {
			raw = f.Get("properties.start_datetime").String()
		}
		date, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			parseErr = fmt.Errorf("%w: item %q has no usable datetime: %w", model.ErrMalformedResponse, id, err)
			return false
		}

		assets = append(assets, model.Asset{Date: date, URL: href.String()})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return assets, nil
}
