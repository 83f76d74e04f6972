// Package fixtures builds catalog and raster API responses for tests and
// serves them from an in-process HTTP server.
package fixtures

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
)

// Collection describes one STAC collection document.
type Collection struct {
	ID string
	// Datetimes are published as summaries.datetime.
	Datetimes []time.Time
	// Interval is published as extent.temporal.interval[0]; a nil bound is
	// written as null.
	Interval    *[2]*time.Time
	TimeDensity model.TimeDensity
	Periodic    bool
	Timeless    bool
	// ParentHref adds a parent link, as published by vector items.
	ParentHref string
}

// Feature is one search result with a cog_default asset.
type Feature struct {
	Datetime time.Time
	Href     string
}

// MonthStarts returns the first day of months 1..n of year, in UTC.
func MonthStarts(year, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for m := 1; m <= n; m++ {
		out = append(out, time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC))
	}
	return out
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// JSON renders the collection document.
func (c Collection) JSON() ([]byte, error) {
	doc := map[string]any{
		"id":                    c.ID,
		"type":                  "Collection",
		"dashboard:is_periodic": c.Periodic,
		"dashboard:is_timeless": c.Timeless,
		"links":                 []any{},
	}
	if c.TimeDensity != "" {
		doc["dashboard:time_density"] = string(c.TimeDensity)
	}
	if len(c.Datetimes) > 0 {
		dates := make([]any, len(c.Datetimes))
		for i := range c.Datetimes {
			dates[i] = formatTime(&c.Datetimes[i])
		}
		doc["summaries"] = map[string]any{"datetime": dates}
	}
	if c.Interval != nil {
		doc["extent"] = map[string]any{
			"temporal": map[string]any{
				"interval": []any{[]any{formatTime(c.Interval[0]), formatTime(c.Interval[1])}},
			},
		}
	}
	if c.ParentHref != "" {
		doc["links"] = []any{map[string]any{"rel": "parent", "href": c.ParentHref}}
	}
	return sonic.Marshal(doc)
}

// FeatureCollectionJSON renders a search response.
func FeatureCollectionJSON(features []Feature) ([]byte, error) {
	out := make([]any, len(features))
	for i, f := range features {
		out[i] = map[string]any{
			"type":       "Feature",
			"properties": map[string]any{"datetime": formatTime(&f.Datetime)},
			"assets":     map[string]any{"cog_default": map[string]any{"href": f.Href}},
		}
	}
	return sonic.Marshal(map[string]any{"type": "FeatureCollection", "features": out})
}

// StatisticsJSON renders a single-band statistics response.
func StatisticsJSON(s model.Statistics) ([]byte, error) {
	return sonic.Marshal(map[string]model.Statistics{"b1": s})
}

// NewTestServer starts a server with keep-alives disabled so Close does not
// wait on idle client connections.
func NewTestServer(handler http.Handler) *httptest.Server {
	srv := httptest.NewUnstartedServer(handler)
	srv.Config.SetKeepAlivesEnabled(false)
	srv.Start()
	return srv
}

// Backend serves collections at /collections/{id}, search results at
// /search and statistics at /cog/statistics. Unknown collections are 404.
type Backend struct {
	server *httptest.Server

	mu          sync.Mutex
	collections map[string]Collection
	features    []Feature
	stats       map[string]model.Statistics
	defaults    model.Statistics

	searchCalls atomic.Int32
	statsCalls  atomic.Int32
}

func NewBackend() *Backend {
	b := &Backend{
		collections: make(map[string]Collection),
		stats:       make(map[string]model.Statistics),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/collections/", b.handleCollection)
	mux.HandleFunc("/search", b.handleSearch)
	mux.HandleFunc("/cog/statistics", b.handleStatistics)
	b.server = NewTestServer(mux)
	return b
}

func (b *Backend) URL() string {
	return b.server.URL
}

func (b *Backend) Close() {
	b.server.Close()
}

func (b *Backend) AddCollection(c Collection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collections[c.ID] = c
}

// SetFeatures replaces the result of every search.
func (b *Backend) SetFeatures(features ...Feature) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.features = append([]Feature(nil), features...)
}

// SetStatistics sets the statistics of one asset href. Other hrefs get the
// defaults.
func (b *Backend) SetStatistics(href string, s model.Statistics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats[href] = s
}

func (b *Backend) SetDefaultStatistics(s model.Statistics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.defaults = s
}

func (b *Backend) SearchCalls() int {
	return int(b.searchCalls.Load())
}

func (b *Backend) StatisticsCalls() int {
	return int(b.statsCalls.Load())
}

func writeJSON(w http.ResponseWriter, data []byte, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (b *Backend) handleCollection(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/collections/")
	b.mu.Lock()
	c, ok := b.collections[id]
	b.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	data, err := c.JSON()
	writeJSON(w, data, err)
}

func (b *Backend) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "search requires POST", http.StatusMethodNotAllowed)
		return
	}
	b.searchCalls.Add(1)
	b.mu.Lock()
	features := b.features
	b.mu.Unlock()
	data, err := FeatureCollectionJSON(features)
	writeJSON(w, data, err)
}

func (b *Backend) handleStatistics(w http.ResponseWriter, r *http.Request) {
	b.statsCalls.Add(1)
	href := r.URL.Query().Get("url")
	b.mu.Lock()
	s, ok := b.stats[href]
	if !ok {
		s = b.defaults
	}
	b.mu.Unlock()
	data, err := StatisticsJSON(s)
	writeJSON(w, data, err)
}
