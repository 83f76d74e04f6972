package exploration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-eo-explorer/internal/application/analysis"
	"github.com/penwyp/go-eo-explorer/internal/core/asynccache"
	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/core/timeline"
	"github.com/penwyp/go-eo-explorer/internal/core/urlstore"
	"github.com/penwyp/go-eo-explorer/internal/data/catalog"
	"github.com/penwyp/go-eo-explorer/internal/data/httpclient"
	"github.com/penwyp/go-eo-explorer/internal/data/metadata"
	"github.com/penwyp/go-eo-explorer/internal/data/raster"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

var testLayers = []model.LayerConfig{
	{ID: "no2", Name: "Nitrogen dioxide", Protocol: model.ProtocolRaster, Collection: "no2-monthly"},
	{ID: "co2", Protocol: model.ProtocolRaster, Collection: "co2-daily"},
	{ID: "broken", Protocol: model.ProtocolRaster, Collection: "does-not-exist"},
}

// nineteenMonths is a domain of 19 timestamps, 6 of them inside
// 2010-01-01..2011-11-01.
func nineteenMonths() []string {
	var out []string
	add := func(y, m int) { out = append(out, fmt.Sprintf(`"%04d-%02d-01T00:00:00Z"`, y, m)) }
	for m := 1; m <= 6; m++ {
		add(2009, m)
	}
	for _, ym := range [][2]int{{2010, 3}, {2010, 7}, {2010, 12}, {2011, 2}, {2011, 6}, {2011, 10}} {
		add(ym[0], ym[1])
	}
	for m := 1; m <= 7; m++ {
		add(2012, m)
	}
	return out
}

type fakeBackend struct {
	server     *httptest.Server
	statsCalls atomic.Int32
	// statsGate, when set, holds statistics requests until closed.
	statsGate chan struct{}
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/collections/no2-monthly", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"summaries":{"datetime":[%s]},"dashboard:time_density":"month"}`, strings.Join(nineteenMonths(), ","))
	})
	mux.HandleFunc("/collections/co2-daily", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"extent":{"temporal":{"interval":[["2015-01-01T00:00:00Z",null]]}},"dashboard:is_periodic":true,"dashboard:time_density":"day"}`))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"features":[
			{"id":"b","properties":{"datetime":"2010-07-01T00:00:00Z"},"assets":{"cog_default":{"href":"s3://cogs/b.tif"}}},
			{"id":"a","properties":{"datetime":"2010-03-01T00:00:00Z"},"assets":{"cog_default":{"href":"s3://cogs/a.tif"}}}
		]}`))
	})
	mux.HandleFunc("/cog/statistics", func(w http.ResponseWriter, r *http.Request) {
		b.statsCalls.Add(1)
		if b.statsGate != nil {
			select {
			case <-b.statsGate:
			case <-r.Context().Done():
				return
			}
		}
		_, _ = w.Write([]byte(`{"b1":{"mean":2.5,"std":0.5,"min":1,"max":4}}`))
	})
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func newTestView(t *testing.T, b *fakeBackend, loc urlstore.Location) *View {
	t.Helper()
	client := httpclient.NewDefaultClient(5 * time.Second)
	cat := catalog.NewClient(client, b.server.URL)
	tp, err := util.NewTimeProvider(clockwork.NewFakeClockAt(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)), "UTC")
	require.NoError(t, err)

	v, err := NewView(Deps{
		Location:   loc,
		Layers:     testLayers,
		Reconciler: metadata.NewReconciler(cat, metadata.Options{Time: tp}),
		Orchestrator: analysis.NewOrchestrator(cat, raster.NewClient(client, b.server.URL),
			asynccache.New(asynccache.Options{}), analysis.Options{}),
	})
	require.NoError(t, err)
	t.Cleanup(v.Close)
	return v
}

func testAOI() model.AOI {
	return model.AOI{Type: model.GeometryPolygon, Coordinates: []byte(`[[[0,0],[1,0],[1,1],[0,0]]]`)}
}

func TestNewView_RequiresServices(t *testing.T) {
	_, err := NewView(Deps{})
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestView_AddAndRemoveDatasets(t *testing.T) {
	loc := urlstore.NewMemoryLocation()
	v := newTestView(t, newFakeBackend(t), loc)

	err := v.AddDatasets("no2", "nope")
	assert.ErrorIs(t, err, model.ErrConfiguration)
	assert.Empty(t, v.Datasets(), "a failed add changes nothing")

	require.NoError(t, v.AddDatasets("no2", "co2"))
	require.NoError(t, v.AddDatasets("no2"))

	ds := v.Datasets()
	require.Len(t, ds, 2)
	assert.Equal(t, "no2", ds[0].ID)
	assert.Equal(t, model.DatasetIdle, ds[0].Status)

	raw, ok := loc.Param(urlstore.ParamDatasets)
	require.True(t, ok)
	assert.Contains(t, raw, `"id":"co2"`)

	assert.True(t, v.RemoveDataset("no2"))
	assert.False(t, v.RemoveDataset("no2"))
	assert.Len(t, v.Datasets(), 1)
}

func TestView_HydratesFromURL(t *testing.T) {
	loc, err := urlstore.ParseLocation(`?embed=true&datasets=[{"id":"co2","settings":{"isVisible":false,"opacity":30}}]` +
		`&date=2010-01-01T00:00:00Z|2011-11-01T00:00:00Z`)
	require.NoError(t, err)
	v := newTestView(t, newFakeBackend(t), loc)

	assert.True(t, v.Embed())
	ds := v.Datasets()
	require.Len(t, ds, 1)
	assert.Equal(t, "co2", ds[0].ID)
	assert.Equal(t, 30.0, ds[0].Settings.Opacity)
	assert.Equal(t, 2010, v.DateRange().Start.Year())
}

func TestView_UpdateSettings(t *testing.T) {
	v := newTestView(t, newFakeBackend(t), nil)
	require.NoError(t, v.AddDatasets("no2"))

	require.NoError(t, v.UpdateSettings("no2", func(s model.Settings) model.Settings {
		s.Opacity = 55
		return s
	}))
	d, ok := v.Dataset("no2")
	require.True(t, ok)
	assert.Equal(t, 55.0, d.Settings.Opacity)

	assert.ErrorIs(t, v.UpdateSettings("co2", func(s model.Settings) model.Settings { return s }), model.ErrConfiguration)
}

func TestView_SetDateRangeAndAOIValidate(t *testing.T) {
	v := newTestView(t, newFakeBackend(t), nil)

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.ErrorIs(t, v.SetDateRange(model.DateRange{Start: start, End: start.AddDate(-1, 0, 0)}), model.ErrInvalidRequest)
	assert.ErrorIs(t, v.SetAOI(model.AOI{Type: "Point"}), model.ErrInvalidRequest)

	require.NoError(t, v.SetAOI(testAOI()))
	assert.True(t, v.AOI().Equal(testAOI()))

	v.SetEmbed(true)
	assert.True(t, v.Embed())
}

func TestView_SyncMetadata(t *testing.T) {
	v := newTestView(t, newFakeBackend(t), nil)
	require.NoError(t, v.AddDatasets("no2", "broken", "co2"))

	err := v.SyncMetadata(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNetwork)

	byID := map[string]model.TimelineDataset{}
	for _, d := range v.Datasets() {
		byID[d.ID] = d
	}
	assert.Equal(t, model.DatasetSuccess, byID["no2"].Status)
	assert.Len(t, byID["no2"].Data.Domain, 19)
	assert.Equal(t, model.DatasetError, byID["broken"].Status)
	assert.Error(t, byID["broken"].Error)
	assert.Equal(t, model.DatasetSuccess, byID["co2"].Status)
	assert.True(t, byID["co2"].Data.IsPeriodic)

	// Only errored datasets are retried.
	err = v.SyncMetadata(context.Background())
	assert.ErrorIs(t, err, model.ErrNetwork)
	d, _ := v.Dataset("no2")
	assert.Equal(t, model.DatasetSuccess, d.Status)
}

func TestView_CountsObservationsInRange(t *testing.T) {
	v := newTestView(t, newFakeBackend(t), nil)
	require.NoError(t, v.AddDatasets("no2"))
	require.NoError(t, v.SyncMetadata(context.Background()))
	require.NoError(t, v.SetDateRange(model.DateRange{
		Start: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2011, 11, 1, 0, 0, 0, 0, time.UTC),
	}))

	d, ok := v.Dataset("no2")
	require.True(t, ok)
	require.False(t, d.Data.IsPeriodic)
	r := v.DateRange()
	assert.Equal(t, 6, timeline.CountInRange(d.Data, r.Start, r.End))
}

func TestView_RunAnalysisFoldsIntoDatasets(t *testing.T) {
	b := newFakeBackend(t)
	v := newTestView(t, b, nil)
	require.NoError(t, v.AddDatasets("no2"))
	require.NoError(t, v.SetDateRange(model.DateRange{
		Start: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2011, 11, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, v.SetAOI(testAOI()))

	op, err := v.RunAnalysis(context.Background())
	require.NoError(t, err)
	require.NoError(t, op.Wait(context.Background()))

	require.Eventually(t, func() bool {
		d, _ := v.Dataset("no2")
		return d.Analysis.Status == model.AnalysisSucceeded
	}, time.Second, time.Millisecond)

	d, _ := v.Dataset("no2")
	require.Len(t, d.Analysis.Data, 2)
	assert.True(t, d.Analysis.Data[0].Date.Before(d.Analysis.Data[1].Date))
	assert.Equal(t, 2.5, d.Analysis.Data[0].Mean)
	assert.Same(t, op, v.Analysis())
}

func TestView_RunAnalysisReplacesPrevious(t *testing.T) {
	b := newFakeBackend(t)
	b.statsGate = make(chan struct{})
	v := newTestView(t, b, nil)
	require.NoError(t, v.AddDatasets("no2"))
	require.NoError(t, v.SetDateRange(model.DateRange{
		Start: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2011, 11, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, v.SetAOI(testAOI()))

	first, err := v.RunAnalysis(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return b.statsCalls.Load() >= 1 }, time.Second, time.Millisecond)

	second, err := v.RunAnalysis(context.Background())
	require.NoError(t, err)
	assert.Zero(t, first.Subscribers(), "previous operation is torn down")

	select {
	case <-first.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("previous operation did not stop")
	}
	s, _ := first.State("no2")
	assert.NotEqual(t, model.AnalysisErrored, s.Status)

	close(b.statsGate)
	require.NoError(t, second.Wait(context.Background()))
	require.Eventually(t, func() bool {
		d, _ := v.Dataset("no2")
		return d.Analysis.Status == model.AnalysisSucceeded
	}, time.Second, time.Millisecond)
}

func TestView_RunAnalysisRequiresInputs(t *testing.T) {
	v := newTestView(t, newFakeBackend(t), nil)
	require.NoError(t, v.AddDatasets("no2"))

	_, err := v.RunAnalysis(context.Background())
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestView_Close(t *testing.T) {
	b := newFakeBackend(t)
	b.statsGate = make(chan struct{})
	defer close(b.statsGate)
	v := newTestView(t, b, nil)
	require.NoError(t, v.AddDatasets("no2"))
	require.NoError(t, v.SetDateRange(model.DateRange{
		Start: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, v.SetAOI(testAOI()))

	op, err := v.RunAnalysis(context.Background())
	require.NoError(t, err)

	v.Close()
	assert.Zero(t, op.Subscribers())
	d, _ := v.Dataset("no2")
	assert.Equal(t, model.AnalysisIdle, d.Analysis.Status)

	_, err = v.RunAnalysis(context.Background())
	assert.ErrorIs(t, err, model.ErrCancelled)
}
