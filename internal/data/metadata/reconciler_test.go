package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/data/catalog"
	"github.com/penwyp/go-eo-explorer/internal/data/httpclient"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

var fakeNow = time.Date(2024, 5, 17, 15, 4, 5, 0, time.UTC)

// fakeCatalog serves collection documents by id. A "{{base}}" placeholder
// in a document is replaced with the server URL.
func fakeCatalog(t *testing.T, docs map[string]string) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/collections/")
		doc, ok := docs[id]
		if !ok {
			http.Error(w, "collection not found", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(strings.ReplaceAll(doc, "{{base}}", server.URL)))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestReconciler(t *testing.T, server *httptest.Server) *Reconciler {
	t.Helper()
	tp, err := util.NewTimeProvider(clockwork.NewFakeClockAt(fakeNow), "UTC")
	require.NoError(t, err)
	cat := catalog.NewClient(httpclient.NewDefaultClient(time.Second), server.URL)
	return NewReconciler(cat, Options{Time: tp, Timeout: 5 * time.Second})
}

func rasterLayer(id string) model.LayerConfig {
	return model.LayerConfig{ID: id, Protocol: model.ProtocolRaster, Collection: id}
}

func TestReconcile_EnumeratedDomain(t *testing.T) {
	server := fakeCatalog(t, map[string]string{
		"no2": `{
			"id": "no2",
			"summaries": {"datetime": [
				"2020-05-01T00:00:00Z", "2020-01-01T00:00:00Z", "2020-03-01T00:00:00Z",
				"2020-02-01T00:00:00Z", "2020-04-01T00:00:00Z"
			]},
			"extent": {"temporal": {"interval": [["2000-01-01T00:00:00Z", null]]}},
			"dashboard:time_density": "month",
			"renders": {"dashboard": {"colormap_name": "rdbu_r", "rescale": [[0, 1]]}}
		}`,
	})
	r := newTestReconciler(t, server)

	data, err := r.Reconcile(context.Background(), rasterLayer("no2"))
	require.NoError(t, err)

	require.Len(t, data.Domain, 5, "summaries are preferred over the extent and kept in full")
	for i := 1; i < len(data.Domain); i++ {
		assert.False(t, data.Domain[i].Before(data.Domain[i-1]), "domain is sorted")
	}
	assert.Equal(t, model.DensityMonth, data.TimeDensity)
	assert.False(t, data.IsPeriodic)
	assert.Contains(t, data.Renders, "dashboard")
}

func TestReconcile_OpenIntervalEndsNow(t *testing.T) {
	server := fakeCatalog(t, map[string]string{
		"open": `{"extent": {"temporal": {"interval": [["2019-01-01T00:00:00Z", null]]}}, "dashboard:is_periodic": true}`,
	})
	r := newTestReconciler(t, server)

	data, err := r.Reconcile(context.Background(), rasterLayer("open"))
	require.NoError(t, err)

	require.Len(t, data.Domain, 2)
	assert.True(t, data.IsPeriodic)
	last, _ := data.Last()
	assert.False(t, last.IsZero())
	assert.False(t, last.After(fakeNow))
	assert.True(t, last.Equal(fakeNow))
}

func TestReconcile_AbsentDomain(t *testing.T) {
	server := fakeCatalog(t, map[string]string{
		"bare":    `{"id": "bare"}`,
		"nostart": `{"extent": {"temporal": {"interval": [[null, null]]}}}`,
	})
	r := newTestReconciler(t, server)

	for _, id := range []string{"bare", "nostart"} {
		data, err := r.Reconcile(context.Background(), rasterLayer(id))
		require.NoError(t, err, id)
		assert.NotNil(t, data.Domain, id)
		assert.Empty(t, data.Domain, id)
	}
}

func TestReconcile_Timeless(t *testing.T) {
	server := fakeCatalog(t, map[string]string{
		"dem": `{"dashboard:is_timeless": true, "extent": {"temporal": {"interval": [["1990-01-01T00:00:00Z", "1991-01-01T00:00:00Z"]]}}}`,
	})
	r := newTestReconciler(t, server)

	data, err := r.Reconcile(context.Background(), rasterLayer("dem"))
	require.NoError(t, err)

	assert.True(t, data.IsTimeless)
	require.Len(t, data.Domain, 2)
	assert.True(t, data.Domain[0].Equal(time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)))
	assert.True(t, data.Domain[1].Equal(time.Date(2024, 5, 18, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)))
}

func TestReconcile_DensityFallsBackToLayer(t *testing.T) {
	server := fakeCatalog(t, map[string]string{
		"yearly": `{"summaries": {"datetime": ["2001-01-01", "2002-01-01"]}}`,
	})
	r := newTestReconciler(t, server)

	layer := rasterLayer("yearly")
	layer.TimeDensity = model.DensityYear
	data, err := r.Reconcile(context.Background(), layer)
	require.NoError(t, err)

	assert.Equal(t, model.DensityYear, data.TimeDensity)
	assert.Len(t, data.Domain, 2)
}

func TestReconcile_Vector(t *testing.T) {
	server := fakeCatalog(t, map[string]string{
		"fires": `{
			"id": "fires",
			"dashboard:time_density": "day",
			"links": [
				{"rel": "self", "href": "{{base}}/collections/fires"},
				{"rel": "parent", "href": "{{base}}/collections/fires-parent"}
			]
		}`,
		"fires-parent": `{"extent": {"temporal": {"interval": [["2023-06-01T00:00:00Z", "2023-09-30T00:00:00Z"]]}}}`,
	})
	r := newTestReconciler(t, server)

	layer := model.LayerConfig{ID: "fires", Protocol: model.ProtocolVector, Collection: "fires"}
	data, err := r.Reconcile(context.Background(), layer)
	require.NoError(t, err)

	require.Len(t, data.Domain, 2)
	assert.True(t, data.Domain[0].Equal(time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, model.DensityDay, data.TimeDensity)
}

func TestReconcile_VectorWithoutParent(t *testing.T) {
	server := fakeCatalog(t, map[string]string{"orphan": `{"links": []}`})
	r := newTestReconciler(t, server)

	_, err := r.Reconcile(context.Background(), model.LayerConfig{ID: "orphan", Protocol: model.ProtocolVector, Collection: "orphan"})
	assert.ErrorIs(t, err, model.ErrMalformedResponse)
}

func TestReconcile_Errors(t *testing.T) {
	server := fakeCatalog(t, map[string]string{
		"garbled": `{"summaries": {"datetime": ["yesterday"]}}`,
	})
	r := newTestReconciler(t, server)

	_, err := r.Reconcile(context.Background(), rasterLayer("garbled"))
	assert.ErrorIs(t, err, model.ErrMalformedResponse)

	_, err = r.Reconcile(context.Background(), rasterLayer("missing"))
	assert.ErrorIs(t, err, model.ErrNetwork)

	_, err = r.Reconcile(context.Background(), model.LayerConfig{ID: "x", Protocol: "ftp", Collection: "x"})
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestReconcileAll_IsolatesFailures(t *testing.T) {
	server := fakeCatalog(t, map[string]string{
		"a": `{"summaries": {"datetime": ["2020-01-01T00:00:00Z"]}}`,
		"c": `{"summaries": {"datetime": ["2021-01-01T00:00:00Z", "2022-01-01T00:00:00Z"]}}`,
	})
	r := newTestReconciler(t, server)

	results := r.ReconcileAll(context.Background(), []model.LayerConfig{
		rasterLayer("a"), rasterLayer("b"), rasterLayer("c"),
	})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Len(t, results[0].Data.Domain, 1)
	assert.ErrorIs(t, results[1].Err, model.ErrNetwork)
	assert.Nil(t, results[1].Data)
	assert.NoError(t, results[2].Err)
	assert.Len(t, results[2].Data.Domain, 2)
	assert.Equal(t, "c", results[2].Layer.ID)
}
