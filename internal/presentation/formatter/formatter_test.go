package formatter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/core/timeline"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleDatasets() []model.TimelineDataset {
	no2 := model.NewTimelineDataset(model.LayerConfig{ID: "no2-monthly", Name: "NO2", Protocol: model.ProtocolRaster})
	no2.Status = model.DatasetSuccess
	no2.Data.TimeDensity = model.DensityMonth
	no2.Data.Domain = []time.Time{day(2020, 1, 1), day(2020, 2, 1), day(2020, 3, 1)}

	flood := model.NewTimelineDataset(model.LayerConfig{ID: "flood", Protocol: model.ProtocolVector})
	flood.Status = model.DatasetError
	flood.Error = errors.New("malformed response: no parent link")

	return []model.TimelineDataset{no2, flood}
}

func sampleReport() AnalysisReport {
	total := 2
	states := map[string]model.AnalysisState{
		"no2-monthly": {
			Status: model.AnalysisSucceeded,
			Meta:   &model.AnalysisMeta{Total: &total, Loaded: 2},
			Data: []model.TimeseriesPoint{
				{Date: day(2020, 2, 1), Statistics: model.Statistics{Mean: 2.5, Min: 1, Max: 4}},
				{Date: day(2020, 1, 1), Statistics: model.Statistics{Mean: 1.25, Std: 0.5}},
			},
		},
		"flood": {Status: model.AnalysisErrored, Error: errors.New("network error: HTTP 500")},
	}
	r := model.DateRange{Start: day(2020, 1, 1), End: day(2020, 3, 31)}
	return NewAnalysisReport("op-1", r, []string{"no2-monthly", "flood", "absent"}, states)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{" JSON ", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			f, err := New(got)
			require.NoError(t, err)
			assert.NotNil(t, f)
		})
	}
}

func TestDatasetRows(t *testing.T) {
	rows := DatasetRows(sampleDatasets())
	require.Len(t, rows, 2)

	assert.Equal(t, DatasetRow{
		ID:          "no2-monthly",
		Name:        "NO2",
		Protocol:    "raster",
		TimeDensity: "month",
		DomainSize:  3,
		First:       "2020-01-01",
		Last:        "2020-03-01",
		Status:      "success",
	}, rows[0])
	assert.Equal(t, "-", rows[1].First)
	assert.Equal(t, "-", rows[1].TimeDensity)
	assert.Contains(t, rows[1].Error, "no parent link")
}

func TestBlockRows(t *testing.T) {
	data := model.DatasetData{
		TimeDensity: model.DensityMonth,
		Domain:      []time.Time{day(2020, 1, 1), day(2020, 2, 1), day(2020, 5, 1)},
	}
	blocks := []timeline.Block{
		{Start: day(2020, 1, 1), End: day(2020, 3, 1)},
		{Start: day(2020, 5, 1), End: day(2020, 6, 1)},
	}

	rows := BlockRows(data, blocks)
	assert.Equal(t, []BlockRow{
		{Start: "2020-01-01", End: "2020-02-29", Instants: 2},
		{Start: "2020-05-01", End: "2020-05-31", Instants: 1},
	}, rows)
}

func TestNewAnalysisReport(t *testing.T) {
	report := sampleReport()

	assert.Equal(t, "2020-01-01", report.Start)
	assert.Equal(t, "2020-03-31", report.End)
	require.Len(t, report.Layers, 2)
	assert.Equal(t, LayerSummary{Layer: "no2-monthly", Status: "succeeded", Loaded: 2, Total: 2}, report.Layers[0])
	assert.Equal(t, "errored", report.Layers[1].Status)
	assert.Equal(t, 0, report.Layers[1].Total)

	require.Len(t, report.Points, 2)
	assert.Equal(t, "2020-01-01", report.Points[0].Date)
	assert.Equal(t, 1.25, report.Points[0].Mean)
}

func TestTableFormatter(t *testing.T) {
	f := NewTableFormatter()

	var buf bytes.Buffer
	require.NoError(t, f.Datasets(&buf, DatasetRows(sampleDatasets())))
	out := buf.String()
	assert.Contains(t, out, "no2-monthly")
	assert.Contains(t, out, "2020-03-01")
	assert.Contains(t, out, "error: malformed response")
	assert.Contains(t, out, "2 datasets")

	buf.Reset()
	require.NoError(t, f.Analysis(&buf, sampleReport()))
	out = buf.String()
	assert.Contains(t, out, "Analysis op-1")
	assert.Contains(t, out, "2/2")
	assert.Contains(t, out, "100%")
	assert.Contains(t, out, "1.25")
	assert.Contains(t, out, "HTTP 500")
	assert.NotContains(t, out, "Cache:")

	buf.Reset()
	report := sampleReport()
	report.Cache = &CacheStats{Entries: 1200, Hits: 3, Misses: 5}
	require.NoError(t, f.Analysis(&buf, report))
	assert.Contains(t, buf.String(), "Cache: 1,200 entries, 0 in flight, 3 hits, 5 misses, 0 shared")

	buf.Reset()
	require.NoError(t, f.Timeline(&buf, TimelineReport{
		Layer:     "no2-monthly",
		Width:     800,
		WasLumped: true,
		Blocks:    []BlockRow{{Start: "2020-01-01", End: "2020-02-29", Instants: 2}},
	}))
	out = buf.String()
	assert.Contains(t, out, "no2-monthly (800 px)")
	assert.Contains(t, out, "1 blocks")
	assert.Contains(t, out, "lumped")
}

func TestJSONFormatter(t *testing.T) {
	f := NewJSONFormatter()

	var buf bytes.Buffer
	require.NoError(t, f.Analysis(&buf, sampleReport()))

	var decoded AnalysisReport
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, sampleReport(), decoded)

	buf.Reset()
	require.NoError(t, f.Datasets(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestYAMLFormatter(t *testing.T) {
	f := NewYAMLFormatter()

	var buf bytes.Buffer
	require.NoError(t, f.Datasets(&buf, DatasetRows(sampleDatasets())))
	assert.Contains(t, buf.String(), "time_density: month")

	var decoded []DatasetRow
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, DatasetRows(sampleDatasets()), decoded)
}

func TestCSVFormatter(t *testing.T) {
	f := NewCSVFormatter()

	var buf bytes.Buffer
	require.NoError(t, f.Analysis(&buf, sampleReport()))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Layer", "Date", "Mean", "Min", "Max", "Std", "Median", "Valid Percent"}, records[0])
	assert.Equal(t, []string{"no2-monthly", "2020-01-01", "1.25", "0", "0", "0.5", "0", "0"}, records[1])

	buf.Reset()
	require.NoError(t, f.Datasets(&buf, DatasetRows(sampleDatasets())))
	records, err = csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "3", records[1][6])

	buf.Reset()
	require.NoError(t, f.Timeline(&buf, TimelineReport{Layer: "a", Blocks: []BlockRow{{Start: "x", End: "y", Instants: 4}}}))
	assert.Equal(t, "Layer,Start,End,Instants\na,x,y,4\n", buf.String())
}
