package model

import (
	"time"
)

// AnalysisMeta carries the progress counters of a loading analysis.
// Total is nil until asset discovery has resolved.
type AnalysisMeta struct {
	Total  *int `json:"total,omitempty"`
	Loaded int  `json:"loaded"`
}

// AnalysisState is the per-layer state of one analysis request.
type AnalysisState struct {
	Status AnalysisStatus    `json:"status"`
	Meta   *AnalysisMeta     `json:"meta,omitempty"`
	Data   []TimeseriesPoint `json:"data,omitempty"`
	Error  error             `json:"-"`
}

// IsTerminal reports whether the state is succeeded or errored.
func (s AnalysisState) IsTerminal() bool {
	return s.Status == AnalysisSucceeded || s.Status == AnalysisErrored
}

// Loaded returns the number of completed assets.
func (s AnalysisState) Loaded() int {
	if s.Meta == nil {
		return 0
	}
	return s.Meta.Loaded
}

// Total returns the discovered asset count, if known.
func (s AnalysisState) Total() (int, bool) {
	if s.Meta == nil || s.Meta.Total == nil {
		return 0, false
	}
	return *s.Meta.Total, true
}

// Asset is one discovered raster asset of a collection.
type Asset struct {
	Date time.Time `json:"date"`
	URL  string    `json:"assetUrl"`
}

// Statistics holds the summary statistics of one raster band.
type Statistics struct {
	Min          float64     `json:"min"`
	Max          float64     `json:"max"`
	Mean         float64     `json:"mean"`
	Count        float64     `json:"count"`
	Sum          float64     `json:"sum"`
	Std          float64     `json:"std"`
	Median       float64     `json:"median"`
	Majority     float64     `json:"majority"`
	Minority     float64     `json:"minority"`
	Unique       float64     `json:"unique"`
	Histogram    [][]float64 `json:"histogram,omitempty"`
	ValidPercent float64     `json:"valid_percent"`
	MaskedPixels float64     `json:"masked_pixels"`
	ValidPixels  float64     `json:"valid_pixels"`
	Percentile2  float64     `json:"percentile_2"`
	Percentile98 float64     `json:"percentile_98"`
}

// TimeseriesPoint is the statistics of one asset placed on the time axis.
type TimeseriesPoint struct {
	Date time.Time `json:"date"`
	Statistics
}
