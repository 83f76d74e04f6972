package model

// Dataset status values
const (
	DatasetIdle    DatasetStatus = "idle"
	DatasetLoading DatasetStatus = "loading"
	DatasetSuccess DatasetStatus = "success"
	DatasetError   DatasetStatus = "error"
)

// Analysis status values
const (
	AnalysisIdle      AnalysisStatus = "idle"
	AnalysisLoading   AnalysisStatus = "loading"
	AnalysisSucceeded AnalysisStatus = "succeeded"
	AnalysisErrored   AnalysisStatus = "errored"
)

// Time density identifiers as published in `dashboard:time_density`
const (
	DensityDay   TimeDensity = "day"
	DensityMonth TimeDensity = "month"
	DensityYear  TimeDensity = "year"
)

// Default layer settings applied when a dataset is first added
const (
	DefaultOpacity = 100.0
)

// DefaultAnalysisMetrics are the statistics charted for a new dataset
var DefaultAnalysisMetrics = []string{"mean", "std"}
