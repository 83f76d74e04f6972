package formatter

import (
	"fmt"
	"io"
	"strings"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatYAML  Format = "yaml"
)

// Formats lists every supported output format.
var Formats = []Format{FormatTable, FormatJSON, FormatCSV, FormatYAML}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatTable, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format %q (want table, json, csv or yaml)", s)
}

// Formatter renders command results to w.
type Formatter interface {
	Datasets(w io.Writer, rows []DatasetRow) error
	Timeline(w io.Writer, report TimelineReport) error
	Analysis(w io.Writer, report AnalysisReport) error
}

func New(format Format) (Formatter, error) {
	switch format {
	case FormatTable, "":
		return NewTableFormatter(), nil
	case FormatJSON:
		return NewJSONFormatter(), nil
	case FormatCSV:
		return NewCSVFormatter(), nil
	case FormatYAML:
		return NewYAMLFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// DatasetRow is the printable form of one reconciled dataset.
type DatasetRow struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Protocol    string `json:"protocol" yaml:"protocol"`
	TimeDensity string `json:"timeDensity" yaml:"time_density"`
	Periodic    bool   `json:"isPeriodic" yaml:"is_periodic"`
	Timeless    bool   `json:"isTimeless" yaml:"is_timeless"`
	DomainSize  int    `json:"domainSize" yaml:"domain_size"`
	First       string `json:"first" yaml:"first"`
	Last        string `json:"last" yaml:"last"`
	Status      string `json:"status" yaml:"status"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

type BlockRow struct {
	Start    string `json:"start" yaml:"start"`
	End      string `json:"end" yaml:"end"`
	Instants int    `json:"instants" yaml:"instants"`
}

// TimelineReport is the lumped timeline of one layer.
type TimelineReport struct {
	Layer     string     `json:"layer" yaml:"layer"`
	Width     float64    `json:"width" yaml:"width"`
	WasLumped bool       `json:"wasLumped" yaml:"was_lumped"`
	Blocks    []BlockRow `json:"blocks" yaml:"blocks"`
}

type LayerSummary struct {
	Layer  string `json:"layer" yaml:"layer"`
	Status string `json:"status" yaml:"status"`
	Loaded int    `json:"loaded" yaml:"loaded"`
	Total  int    `json:"total" yaml:"total"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// PointRow is one timeseries point of one layer.
type PointRow struct {
	Layer        string  `json:"layer" yaml:"layer"`
	Date         string  `json:"date" yaml:"date"`
	Mean         float64 `json:"mean" yaml:"mean"`
	Min          float64 `json:"min" yaml:"min"`
	Max          float64 `json:"max" yaml:"max"`
	Std          float64 `json:"std" yaml:"std"`
	Median       float64 `json:"median" yaml:"median"`
	ValidPercent float64 `json:"validPercent" yaml:"valid_percent"`
}

type CacheStats struct {
	Entries  int `json:"entries" yaml:"entries"`
	InFlight int `json:"inFlight" yaml:"in_flight"`
	Hits     int `json:"hits" yaml:"hits"`
	Misses   int `json:"misses" yaml:"misses"`
	Shares   int `json:"shares" yaml:"shares"`
}

// AnalysisReport is the outcome of one analysis run.
type AnalysisReport struct {
	ID     string         `json:"id" yaml:"id"`
	Start  string         `json:"start" yaml:"start"`
	End    string         `json:"end" yaml:"end"`
	Layers []LayerSummary `json:"layers" yaml:"layers"`
	Points []PointRow     `json:"points" yaml:"points"`
	Cache  *CacheStats    `json:"cache,omitempty" yaml:"cache,omitempty"`
}
