package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type DatasetStatus string

type AnalysisStatus string

type TimeDensity string

// ParseTimeDensity accepts the catalog spelling of a density. Unknown or empty
// values map to the unspecified density, which buckets by day.
func ParseTimeDensity(s string) TimeDensity {
	switch TimeDensity(strings.ToLower(strings.TrimSpace(s))) {
	case DensityDay:
		return DensityDay
	case DensityMonth:
		return DensityMonth
	case DensityYear:
		return DensityYear
	default:
		return ""
	}
}

// LayerConfig is a locally configured dataset layer reference.
type LayerConfig struct {
	ID          string      `json:"id" yaml:"id" mapstructure:"id"`
	Name        string      `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Protocol    Protocol    `json:"protocol" yaml:"protocol" mapstructure:"protocol"`
	Collection  string      `json:"collection" yaml:"collection" mapstructure:"collection"`
	TimeDensity TimeDensity `json:"timeDensity,omitempty" yaml:"time_density,omitempty" mapstructure:"time_density"`
}

// DatasetData is the canonical temporal shape every protocol normalizes into.
type DatasetData struct {
	Layer       LayerConfig    `json:"layer"`
	Domain      []time.Time    `json:"domain"`
	TimeDensity TimeDensity    `json:"timeDensity,omitempty"`
	IsPeriodic  bool           `json:"isPeriodic"`
	IsTimeless  bool           `json:"isTimeless,omitempty"`
	Renders     map[string]any `json:"renders,omitempty"`
}

// First returns the earliest domain instant.
func (d DatasetData) First() (time.Time, bool) {
	if len(d.Domain) == 0 {
		return time.Time{}, false
	}
	return d.Domain[0], true
}

// Last returns the latest domain instant.
func (d DatasetData) Last() (time.Time, bool) {
	if len(d.Domain) == 0 {
		return time.Time{}, false
	}
	return d.Domain[len(d.Domain)-1], true
}

// Settings are the user-controlled presentation settings of a dataset.
type Settings struct {
	Visible         bool     `json:"isVisible"`
	Opacity         float64  `json:"opacity"`
	AnalysisMetrics []string `json:"analysisMetrics,omitempty"`
}

// DefaultSettings returns the settings of a freshly added dataset.
func DefaultSettings() Settings {
	return Settings{
		Visible:         true,
		Opacity:         DefaultOpacity,
		AnalysisMetrics: slices.Clone(DefaultAnalysisMetrics),
	}
}

// Equal compares settings by value.
func (s Settings) Equal(o Settings) bool {
	return s.Visible == o.Visible && s.Opacity == o.Opacity && slices.Equal(s.AnalysisMetrics, o.AnalysisMetrics)
}

// TimelineDataset is one dataset layer as seen by map, timeline and URL.
type TimelineDataset struct {
	ID       string        `json:"id"`
	Status   DatasetStatus `json:"status"`
	Data     DatasetData   `json:"data"`
	Error    error         `json:"-"`
	Settings Settings      `json:"settings"`
	Analysis AnalysisState `json:"analysis"`
}

// NewTimelineDataset creates an idle dataset for a configured layer.
func NewTimelineDataset(layer LayerConfig) TimelineDataset {
	return TimelineDataset{
		ID:       layer.ID,
		Status:   DatasetIdle,
		Data:     DatasetData{Layer: layer},
		Settings: DefaultSettings(),
		Analysis: AnalysisState{Status: AnalysisIdle},
	}
}

func (d TimelineDataset) String() string {
	return fmt.Sprintf("%s(%s)", d.ID, d.Status)
}

// DateRange is an inclusive range of instants.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Validate checks that both bounds are present and ordered.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: date range requires start and end", ErrInvalidRequest)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: date range end %s is before start %s",
			ErrInvalidRequest, r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t falls within the inclusive range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Equal compares both bounds as instants.
func (r DateRange) Equal(o DateRange) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}
