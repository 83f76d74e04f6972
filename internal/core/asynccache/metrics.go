package asynccache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "eo_explorer"
	metricsSubsystem = "async_cache"
)

// Metrics counts cache outcomes per key kind.
type Metrics struct {
	// Hits counts loads answered from a settled entry.
	Hits *prometheus.CounterVec
	// Misses counts loads that started a new flight.
	Misses *prometheus.CounterVec
	// Shares counts loads that joined a flight already in progress.
	Shares *prometheus.CounterVec
	// Failures counts flights that settled with an error.
	Failures *prometheus.CounterVec
}

// NewMetrics creates the cache counters and registers them on reg.
// A nil registerer leaves the counters unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	newCounter := func(name, help string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      name,
			Help:      help,
		}, []string{"kind"})
	}

	return &Metrics{
		Hits:     newCounter("hits_total", "Number of loads answered from a settled entry."),
		Misses:   newCounter("misses_total", "Number of loads that started a new fetch."),
		Shares:   newCounter("shares_total", "Number of loads that joined an in-flight fetch."),
		Failures: newCounter("failures_total", "Number of fetches that settled with an error."),
	}
}

func (m *Metrics) hit(kind string) {
	if m != nil {
		m.Hits.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) miss(kind string) {
	if m != nil {
		m.Misses.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) share(kind string) {
	if m != nil {
		m.Shares.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) failure(kind string) {
	if m != nil {
		m.Failures.WithLabelValues(kind).Inc()
	}
}
