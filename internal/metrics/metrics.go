// Package metrics holds the prometheus collectors shared by the scan
// bridge components. A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pushdown outcomes.
const (
	OutcomePushed  = "pushed"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Pushdown targets.
const (
	TargetTable  = "table"
	TargetHolder = "holder"
)

// Statistics modes.
const (
	ModeDerived  = "derived"
	ModeIngested = "ingested"
)

// Statistics outcomes.
const (
	OutcomeComputed      = "computed"
	OutcomeUnknown       = "unknown"
	OutcomeSuppressedNaN = "suppressed_nan"
)

// Metrics is a container of the bridge's collectors.
type Metrics struct {
	filtersTotal    *prometheus.CounterVec
	statisticsTotal *prometheus.CounterVec
	exportsTotal    prometheus.Counter
	releasesTotal   prometheus.Counter

	statisticsSeconds prometheus.Histogram
}

// New creates the collectors and registers them with reg. Collectors that
// are already registered with reg are reused, so several factories may
// share one registerer. A nil reg leaves the collectors unregistered.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		filtersTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duckbridge_pushdown_filters_total",
			Help: "Total number of host filters offered for pushdown, by target and outcome.",
		}, []string{"target", "outcome"})),
		statisticsTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duckbridge_statistics_total",
			Help: "Total number of column statistics requests, by mode and outcome.",
		}, []string{"mode", "outcome"})),
		exportsTotal: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "duckbridge_exports_total",
			Help: "Total number of batches exported across the array ABI.",
		})),
		releasesTotal: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "duckbridge_export_releases_total",
			Help: "Total number of exported batches released by the consumer.",
		})),
		statisticsSeconds: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "duckbridge_statistics_derive_seconds",
			Help: "Time taken to derive statistics for one column.",

			Buckets:                         prometheus.DefBuckets,
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: time.Hour,
		})),
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

// Filter counts one filter offered to target with the given outcome.
func (m *Metrics) Filter(target, outcome string) {
	if m == nil {
		return
	}
	m.filtersTotal.WithLabelValues(target, outcome).Inc()
}

// Statistics counts one statistics request.
func (m *Metrics) Statistics(mode, outcome string) {
	if m == nil {
		return
	}
	m.statisticsTotal.WithLabelValues(mode, outcome).Inc()
}

// ObserveDerive records the time spent deriving one column's statistics.
func (m *Metrics) ObserveDerive(d time.Duration) {
	if m == nil {
		return
	}
	m.statisticsSeconds.Observe(d.Seconds())
}

// Export counts one exported batch.
func (m *Metrics) Export() {
	if m == nil {
		return
	}
	m.exportsTotal.Inc()
}

// ExportRelease counts one released batch.
func (m *Metrics) ExportRelease() {
	if m == nil {
		return
	}
	m.releasesTotal.Inc()
}

// FiltersTotal returns the filters counter for tests.
func (m *Metrics) FiltersTotal() *prometheus.CounterVec { return m.filtersTotal }

// StatisticsTotal returns the statistics counter for tests.
func (m *Metrics) StatisticsTotal() *prometheus.CounterVec { return m.statisticsTotal }

// ExportsTotal returns the export counter for tests.
func (m *Metrics) ExportsTotal() prometheus.Counter { return m.exportsTotal }

// ReleasesTotal returns the release counter for tests.
func (m *Metrics) ReleasesTotal() prometheus.Counter { return m.releasesTotal }
