// Package metrics exposes the Prometheus instruments for the ingestion
// path. The registry is injected at startup; nothing registers on the
// global default.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Ingest counts publish outcomes and times archive analysis.
type Ingest struct {
	accepted prometheus.Counter
	rejected *prometheus.CounterVec
	analysis prometheus.Histogram
}

// NewIngest builds and registers the ingestion instruments.
func NewIngest(reg prometheus.Registerer) *Ingest {
	m := &Ingest{
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parcel",
			Subsystem: "ingest",
			Name:      "releases_created_total",
			Help:      "Releases accepted and persisted.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parcel",
			Subsystem: "ingest",
			Name:      "releases_rejected_total",
			Help:      "Publish attempts rejected, by reason.",
		}, []string{"reason"}),
		analysis: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parcel",
			Subsystem: "ingest",
			Name:      "archive_analysis_seconds",
			Help:      "Time spent extracting and scanning one archive.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.accepted, m.rejected, m.analysis)
	return m
}

func (m *Ingest) Accepted() {
	m.accepted.Inc()
}

func (m *Ingest) Rejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Ingest) ObserveAnalysis(d time.Duration) {
	m.analysis.Observe(d.Seconds())
}
