package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SyncMetrics observes the authority's publish/stream pipeline.
//
// A nil *SyncMetrics is valid and turns every method into a no-op, so
// callers never need to branch on whether metrics are enabled.
type SyncMetrics struct {
	updatesAppended  *prometheus.CounterVec
	updatesStreamed  prometheus.Counter
	pathsNormalized  *prometheus.CounterVec
	activeConsumers  prometheus.Gauge
	changelogLastSeq prometheus.Gauge
}

// NewSyncMetrics creates a Prometheus-backed SyncMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// makes every method a no-op.
func NewSyncMetrics() *SyncMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &SyncMetrics{
		updatesAppended: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pathsync_updates_appended_total",
				Help: "Total updates appended to the changelog by kind (delta or full_image)",
			},
			[]string{"kind"},
		),
		updatesStreamed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "pathsync_updates_streamed_total",
				Help: "Total updates streamed to consumers",
			},
		),
		pathsNormalized: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pathsync_paths_normalized_total",
				Help: "Raw paths processed by the normalizer by outcome (ok, skipped, malformed)",
			},
			[]string{"outcome"},
		),
		activeConsumers: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "pathsync_active_consumers",
				Help: "Currently connected stream consumers",
			},
		),
		changelogLastSeq: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "pathsync_changelog_last_seq",
				Help: "Highest sequence number assigned by the changelog",
			},
		),
	}
}

// UpdateAppended records one changelog append and the new head sequence.
func (m *SyncMetrics) UpdateAppended(fullImage bool, seq uint64) {
	if m == nil {
		return
	}
	kind := "delta"
	if fullImage {
		kind = "full_image"
	}
	m.updatesAppended.WithLabelValues(kind).Inc()
	m.changelogLastSeq.Set(float64(seq))
}

// UpdateStreamed records one update sent to a consumer.
func (m *SyncMetrics) UpdateStreamed() {
	if m == nil {
		return
	}
	m.updatesStreamed.Inc()
}

// PathNormalized records one normalizer outcome: "ok", "skipped" for
// out-of-scope schemes, "malformed" for rejected input.
func (m *SyncMetrics) PathNormalized(outcome string) {
	if m == nil {
		return
	}
	m.pathsNormalized.WithLabelValues(outcome).Inc()
}

// ConsumerConnected tracks a consumer session opening.
func (m *SyncMetrics) ConsumerConnected() {
	if m == nil {
		return
	}
	m.activeConsumers.Inc()
}

// ConsumerDisconnected tracks a consumer session closing.
func (m *SyncMetrics) ConsumerDisconnected() {
	if m == nil {
		return
	}
	m.activeConsumers.Dec()
}
