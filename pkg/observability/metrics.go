// Package observability exposes the engine's prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's collectors. All methods are nil-safe so
// instrumentation can be switched off by passing a nil *Metrics.
type Metrics struct {
	activeSessions   prometheus.Gauge
	broadcastsSent   *prometheus.CounterVec
	broadcastsDrop   *prometheus.CounterVec
	snapshotsApplied prometheus.Counter
	reconcileErrors  prometheus.Counter
	proposals        *prometheus.CounterVec
}

// NewMetrics creates and registers the engine collectors on the given
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "archsync",
			Name:      "collab_active_sessions",
			Help:      "Number of active collaboration sessions.",
		}),
		broadcastsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archsync",
			Name:      "collab_broadcasts_sent_total",
			Help:      "Outbound collaboration broadcasts by payload kind.",
		}, []string{"kind"}),
		broadcastsDrop: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archsync",
			Name:      "collab_broadcasts_dropped_total",
			Help:      "Suppressed local change notifications by reason.",
		}, []string{"reason"}),
		snapshotsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "archsync",
			Name:      "collab_snapshots_applied_total",
			Help:      "Inbound snapshots applied to the local scene.",
		}),
		reconcileErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "archsync",
			Name:      "reconcile_record_failures_total",
			Help:      "Per-record backend failures during reconciliation.",
		}),
		proposals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archsync",
			Name:      "analyzer_proposals_total",
			Help:      "Relationship proposals by classification status.",
		}, []string{"status"}),
	}
	reg.MustRegister(
		m.activeSessions,
		m.broadcastsSent,
		m.broadcastsDrop,
		m.snapshotsApplied,
		m.reconcileErrors,
		m.proposals,
	)
	return m
}

// SessionStarted increments the active session gauge
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionStopped decrements the active session gauge
func (m *Metrics) SessionStopped() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

// BroadcastSent counts one outbound broadcast
func (m *Metrics) BroadcastSent(kind string) {
	if m == nil {
		return
	}
	m.broadcastsSent.WithLabelValues(kind).Inc()
}

// BroadcastDropped counts one suppressed local change
func (m *Metrics) BroadcastDropped(reason string) {
	if m == nil {
		return
	}
	m.broadcastsDrop.WithLabelValues(reason).Inc()
}

// SnapshotApplied counts one applied inbound snapshot
func (m *Metrics) SnapshotApplied() {
	if m == nil {
		return
	}
	m.snapshotsApplied.Inc()
}

// ReconcileFailure counts one per-record backend failure
func (m *Metrics) ReconcileFailure() {
	if m == nil {
		return
	}
	m.reconcileErrors.Inc()
}

// ProposalsObserved counts analyzer output by status
func (m *Metrics) ProposalsObserved(status string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.proposals.WithLabelValues(status).Add(float64(n))
}
