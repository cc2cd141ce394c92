package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RealtimeMetrics tracks live query subscriptions and their refresh cost.
type RealtimeMetrics struct {
	active      *prometheus.GaugeVec
	changes     *prometheus.CounterVec
	requeries   *prometheus.HistogramVec
	loadFailure *prometheus.CounterVec
	snapshots   *prometheus.CounterVec
}

// NewRealtimeMetrics registers the realtime subscription metrics on the provided registerer.
func NewRealtimeMetrics(reg prometheus.Registerer) *RealtimeMetrics {
	if reg == nil {
		return &RealtimeMetrics{}
	}
	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "realtime_subscriptions_active",
		Help: "Open live query subscriptions.",
	}, []string{"collection"})
	changes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_changes_total",
		Help: "Change notifications received from the feed.",
	}, []string{"collection", "op"})
	requeries := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "realtime_requery_duration_seconds",
		Help:    "Time spent re-running a subscription query.",
		Buckets: prometheus.DefBuckets,
	}, []string{"collection"})
	loadFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_requery_failures_total",
		Help: "Subscription queries that returned an error.",
	}, []string{"collection"})
	snapshots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_snapshots_delivered_total",
		Help: "Result sets handed to subscribers.",
	}, []string{"collection"})
	reg.MustRegister(active, changes, requeries, loadFailure, snapshots)
	return &RealtimeMetrics{
		active:      active,
		changes:     changes,
		requeries:   requeries,
		loadFailure: loadFailure,
		snapshots:   snapshots,
	}
}

func (m *RealtimeMetrics) SubscriptionOpened(collection string) {
	if m == nil || m.active == nil {
		return
	}
	m.active.WithLabelValues(normalizeLabel(collection)).Inc()
}

func (m *RealtimeMetrics) SubscriptionClosed(collection string) {
	if m == nil || m.active == nil {
		return
	}
	m.active.WithLabelValues(normalizeLabel(collection)).Dec()
}

func (m *RealtimeMetrics) ChangeReceived(collection, op string) {
	if m == nil || m.changes == nil {
		return
	}
	m.changes.WithLabelValues(normalizeLabel(collection), normalizeLabel(op)).Inc()
}

func (m *RealtimeMetrics) ObserveRequery(collection string, d time.Duration, err error) {
	if m == nil || m.requeries == nil {
		return
	}
	m.requeries.WithLabelValues(normalizeLabel(collection)).Observe(d.Seconds())
	if err != nil {
		m.loadFailure.WithLabelValues(normalizeLabel(collection)).Inc()
	}
}

func (m *RealtimeMetrics) SnapshotDelivered(collection string) {
	if m == nil || m.snapshots == nil {
		return
	}
	m.snapshots.WithLabelValues(normalizeLabel(collection)).Inc()
}
