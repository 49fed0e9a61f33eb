// Package metrics instruments the store pipeline with Prometheus.
//
// A Metrics value implements store.Recorder. Create one per registry and
// pass it to every store with store.WithRecorder:
//
//	m := metrics.New(prometheus.DefaultRegisterer)
//	s, err := store.New(initial, store.WithRecorder(m))
//
// Labels are the store label (its name, or "#index" for unnamed stores)
// and, for commits, the action name. All operations are safe for
// concurrent use.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/IniZio/reim/internal/store"
)

const namespace = "reim"

// Metrics holds the store collectors.
type Metrics struct {
	// CommitsTotal counts committed updates.
	// Labels: store, action
	CommitsTotal *prometheus.CounterVec

	// CommitSeconds measures resolve-to-notify latency of one commit.
	// Labels: store
	CommitSeconds *prometheus.HistogramVec

	// NotificationsTotal counts subscriber visits during notify passes.
	// Labels: store, outcome (delivered, skipped)
	NotificationsTotal *prometheus.CounterVec

	// DeferredTotal counts updates queued while a notify pass was running.
	// Labels: store
	DeferredTotal *prometheus.CounterVec

	// HandlerPanicsTotal counts recovered subscriber panics.
	// Labels: store
	HandlerPanicsTotal *prometheus.CounterVec

	// ActiveSubscribers is the current subscriber count.
	// Labels: store
	ActiveSubscribers *prometheus.GaugeVec

	// FramesTotal counts debugger frames received by a hub.
	// Labels: type
	FramesTotal *prometheus.CounterVec
}

var _ store.Recorder = (*Metrics)(nil)

// New creates the collectors and registers them with reg. Registering
// twice with the same registerer panics.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		CommitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "commits_total",
				Help:      "Total committed updates by store and action",
			},
			[]string{"store", "action"},
		),

		CommitSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "commit_seconds",
				Help:      "Time spent resolving and publishing one update",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
			},
			[]string{"store"},
		),

		NotificationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "notifications_total",
				Help:      "Subscriber visits during notify passes by outcome",
			},
			[]string{"store", "outcome"},
		),

		DeferredTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "deferred_updates_total",
				Help:      "Updates queued while a notify pass was in progress",
			},
			[]string{"store"},
		),

		HandlerPanicsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "handler_panics_total",
				Help:      "Recovered subscriber panics",
			},
			[]string{"store"},
		),

		ActiveSubscribers: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "subscribers",
				Help:      "Current number of subscribers",
			},
			[]string{"store"},
		),

		FramesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "devtools",
				Name:      "frames_total",
				Help:      "Debugger frames received by type",
			},
			[]string{"type"},
		),
	}
}

// Commit implements store.Recorder.
func (m *Metrics) Commit(storeLabel, action string, elapsed time.Duration) {
	m.CommitsTotal.WithLabelValues(storeLabel, action).Inc()
	m.CommitSeconds.WithLabelValues(storeLabel).Observe(elapsed.Seconds())
}

// Notified implements store.Recorder.
func (m *Metrics) Notified(storeLabel string, delivered, skipped int) {
	if delivered > 0 {
		m.NotificationsTotal.WithLabelValues(storeLabel, "delivered").Add(float64(delivered))
	}
	if skipped > 0 {
		m.NotificationsTotal.WithLabelValues(storeLabel, "skipped").Add(float64(skipped))
	}
}

// Deferred implements store.Recorder.
func (m *Metrics) Deferred(storeLabel string) {
	m.DeferredTotal.WithLabelValues(storeLabel).Inc()
}

// HandlerPanic implements store.Recorder.
func (m *Metrics) HandlerPanic(storeLabel string) {
	m.HandlerPanicsTotal.WithLabelValues(storeLabel).Inc()
}

// Subscribers implements store.Recorder.
func (m *Metrics) Subscribers(storeLabel string, n int) {
	m.ActiveSubscribers.WithLabelValues(storeLabel).Set(float64(n))
}

// Frame counts one frame received by a devtools hub.
func (m *Metrics) Frame(typ string) {
	m.FramesTotal.WithLabelValues(typ).Inc()
}
