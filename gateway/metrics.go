package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Refresh triggers, used as the "trigger" label.
const (
	triggerPreemptive   = "preemptive"
	triggerUnauthorized = "unauthorized"
)

// Metrics holds the gateway's Prometheus instruments. A nil *Metrics
// records nothing.
type Metrics struct {
	refreshes       *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	replays         prometheus.Counter
	loopExempt      prometheus.Counter
	bodies          *prometheus.CounterVec
}

// NewMetrics creates the gateway instruments and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokengate",
			Subsystem: "gateway",
			Name:      "refresh_total",
			Help:      "Refresh calls made by the gateway, by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tokengate",
			Subsystem: "gateway",
			Name:      "refresh_duration_seconds",
			Help:      "Latency of refresh calls.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 3},
		}, []string{"trigger"}),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tokengate",
			Subsystem: "gateway",
			Name:      "replay_total",
			Help:      "Requests replayed after a 401 and a successful refresh.",
		}),
		loopExempt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tokengate",
			Subsystem: "gateway",
			Name:      "loop_exempt_total",
			Help:      "Requests on refresh-exempt paths forwarded untouched.",
		}),
		bodies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokengate",
			Subsystem: "gateway",
			Name:      "body_buffer_total",
			Help:      "Request bodies considered for replay buffering, by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(m.refreshes, m.refreshDuration, m.replays, m.loopExempt, m.bodies)
	}
	return m
}

func (m *Metrics) observeRefresh(trigger string, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(trigger, refreshErrorKind(err)).Inc()
	m.refreshDuration.WithLabelValues(trigger).Observe(took.Seconds())
}

func (m *Metrics) incReplay() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

func (m *Metrics) incLoopExempt() {
	if m == nil {
		return
	}
	m.loopExempt.Inc()
}

func (m *Metrics) observeBody(body *ReplayBody, considered bool) {
	if m == nil || !considered {
		return
	}
	result := "oversize"
	if body.Buffered() {
		result = "buffered"
	}
	m.bodies.WithLabelValues(result).Inc()
}
