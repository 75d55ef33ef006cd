// Package metrics exposes pickup counters and gauges on a dedicated
// Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/pickup/internal/guard"
	"github.com/roach88/pickup/internal/netmon"
	"github.com/roach88/pickup/internal/order"
)

// Recorder implements the token, guard and netmon observer interfaces.
type Recorder struct {
	registry *prometheus.Registry

	TokenVerifications *prometheus.CounterVec
	GuardSubscriptions *prometheus.CounterVec
	GuardLive          prometheus.Gauge
	NetworkStatus      *prometheus.GaugeVec
	StateReads         *prometheus.CounterVec
}

// New creates a Recorder registered on a fresh registry, together with the
// Go runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		TokenVerifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pickup_token_verifications_total",
				Help: "Pickup code scans by outcome",
			},
			[]string{"result"},
		),

		GuardSubscriptions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pickup_guard_subscriptions_total",
				Help: "Realtime subscription lifecycle events",
			},
			[]string{"event"},
		),

		GuardLive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pickup_guard_live",
				Help: "Realtime subscriptions currently open",
			},
		),

		NetworkStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pickup_network_status",
				Help: "1 for the current network status, 0 otherwise",
			},
			[]string{"status"},
		),

		StateReads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pickup_order_state_reads_total",
				Help: "Canonical state lookups by resulting state",
			},
			[]string{"state"},
		),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveScan implements token.Observer.
func (r *Recorder) ObserveScan(result string) {
	r.TokenVerifications.WithLabelValues(result).Inc()
}

// ObserveSubscription implements guard.Observer.
func (r *Recorder) ObserveSubscription(_ string, event string) {
	r.GuardSubscriptions.WithLabelValues(event).Inc()
	switch event {
	case guard.EventSubscribed:
		r.GuardLive.Inc()
	case guard.EventUnsubscribed:
		r.GuardLive.Dec()
	}
}

// ObserveStatus implements netmon.Observer.
func (r *Recorder) ObserveStatus(s netmon.Status) {
	for _, st := range netmon.Statuses() {
		v := 0.0
		if st == s {
			v = 1
		}
		r.NetworkStatus.WithLabelValues(string(st)).Set(v)
	}
}

// ObserveState counts a canonical state lookup.
func (r *Recorder) ObserveState(s order.UIState) {
	r.StateReads.WithLabelValues(string(s)).Inc()
}
