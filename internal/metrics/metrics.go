package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "domainwatch"

// Metrics holds the poller's prometheus collectors.
type Metrics struct {
	Polls         *prometheus.CounterVec
	PollDuration  prometheus.Histogram
	NewDomains    prometheus.Counter
	KnownDomains  prometheus.Gauge
	Notifications *prometheus.CounterVec
	HistorySaves  *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg gets a private registry so
// tests and callers without an exporter can still record values.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Polls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll iterations by result.",
		}, []string{"result"}), // ok, fetch_error, panic

		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Time spent in one poll iteration.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		}),

		NewDomains: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "new_domains_total",
			Help:      "Domains reported as new.",
		}),

		KnownDomains: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "known_domains",
			Help:      "Domains currently in the history.",
		}),

		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification attempts by kind and result.",
		}, []string{"kind", "result"}),

		HistorySaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_saves_total",
			Help:      "History persistence attempts by result.",
		}, []string{"result"}),
	}
}
