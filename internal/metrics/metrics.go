package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for CMS traffic and aggregated fetches.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reqTotal      *prometheus.CounterVec
	reqDur        *prometheus.HistogramVec
	fetchDur      prometheus.Histogram
	lastSuccessTS prometheus.Gauge
	contactTotal  *prometheus.CounterVec
}

// New builds the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cms",
			Name:      "requests_total",
			Help:      "Number of CMS requests by collection and outcome",
		}, []string{"collection", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cms",
			Name:      "request_duration_seconds",
			Help:      "Latency of CMS requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collection"}),
		fetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "content",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of one aggregated content fetch (fan-out + join)",
			Buckets:   prometheus.DefBuckets,
		}),
		lastSuccessTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "content",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last fetch where every collection loaded",
		}),
		contactTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "site",
			Name:      "contact_submissions_total",
			Help:      "Contact form submissions by outcome",
		}, []string{"result"}),
	}
	reg.MustRegister(m.reqTotal, m.reqDur, m.fetchDur, m.lastSuccessTS, m.contactTotal)
	return m
}

// ObserveRequest records one CMS call. status is "ok" or "error".
func (m *Metrics) ObserveRequest(collection, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.reqTotal.WithLabelValues(collection, status).Inc()
	m.reqDur.WithLabelValues(collection).Observe(d.Seconds())
}

// ObserveFetch records one aggregated fetch; complete means no collection failed.
func (m *Metrics) ObserveFetch(d time.Duration, complete bool) {
	if m == nil {
		return
	}
	m.fetchDur.Observe(d.Seconds())
	if complete {
		m.lastSuccessTS.Set(float64(time.Now().Unix()))
	}
}

func (m *Metrics) IncContact(result string) {
	if m == nil {
		return
	}
	m.contactTotal.WithLabelValues(result).Inc()
}
