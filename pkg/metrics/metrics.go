package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linkmind"

// Metrics holds the engine collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	offenses      *prometheus.CounterVec
	convictions   *prometheus.CounterVec
	cases         *prometheus.CounterVec
	actions       *prometheus.CounterVec
	savings       *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	resources     *prometheus.GaugeVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		offenses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offenses_ingested_total",
			Help:      "Offense records received, by offense kind and ingest status.",
		}, []string{"kind", "status"}),
		convictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "convictions_total",
			Help:      "Resources convicted, by resource kind.",
		}, []string{"resource_kind"}),
		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rico_cases_total",
			Help:      "RICO cases by mode and final status.",
		}, []string{"mode", "status"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remediation_actions_total",
			Help:      "Remediation actions by mode, action kind and result.",
		}, []string{"mode", "action", "result"}),
		savings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovered_value_total",
			Help:      "Value recovered by applied remediation actions.",
		}, []string{"currency"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of remediation cycles.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		resources: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resources",
			Help:      "Tracked resources by lifecycle status.",
		}, []string{"status"}),
	}

	registry.MustRegister(m.offenses, m.convictions, m.cases, m.actions, m.savings, m.cycleDuration, m.resources)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveOffense(kind, status string) {
	if m == nil {
		return
	}
	m.offenses.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) ObserveConviction(resourceKind string) {
	if m == nil {
		return
	}
	m.convictions.WithLabelValues(resourceKind).Inc()
}

func (m *Metrics) ObserveCase(mode, status string) {
	if m == nil {
		return
	}
	m.cases.WithLabelValues(mode, status).Inc()
}

func (m *Metrics) ObserveAction(mode, action, result string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(mode, action, result).Inc()
}

func (m *Metrics) ObserveSavings(currency string, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.savings.WithLabelValues(currency).Add(amount)
}

func (m *Metrics) ObserveCycle(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// SetResourceCounts replaces the per-status resource gauge.
func (m *Metrics) SetResourceCounts(counts map[string]int) {
	if m == nil {
		return
	}
	m.resources.Reset()
	for status, n := range counts {
		m.resources.WithLabelValues(status).Set(float64(n))
	}
}
