package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dr_orchestrator"

// Metrics holds all Prometheus metrics of the orchestrator. All record methods are
// safe to call on a nil receiver so services can run without instrumentation.
type Metrics struct {
	RoutingDecisions *prometheus.CounterVec
	RoutingDuration  *prometheus.HistogramVec
	FailoverActions  *prometheus.CounterVec
	LinkProbes       *prometheus.CounterVec
	LinkStatus       *prometheus.GaugeVec
	IncidentActions  *prometheus.CounterVec
	ActiveIncidents  prometheus.Gauge
	StressTests      *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	SchedulerRuns    *prometheus.CounterVec
	registry         *prometheus.Registry
}

// New creates and registers all metrics on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		RoutingDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "routing_decisions_total",
				Help:      "Total number of routing decisions",
			},
			[]string{"strategy", "target"},
		),
		RoutingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "routing_duration_seconds",
				Help:      "Time spent selecting a target datacenter",
				Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
			},
			[]string{"strategy"},
		),
		FailoverActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failover_actions_total",
				Help:      "Total number of failover and failback executions",
			},
			[]string{"action", "trigger", "success"},
		),
		LinkProbes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "link_probes_total",
				Help:      "Total number of network link probes by observed status",
			},
			[]string{"status"},
		),
		LinkStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "link_up",
				Help:      "Link state: 1 active, 0.5 degraded, 0 down",
			},
			[]string{"link"},
		),
		IncidentActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "incident_actions_total",
				Help:      "Total number of automatic incident actions executed",
			},
			[]string{"kind", "status"},
		),
		ActiveIncidents: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_incidents",
				Help:      "Number of incidents that are not resolved",
			},
		),
		StressTests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stress_tests_total",
				Help:      "Total number of capacity stress tests",
			},
			[]string{"datacenter", "success"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		SchedulerRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_runs_total",
				Help:      "Total number of periodic job runs",
			},
			[]string{"job", "success"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.RoutingDecisions,
		m.RoutingDuration,
		m.FailoverActions,
		m.LinkProbes,
		m.LinkStatus,
		m.IncidentActions,
		m.ActiveIncidents,
		m.StressTests,
		m.HTTPRequests,
		m.HTTPDuration,
		m.SchedulerRuns,
	)

	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus metrics handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRouting records a routing decision
func (m *Metrics) ObserveRouting(strategy, target string, d time.Duration) {
	if m == nil {
		return
	}
	m.RoutingDecisions.WithLabelValues(strategy, target).Inc()
	m.RoutingDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// ObserveFailover records a failover or failback execution
func (m *Metrics) ObserveFailover(action, trigger string, success bool) {
	if m == nil {
		return
	}
	m.FailoverActions.WithLabelValues(action, trigger, strconv.FormatBool(success)).Inc()
}

// ObserveLinkProbe records a link probe and the resulting link state
func (m *Metrics) ObserveLinkProbe(linkID, status string) {
	if m == nil {
		return
	}
	m.LinkProbes.WithLabelValues(status).Inc()

	var v float64
	switch status {
	case "active":
		v = 1
	case "degraded":
		v = 0.5
	}
	m.LinkStatus.WithLabelValues(linkID).Set(v)
}

// ForgetLink drops the state series of a deleted link
func (m *Metrics) ForgetLink(linkID string) {
	if m == nil {
		return
	}
	m.LinkStatus.DeleteLabelValues(linkID)
}

// ObserveIncidentAction records the outcome of an automatic incident action
func (m *Metrics) ObserveIncidentAction(kind, status string) {
	if m == nil {
		return
	}
	m.IncidentActions.WithLabelValues(kind, status).Inc()
}

// SetActiveIncidents sets the number of unresolved incidents
func (m *Metrics) SetActiveIncidents(n int) {
	if m == nil {
		return
	}
	m.ActiveIncidents.Set(float64(n))
}

// ObserveStressTest records a stress test
func (m *Metrics) ObserveStressTest(datacenter string, success bool) {
	if m == nil {
		return
	}
	m.StressTests.WithLabelValues(datacenter, strconv.FormatBool(success)).Inc()
}

// ObserveHTTP records a served HTTP request
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveSchedulerRun records a periodic job run
func (m *Metrics) ObserveSchedulerRun(job string, success bool) {
	if m == nil {
		return
	}
	m.SchedulerRuns.WithLabelValues(job, strconv.FormatBool(success)).Inc()
}
