package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dialtone"

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	CallsStarted  *prometheus.CounterVec
	NodeVisits    *prometheus.CounterVec
	CallsEnded    *prometheus.CounterVec
	StepFailures  prometheus.Counter
	RouteMisses   prometheus.Counter
	SessionsSwept prometheus.Counter
	StepDuration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a private registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CallsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_started_total",
			Help:      "Total number of calls that started a flow.",
		}, []string{"flow_id"}),
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of node visits.",
		}, []string{"flow_id", "kind"}),
		CallsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_ended_total",
			Help:      "Total number of calls that reached a terminal state, by reason.",
		}, []string{"flow_id", "reason"}),
		StepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Total number of steps answered with the fallback instruction.",
		}),
		RouteMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_misses_total",
			Help:      "Total number of calls to numbers without a route.",
		}),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Total number of idle sessions reclaimed.",
		}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of webhook steps.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"webhook"}),
	}

	m.registry.MustRegister(
		m.CallsStarted, m.NodeVisits, m.CallsEnded,
		m.StepFailures, m.RouteMisses, m.SessionsSwept, m.StepDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnCallStart: func(_ context.Context, s *domain.Session) {
			m.CallsStarted.WithLabelValues(s.FlowID).Inc()
		},
		OnNodeEnter: func(_ context.Context, s *domain.Session, n domain.Node) {
			m.NodeVisits.WithLabelValues(s.FlowID, string(n.Kind())).Inc()
		},
		OnCallEnd: func(_ context.Context, s *domain.Session, reason string) {
			m.CallsEnded.WithLabelValues(s.FlowID, reason).Inc()
		},
		OnStepFailed: func(context.Context, *domain.Session, error) {
			m.StepFailures.Inc()
		},
	}
}

// ObserveStep records how long a webhook took.
func (m *Metrics) ObserveStep(webhook string, d time.Duration) {
	m.StepDuration.WithLabelValues(webhook).Observe(d.Seconds())
}

// ObserveSweep records reclaimed sessions. It matches session.Janitor.OnSweep.
func (m *Metrics) ObserveSweep(n int) {
	m.SessionsSwept.Add(float64(n))
}

// Publish counts events no lifecycle hook reports. It satisfies ports.EventPublisher.
func (m *Metrics) Publish(evt domain.Event) {
	if evt.Type == domain.EventRouteMissing {
		m.RouteMisses.Inc()
	}
}
