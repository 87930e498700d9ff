// ABOUTME: Prometheus collectors for relay traffic, sessions and assistant calls
// ABOUTME: Uses a private registry so tests and multiple relays do not collide

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session creation reasons.
const (
	ReasonFirstContact = "first_contact"
	ReasonGreeting     = "greeting"
	ReasonExpired      = "expired"
	ReasonInvalid      = "invalid"
	ReasonAction       = "action"
)

// Assistant error kinds.
const (
	KindSessionInvalid = "session_invalid"
	KindFatal          = "fatal"
	KindOther          = "other"
	KindFulfillment    = "fulfillment"
)

// Metrics holds the relay's collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	events           *prometheus.CounterVec
	duplicates       prometheus.Counter
	sessionsCreated  *prometheus.CounterVec
	assistantErrors  *prometheus.CounterVec
	assistantLatency prometheus.Histogram
}

// New creates and registers the relay collectors, plus Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_events_total",
			Help: "Inbound chat events by classified type.",
		}, []string{"type"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_duplicate_events_total",
			Help: "Inbound deliveries suppressed as repeats.",
		}),
		sessionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_sessions_created_total",
			Help: "Assistant sessions created, by reason.",
		}, []string{"reason"}),
		assistantErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_assistant_errors_total",
			Help: "Failed assistant and fulfillment calls, by kind.",
		}, []string{"kind"}),
		assistantLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_assistant_latency_seconds",
			Help:    "Latency of assistant Send calls.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.events,
		m.duplicates,
		m.sessionsCreated,
		m.assistantErrors,
		m.assistantLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Event counts one classified inbound event.
func (m *Metrics) Event(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// Duplicate counts one suppressed repeat delivery.
func (m *Metrics) Duplicate() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

// SessionCreated counts one session creation.
func (m *Metrics) SessionCreated(reason string) {
	if m == nil {
		return
	}
	m.sessionsCreated.WithLabelValues(reason).Inc()
}

// AssistantError counts one failed call.
func (m *Metrics) AssistantError(kind string) {
	if m == nil {
		return
	}
	m.assistantErrors.WithLabelValues(kind).Inc()
}

// ObserveAssistant records how long an assistant call took.
func (m *Metrics) ObserveAssistant(d time.Duration) {
	if m == nil {
		return
	}
	m.assistantLatency.Observe(d.Seconds())
}
