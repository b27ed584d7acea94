// Package metrics provides Prometheus metrics for monitoring the realtime
// channel.
//
// Key metrics:
//   - Connection lifecycle state and reconnect counts
//   - Routed message rates by topic
//   - Parse errors and handler panics
//   - REST fallback poll counts
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set holds the realtime channel metrics. All helper methods are safe to
// call on a nil *Set, so instrumentation stays optional for library users.
type Set struct {
	ConnectionState prometheus.Gauge
	Connects        prometheus.Counter
	Reconnects      prometheus.Counter
	Failures        prometheus.Counter
	MessagesRouted  *prometheus.CounterVec
	ParseErrors     prometheus.Counter
	HandlerPanics   prometheus.Counter
	Polls           *prometheus.CounterVec
}

// NewSet creates the metric set and registers it with reg.
func NewSet(reg prometheus.Registerer) *Set {
	s := &Set{
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_connection_state",
			Help: "Current connection lifecycle state (0=idle 1=connecting 2=open 3=closing 4=closed 5=failed).",
		}),
		Connects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_connects_total",
			Help: "Total successful connection opens, including reconnects.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_reconnect_attempts_total",
			Help: "Total automatic reconnection attempts.",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_failures_total",
			Help: "Total terminal failures (auth rejected or attempts exhausted).",
		}),
		MessagesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_messages_routed_total",
			Help: "Total inbound messages dispatched to handlers, by topic.",
		}, []string{"topic"}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_parse_errors_total",
			Help: "Total inbound frames dropped as malformed.",
		}),
		HandlerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_handler_panics_total",
			Help: "Total handler panics recovered during dispatch.",
		}),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_fallback_polls_total",
			Help: "Total REST fallback polls while the channel is down, by resource and result.",
		}, []string{"resource", "result"}),
	}

	reg.MustRegister(
		s.ConnectionState,
		s.Connects,
		s.Reconnects,
		s.Failures,
		s.MessagesRouted,
		s.ParseErrors,
		s.HandlerPanics,
		s.Polls,
	)

	return s
}

// Handler returns an HTTP handler serving the given registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// SetConnectionState records the current lifecycle state ordinal.
func (s *Set) SetConnectionState(state float64) {
	if s == nil {
		return
	}
	s.ConnectionState.Set(state)
}

// IncConnects counts a successful open.
func (s *Set) IncConnects() {
	if s == nil {
		return
	}
	s.Connects.Inc()
}

// IncReconnects counts an automatic reconnection attempt.
func (s *Set) IncReconnects() {
	if s == nil {
		return
	}
	s.Reconnects.Inc()
}

// IncFailures counts a terminal failure.
func (s *Set) IncFailures() {
	if s == nil {
		return
	}
	s.Failures.Inc()
}

// IncRouted counts a message dispatched for a topic.
func (s *Set) IncRouted(topic string) {
	if s == nil {
		return
	}
	s.MessagesRouted.WithLabelValues(topic).Inc()
}

// IncParseErrors counts a dropped malformed frame.
func (s *Set) IncParseErrors() {
	if s == nil {
		return
	}
	s.ParseErrors.Inc()
}

// IncHandlerPanics counts a recovered handler panic.
func (s *Set) IncHandlerPanics() {
	if s == nil {
		return
	}
	s.HandlerPanics.Inc()
}

// IncPolls counts a fallback poll outcome.
func (s *Set) IncPolls(resource, result string) {
	if s == nil {
		return
	}
	s.Polls.WithLabelValues(resource, result).Inc()
}
