// Package metrics holds the Prometheus collectors for the ingestion pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "certstream_monitor"

type Metrics struct {
	eventsReceived prometheus.Counter
	heartbeats     prometheus.Counter
	malformed      prometheus.Counter
	matches        *prometheus.CounterVec
	insertOutcomes *prometheus.CounterVec
	relayed        prometheus.Counter
	relayErrors    prometheus.Counter
	sessionState   prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Certificate update events received from the feed.",
		}),
		heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Heartbeat messages received from the feed.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_events_total",
			Help:      "Feed messages that could not be decoded or handled.",
		}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Certificates that matched an include pattern, by pattern.",
		}, []string{"pattern"}),
		insertOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_inserts_total",
			Help:      "Store insert attempts by outcome.",
		}, []string{"outcome"}),
		relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_relayed_total",
			Help:      "Events written to the relay channel.",
		}),
		relayErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_errors_total",
			Help:      "Relay writes that failed.",
		}),
		sessionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Feed session state (0 disconnected, 1 connecting, 2 streaming, 3 draining, 4 closed).",
		}),
	}

	reg.MustRegister(
		m.eventsReceived, m.heartbeats, m.malformed, m.matches,
		m.insertOutcomes, m.relayed, m.relayErrors, m.sessionState,
	)
	return m
}

func (m *Metrics) EventReceived() {
	if m != nil {
		m.eventsReceived.Inc()
	}
}

func (m *Metrics) Heartbeat() {
	if m != nil {
		m.heartbeats.Inc()
	}
}

func (m *Metrics) Malformed() {
	if m != nil {
		m.malformed.Inc()
	}
}

func (m *Metrics) Matched(pattern string) {
	if m != nil {
		m.matches.WithLabelValues(pattern).Inc()
	}
}

func (m *Metrics) InsertOutcome(outcome string) {
	if m != nil {
		m.insertOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Relayed(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.relayErrors.Inc()
		return
	}
	m.relayed.Inc()
}

func (m *Metrics) SessionState(state int) {
	if m != nil {
		m.sessionState.Set(float64(state))
	}
}
