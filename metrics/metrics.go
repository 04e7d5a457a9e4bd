// Package metrics exposes Prometheus counters for connections, matches, moves
// and finished games on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the game server's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Connections   prometheus.Gauge
	Matches       *prometheus.CounterVec
	Moves         *prometheus.CounterVec
	GamesFinished *prometheus.CounterVec
	Rejections    *prometheus.CounterVec
}

// New creates the collectors on a fresh registry that also carries the
// standard Go and process collectors
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegisterer(registry, registry)
}

// NewWithRegisterer registers the collectors on reg. registry backs Handler and
// may be nil when the caller serves metrics itself.
func NewWithRegisterer(reg prometheus.Registerer, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tictactoe_connections",
			Help: "Number of open realtime connections",
		}),
		Matches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tictactoe_matches_total",
				Help: "Total number of games entered by kind",
			},
			[]string{"kind"},
		),
		Moves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tictactoe_moves_total",
				Help: "Total number of moves by result",
			},
			[]string{"result"},
		),
		GamesFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tictactoe_games_finished_total",
				Help: "Total number of finished games by outcome",
			},
			[]string{"outcome"},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tictactoe_event_rejections_total",
				Help: "Total number of rejected inbound events by event and code",
			},
			[]string{"event", "code"},
		),
	}

	reg.MustRegister(m.Connections, m.Matches, m.Moves, m.GamesFinished, m.Rejections)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.Connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.Connections.Dec()
	}
}

func (m *Metrics) MatchStarted() {
	if m != nil {
		m.Matches.WithLabelValues("start").Inc()
	}
}

func (m *Metrics) GameResumed() {
	if m != nil {
		m.Matches.WithLabelValues("resume").Inc()
	}
}

func (m *Metrics) MoveAccepted() {
	if m != nil {
		m.Moves.WithLabelValues("accepted").Inc()
	}
}

func (m *Metrics) MoveRejected() {
	if m != nil {
		m.Moves.WithLabelValues("rejected").Inc()
	}
}

// GameFinished counts a finished game; outcome is X, O, draw or reset
func (m *Metrics) GameFinished(outcome string) {
	if m != nil {
		m.GamesFinished.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) EventRejected(event, code string) {
	if m != nil {
		m.Rejections.WithLabelValues(event, code).Inc()
	}
}
