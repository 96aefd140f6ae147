// Package metrics holds the prometheus collectors of one bot.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	SignalsReceived  *prometheus.CounterVec // source
	SignalsRejected  *prometheus.CounterVec // code
	SignalsExecuted  prometheus.Counter
	LegsOpened       prometheus.Counter
	LegsFailed       prometheus.Counter
	LegsClosed       *prometheus.CounterVec // reason
	StopsTrailed     prometheus.Counter
	Broadcasts       *prometheus.CounterVec // port, action, result
	PeerActions      *prometheus.CounterVec // route
	KillSwitch       prometheus.Gauge
	TrailingArmed    prometheus.Gauge
	ListenerUp       *prometheus.GaugeVec // listener
	Equity           prometheus.Gauge
	CurrentRiskPct   prometheus.Gauge
	ProcessedTradeID prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		SignalsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_signals_received_total",
			Help: "Inbound payloads by source.",
		}, []string{"source"}),
		SignalsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_signals_rejected_total",
			Help: "Webhook signals refused, by rejection code.",
		}, []string{"code"}),
		SignalsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_signals_executed_total",
			Help: "Signals that opened at least one leg.",
		}),
		LegsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_legs_opened_total",
			Help: "Leg orders filled.",
		}),
		LegsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_legs_failed_total",
			Help: "Leg orders the broker refused.",
		}),
		LegsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_legs_closed_total",
			Help: "Legs closed, by reason.",
		}, []string{"reason"}),
		StopsTrailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_stops_trailed_total",
			Help: "Stop moves made by the group trailing stop.",
		}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_broadcasts_total",
			Help: "Peer deliveries by port, action and result.",
		}, []string{"port", "action", "result"}),
		PeerActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_peer_actions_total",
			Help: "Received peer messages by route.",
		}, []string{"route"}),
		KillSwitch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_kill_switch",
			Help: "1 while new entries are blocked for the day.",
		}),
		TrailingArmed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_trailing_armed",
			Help: "1 while the group trailing stop is armed.",
		}),
		ListenerUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "signalbot_listener_up",
			Help: "1 while the listener is bound.",
		}, []string{"listener"}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_equity",
			Help: "Account equity at the last tick.",
		}),
		CurrentRiskPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_risk_percent",
			Help: "Effective risk percent per signal at the last tick.",
		}),
		ProcessedTradeID: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_processed_trade_ids",
			Help: "Trade ids remembered for duplicate detection.",
		}),
	}
	reg.MustRegister(
		m.SignalsReceived, m.SignalsRejected, m.SignalsExecuted,
		m.LegsOpened, m.LegsFailed, m.LegsClosed, m.StopsTrailed,
		m.Broadcasts, m.PeerActions, m.KillSwitch, m.TrailingArmed,
		m.ListenerUp, m.Equity, m.CurrentRiskPct, m.ProcessedTradeID,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// BroadcastResult matches the signature of peer.Client.OnResult.
func (m *Metrics) BroadcastResult(port int, action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Broadcasts.WithLabelValues(strconv.Itoa(port), action, result).Inc()
}

// ListenerStatus returns an OnStatus callback for the named listener.
func (m *Metrics) ListenerStatus(name string) func(up bool) {
	return func(up bool) {
		m.ListenerUp.WithLabelValues(name).Set(boolGauge(up))
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// SetBool sets g to 1 or 0.
func SetBool(g prometheus.Gauge, b bool) {
	g.Set(boolGauge(b))
}
