// Package metrics instruments every component's key counters/gauges with
// Prometheus (spec's ambient stack, carried even though the distilled
// spec's Non-goals exclude an observability layer as a feature — spec §9's
// "structured logging and metrics" design note still applies to the
// ambient stack). Grounded on the teacher's metrics.go (bot_orders_total,
// bot_decisions_total, bot_equity_usd, bot_trades_total,
// bot_exit_reasons_total), generalized from package-level globals + init()
// into an instance-scoped Registry so multiple symbol instances sharing a
// host (spec §1) don't collide on metric names, and extended with the
// domain counters this spec's C1-C10 components need: exit-params
// provider fallback, license state, circuit breaker state, ghost vs taken
// signals, queue depth.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every instrumented counter/gauge this engine instance
// exposes. One Metrics per symbol instance, each with its own
// prometheus.Registry so /metrics scrapes stay attributable.
type Metrics struct {
	Registry *prometheus.Registry

	OrdersTotal    *prometheus.CounterVec // labels: mode, side
	DecisionsTotal *prometheus.CounterVec // labels: signal (LONG|SHORT)
	EquityUSD      prometheus.Gauge
	TradesTotal    *prometheus.CounterVec // labels: result (win|loss|scratch)
	ExitReasons    *prometheus.CounterVec // labels: reason, side

	ExitProviderFallbackTotal prometheus.Counter
	ScorerFallbackTotal       prometheus.Counter

	LicenseState        *prometheus.GaugeVec // labels: state
	CircuitBreakerOpen  *prometheus.GaugeVec // labels: target (broker|license|calendar)

	SignalsTotal *prometheus.CounterVec // labels: kind (taken|ghost|exploration)

	QueueDepth      prometheus.Gauge
	QueueDroppedTotal prometheus.Counter

	RiskBlockTotal *prometheus.CounterVec // labels: reason

	ConsecutiveLosses prometheus.Gauge
	DailyPnLUSD       prometheus.Gauge
}

// New constructs a fresh Metrics bundle registered against its own
// registry, namespaced by symbol so bot_orders_total{symbol="ES",...} is
// distinguishable from a second instance trading a different contract on
// the same host.
func New(symbol string) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "apexfutures_orders_total",
			Help:        "Orders placed, by broker mode and side.",
			ConstLabels: prometheus.Labels{"symbol": symbol},
		}, []string{"mode", "side"}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "apexfutures_decisions_total",
			Help:        "Entry decisions taken, by side.",
			ConstLabels: prometheus.Labels{"symbol": symbol},
		}, []string{"signal"}),
		EquityUSD: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "apexfutures_equity_usd",
			Help:        "Current session equity in USD.",
			ConstLabels: prometheus.Labels{"symbol": symbol},
		}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "apexfutures_trades_total",
			Help:        "Closed trades, by result.",
			ConstLabels: prometheus.Labels{"symbol": symbol},
		}, []string{"result"}),
		ExitReasons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "apexfutures_exit_reasons_total",
			Help:        "Exits split by reason and side.",
			ConstLabels: prometheus.Labels{"symbol": symbol},
		}, []string{"reason", "side"}),
		ExitProviderFallbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "apexfutures_exit_provider_fallback_total",
			Help:        "Times the exit-params provider failed and documented defaults were used.",
			ConstLabels: prometheus.Labels{"symbol": symbol},
		}),
		ScorerFallbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "apexfutures_scorer_fallback_total",
			Help:        "Times the confidence scorer failed and the candidate was dropped or scored 0.",
			ConstLabels: prometheus.Labels{"symbol": symbol},
		}),
		LicenseState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "apexfutures_license_state",
			Help:        "Current license state indicator (1 for the active state, 0 otherwise).",
			ConstLabels: prometheus.Labels{"symbol": symbol},
		}, []string{"state"}),
		CircuitBreakerOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "apexfutures_circuit_breaker_open",
			Help:        "1 if the circuit breaker for the given target is open, 0 otherwise.",
			ConstLabels: prometheus.Labels{"symbol": symbol},
		}, []string{"target"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "apexfutures_signals_total",
			Help:        "Signal candidates generated, by disposition (taken, ghost, exploration).",
			ConstLabels: prometheus.Labels{"symbol": symbol},
		}, []string{"kind"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "apexfutures_event_queue_depth",
			Help:        "Current depth of the scheduler's bounded event queue.",
			ConstLabels: prometheus.Labels{"symbol": symbol},
		}),
		QueueDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "apexfutures_event_queue_dropped_total",
			Help:        "Events dropped by the scheduler under backpressure.",
			ConstLabels: prometheus.Labels{"symbol": symbol},
		}),
		RiskBlockTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "apexfutures_risk_block_total",
			Help:        "Entries blocked by the risk gate, by reason.",
			ConstLabels: prometheus.Labels{"symbol": symbol},
		}, []string{"reason"}),
		ConsecutiveLosses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "apexfutures_consecutive_losses",
			Help:        "Current consecutive-loss streak.",
			ConstLabels: prometheus.Labels{"symbol": symbol},
		}),
		DailyPnLUSD: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "apexfutures_daily_pnl_usd",
			Help:        "Current trading day's realized P&L in USD.",
			ConstLabels: prometheus.Labels{"symbol": symbol},
		}),
	}

	reg.MustRegister(
		m.OrdersTotal, m.DecisionsTotal, m.EquityUSD, m.TradesTotal, m.ExitReasons,
		m.ExitProviderFallbackTotal, m.ScorerFallbackTotal,
		m.LicenseState, m.CircuitBreakerOpen, m.SignalsTotal,
		m.QueueDepth, m.QueueDroppedTotal, m.RiskBlockTotal,
		m.ConsecutiveLosses, m.DailyPnLUSD,
	)
	return m
}

// SetLicenseState flips the labeled gauge for the active state to 1 and
// every other known state to 0, the same single-active-series-per-gauge
// pattern the teacher's SetModelModeMetric uses for bot_model_mode.
func (m *Metrics) SetLicenseState(active string, allStates []string) {
	for _, s := range allStates {
		if s == active {
			m.LicenseState.WithLabelValues(s).Set(1)
		} else {
			m.LicenseState.WithLabelValues(s).Set(0)
		}
	}
}

// SetCircuitBreaker records whether the named target's breaker is open.
func (m *Metrics) SetCircuitBreaker(target string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	m.CircuitBreakerOpen.WithLabelValues(target).Set(v)
}
