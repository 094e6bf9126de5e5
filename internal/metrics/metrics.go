// Package metrics exposes Prometheus collectors for the scheduling engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"QuantSentinel/internal/model"
)

// Metrics groups the engine's collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	cycles        prometheus.Counter
	noops         *prometheus.CounterVec
	aborts        *prometheus.CounterVec
	accountPasses *prometheus.CounterVec
	alerts        *prometheus.CounterVec
	runCount      prometheus.Gauge
	nextDue       prometheus.Gauge
	resvRemaining *prometheus.GaugeVec
	resvTicks     *prometheus.GaugeVec
	converted     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quant",
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Completed Act cycles.",
		}),
		noops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quant",
			Subsystem: "scheduler",
			Name:      "noops_total",
			Help:      "Commands ignored by a guard, segmented by reason.",
		}, []string{"command", "reason"}),
		aborts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quant",
			Subsystem: "scheduler",
			Name:      "aborts_total",
			Help:      "Act cycles aborted without commit, segmented by reason.",
		}, []string{"reason"}),
		accountPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quant",
			Subsystem: "rebalance",
			Name:      "account_passes_total",
			Help:      "Per-account rebalance passes segmented by outcome.",
		}, []string{"outcome"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quant",
			Subsystem: "reservation",
			Name:      "alerts_total",
			Help:      "Reservation alerts segmented by delivery outcome.",
		}, []string{"outcome"}),
		runCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quant",
			Subsystem: "scheduler",
			Name:      "run_count",
			Help:      "Current run counter.",
		}),
		nextDue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quant",
			Subsystem: "scheduler",
			Name:      "next_due_tick",
			Help:      "Tick the next Act is armed for; 0 when stopped.",
		}),
		resvRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "quant",
			Subsystem: "reservation",
			Name:      "remaining_amount",
			Help:      "Unspent reservation budget per account.",
		}, []string{"account"}),
		resvTicks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "quant",
			Subsystem: "reservation",
			Name:      "remaining_ticks",
			Help:      "Ticks until the reservation expires per account.",
		}, []string{"account"}),
		converted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quant",
			Subsystem: "rebalance",
			Name:      "buys_total",
			Help:      "Volatile conversions performed, per asset.",
		}, []string{"symbol"}),
	}
	reg.MustRegister(
		m.cycles, m.noops, m.aborts, m.accountPasses, m.alerts,
		m.runCount, m.nextDue, m.resvRemaining, m.resvTicks, m.converted,
	)
	return m
}

func (m *Metrics) Noop(command model.CommandKind, reason string) {
	if m == nil {
		return
	}
	m.noops.WithLabelValues(string(command), reason).Inc()
}

func (m *Metrics) Abort(reason string) {
	if m == nil {
		return
	}
	m.aborts.WithLabelValues(reason).Inc()
}

// Cycle records a committed cycle and the resulting scheduler state.
func (m *Metrics) Cycle(state model.SchedulerState) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.State(state)
}

// State mirrors the scheduler counters into gauges.
func (m *Metrics) State(state model.SchedulerState) {
	if m == nil {
		return
	}
	m.runCount.Set(float64(state.RunCount))
	m.nextDue.Set(float64(state.NextDue))
}

func (m *Metrics) AccountPass(outcome string) {
	if m == nil {
		return
	}
	m.accountPasses.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Buy(symbol string) {
	if m == nil {
		return
	}
	m.converted.WithLabelValues(symbol).Inc()
}

func (m *Metrics) Alert(delivered bool) {
	if m == nil {
		return
	}
	outcome := "delivered"
	if !delivered {
		outcome = "failed"
	}
	m.alerts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Reservation(account model.Account, h model.Health) {
	if m == nil {
		return
	}
	m.resvRemaining.WithLabelValues(string(account)).Set(float64(h.RemainingAmount))
	m.resvTicks.WithLabelValues(string(account)).Set(float64(h.RemainingTicks))
}
