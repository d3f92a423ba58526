package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics 服务端指标。Registry 独立创建，测试可以各自实例化。
type Metrics struct {
	Registry    *prometheus.Registry
	Admissions  *prometheus.CounterVec
	Transitions *prometheus.CounterVec
	Rebowls     *prometheus.CounterVec
	SweptOrders prometheus.Counter
	UnitsInUse  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hookah_order_admissions_total",
			Help: "Order admission attempts by result.",
		}, []string{"result"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hookah_order_transitions_total",
			Help: "Order status transitions by target status and actor.",
		}, []string{"status", "actor"}),
		Rebowls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hookah_rebowl_requests_total",
			Help: "New bowl request status changes by status.",
		}, []string{"status"}),
		SweptOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hookah_session_ending_sweeps_total",
			Help: "Sessions moved to SESSION_ENDING by the sweeper.",
		}),
		UnitsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hookah_units_in_use",
			Help: "Units held by non-terminal orders.",
		}),
	}
	m.Registry.MustRegister(
		m.Admissions,
		m.Transitions,
		m.Rebowls,
		m.SweptOrders,
		m.UnitsInUse,
		collectors.NewGoCollector(),
	)
	return m
}
