package scenario

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gatewayprobe/internal/gateway"
)

type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatewayprobe",
			Name:      "scenario_runs_total",
			Help:      "Scenario runs by scenario and response class.",
		}, []string{"scenario", "class"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gatewayprobe",
			Name:      "scenario_duration_seconds",
			Help:      "Wall time of a scenario run, auth and dispatch included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scenario"}),
	}
	reg.MustRegister(m.runs, m.duration)
	return m
}

func (m *Metrics) observe(k Kind, c gateway.Class, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(k.String(), string(c)).Inc()
	m.duration.WithLabelValues(k.String()).Observe(d.Seconds())
}
