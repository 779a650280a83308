package monitor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	cycles   prometheus.Counter
	probes   *prometheus.CounterVec
	restarts *prometheus.CounterVec
	scaleUps *prometheus.CounterVec
}

var metricsOnce sync.Once
var sharedMetrics *metrics

// newMetrics registers the monitor's counters once per process. Repeated
// registration (multiple controllers in tests) reuses the existing
// collectors.
func newMetrics() *metrics {
	metricsOnce.Do(func() {
		m := &metrics{
			cycles: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "autotest",
				Subsystem: "monitor",
				Name:      "reconcile_cycles_total",
				Help:      "Count of completed reconciliation cycles",
			}),
			probes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "autotest",
				Subsystem: "monitor",
				Name:      "health_probes_total",
				Help:      "Health probes by service and verdict",
			}, []string{"service", "verdict"}),
			restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "autotest",
				Subsystem: "monitor",
				Name:      "restarts_total",
				Help:      "Self-healing restarts issued per service",
			}, []string{"service"}),
			scaleUps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "autotest",
				Subsystem: "monitor",
				Name:      "scale_ups_total",
				Help:      "Autoscaler replicas created per service",
			}, []string{"service"}),
		}

		if err := prometheus.Register(m.cycles); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				m.cycles = already.ExistingCollector.(prometheus.Counter)
			}
		}
		vecs := []**prometheus.CounterVec{&m.probes, &m.restarts, &m.scaleUps}
		for _, vec := range vecs {
			if err := prometheus.Register(*vec); err != nil {
				if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
					if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
						*vec = existing
					}
				}
			}
		}
		sharedMetrics = m
	})
	return sharedMetrics
}
