package alert

import "github.com/prometheus/client_golang/prometheus"

var (
	CyclesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stockbot",
		Subsystem: "monitor",
		Name:      "cycles_completed",
		Help:      "The total number of completed monitoring cycles",
	})
	AlertsFired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockbot",
		Subsystem: "monitor",
		Name:      "alerts_fired",
		Help:      "The total number of target-reached notifications sent",
	}, []string{"symbol"})
	ApproachWarnings = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stockbot",
		Subsystem: "monitor",
		Name:      "approach_warnings",
		Help:      "The total number of proximity warnings sent",
	})
	ProviderErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stockbot",
		Subsystem: "monitor",
		Name:      "provider_errors",
		Help:      "The total number of failed market data fetches",
	})
	DeliveryFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stockbot",
		Subsystem: "monitor",
		Name:      "delivery_failures",
		Help:      "The total number of notifications that failed on both routes",
	})
	TargetsRegistered = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stockbot",
		Subsystem: "monitor",
		Name:      "targets_registered",
		Help:      "The current number of registered targets",
	})
)

func init() {
	prometheus.MustRegister(CyclesCompleted)
	prometheus.MustRegister(AlertsFired)
	prometheus.MustRegister(ApproachWarnings)
	prometheus.MustRegister(ProviderErrors)
	prometheus.MustRegister(DeliveryFailures)
	prometheus.MustRegister(TargetsRegistered)
}
