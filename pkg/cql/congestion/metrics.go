package congestion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	currentLimit  prometheus.Gauge
	backoffTimeNs prometheus.Counter
}

func NewMetrics(r prometheus.Registerer, strategy string) *Metrics {
	if strategy == StrategyNoop {
		strategy = "noop"
	}
	return &Metrics{
		currentLimit: promauto.With(r).NewGauge(prometheus.GaugeOpts{
			Namespace:   "cql",
			Subsystem:   "congestion_control",
			Name:        "limit",
			Help:        "Current per-second request limit to control congestion.",
			ConstLabels: prometheus.Labels{"strategy": strategy},
		}),
		backoffTimeNs: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Namespace:   "cql",
			Subsystem:   "congestion_control",
			Name:        "backoff_time_ns_total",
			Help:        "How much time is spent backing off once throughput limit is encountered.",
			ConstLabels: prometheus.Labels{"strategy": strategy},
		}),
	}
}
