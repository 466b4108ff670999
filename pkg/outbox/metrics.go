package outbox

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type outboxMetrics struct {
	dispatched *prometheus.CounterVec
	failed     *prometheus.CounterVec
	dead       *prometheus.CounterVec
	queueDepth *prometheus.GaugeVec
	cleaned    *prometheus.CounterVec
}

var metricsOnce = sync.OnceValue(func() *outboxMetrics {
	return &outboxMetrics{
		dispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plm",
			Subsystem: "outbox",
			Name:      "dispatched_total",
			Help:      "Outbox messages dispatched successfully.",
		}, []string{"table", "topic"}),
		failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plm",
			Subsystem: "outbox",
			Name:      "dispatch_failures_total",
			Help:      "Outbox dispatch attempts that failed and were scheduled for retry.",
		}, []string{"table", "topic"}),
		dead: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plm",
			Subsystem: "outbox",
			Name:      "dead_total",
			Help:      "Outbox messages moved to the dead state after exhausting retries.",
		}, []string{"table", "topic"}),
		queueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "plm",
			Subsystem: "outbox",
			Name:      "queue_depth",
			Help:      "Pending outbox messages by table.",
		}, []string{"table"}),
		cleaned: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plm",
			Subsystem: "outbox",
			Name:      "cleaned_total",
			Help:      "Dispatched outbox rows deleted by the cleaner.",
		}, []string{"table"}),
	}
})
