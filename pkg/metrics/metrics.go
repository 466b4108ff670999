// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChangeOrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "plm",
		Subsystem: "change_orders",
		Name:      "created_total",
		Help:      "Number of change-order chains created.",
	})

	VersionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "plm",
		Subsystem: "change_orders",
		Name:      "versions_created_total",
		Help:      "Number of change-order versions created (excluding version 1).",
	})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plm",
		Subsystem: "change_orders",
		Name:      "status_transitions_total",
		Help:      "Applied status transitions, labelled by target status.",
	}, []string{"target"})

	RejectedTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "plm",
		Subsystem: "change_orders",
		Name:      "rejected_transitions_total",
		Help:      "Status transitions rejected by the state machine.",
	})

	RiskScoringFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "plm",
		Subsystem: "risk_ai",
		Name:      "failures_total",
		Help:      "Risk-scoring calls that failed and were absorbed.",
	})
)

// Mount registers the Prometheus scrape endpoint on the router.
func Mount(r *mux.Router, path string) {
	r.Handle(path, promhttp.Handler()).Methods(http.MethodGet)
}
