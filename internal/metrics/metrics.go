package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	// Reconciliations counts finished reconciliation passes by controller and outcome.
	Reconciliations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bindy_reconciliations_total",
		Help: "Number of finished reconciliation passes.",
	}, []string{"controller", "outcome"})

	// NameserverRetries counts retried requests towards the nameserver management API.
	NameserverRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bindy_nameserver_retries_total",
		Help: "Number of retried nameserver API requests.",
	})
)

func init() {
	ctrlmetrics.Registry.MustRegister(Reconciliations, NameserverRetries)
}
