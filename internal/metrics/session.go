package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Session and store Prometheus metrics.
var (
	StateOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_operations_total",
			Help:      "Search state operations applied to sessions",
		},
		[]string{"op", "result"}, // result: "ok" / "noop" / "error"
	)

	SessionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Search sessions created, by profile",
		},
		[]string{"profile"},
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Session store round-trip duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"op"},
	)
)

var registerOnce sync.Once

// Register registers every collector of the package with reg. Safe to call
// more than once; only the first call registers. Must be called from main.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			httpRequestsInFlight,
			HTTPRevisionConflictsTotal,
			StateOperationsTotal,
			SessionsCreatedTotal,
			StoreOperationDuration,
		)
	})
}
