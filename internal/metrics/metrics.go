package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Gateway round-trip metrics
	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of PeriPay gateway requests",
		},
		[]string{"operation", "outcome"},
	)
	GatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "gateway_request_duration_seconds",
			Help: "Duration of PeriPay gateway requests in seconds",
		},
		[]string{"operation"},
	)

	// Notification metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_notifications_total",
			Help: "Total number of inbound gateway notifications",
		},
		[]string{"outcome"},
	)

	// Reconciliation metrics
	ReconcileRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_runs_total",
			Help: "Total number of reconciliation runs",
		},
		[]string{"mode"},
	)
	ReconcileDriftTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_drift_total",
			Help: "Subscriptions flagged for schedule drift beyond tolerance",
		},
	)
)

// Register registers all collectors on the given registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		GatewayRequestsTotal,
		GatewayRequestDuration,
		NotificationsTotal,
		ReconcileRunsTotal,
		ReconcileDriftTotal,
	)
}
