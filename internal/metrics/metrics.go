// Package metrics exposes SparkQ's Prometheus gauges and counters,
// registered the way the teacher registers its cluster metrics in
// pkg/metrics/metrics.go, scaled down to the queue core's own
// vocabulary: task lifecycle counts, the two Supervisor loops, and
// ControlServer request counts and latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TasksByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sparkq_tasks_by_status",
			Help: "Current number of tasks by queue and status",
		},
		[]string{"queue", "status"},
	)

	TasksEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkq_tasks_enqueued_total",
			Help: "Total number of tasks enqueued",
		},
		[]string{"queue", "tool_name"},
	)

	TasksClaimedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sparkq_tasks_claimed_total",
			Help: "Total number of successful AtomicClaim transitions",
		},
	)

	TasksClaimConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sparkq_tasks_claim_conflicts_total",
			Help: "Total number of AtomicClaim calls that lost the race",
		},
	)

	TasksCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sparkq_tasks_completed_total",
			Help: "Total number of tasks completed successfully",
		},
	)

	TasksFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkq_tasks_failed_total",
			Help: "Total number of tasks that ended failed, by cause",
		},
		[]string{"cause"}, // "explicit" or "auto_fail"
	)

	TasksRequeuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sparkq_tasks_requeued_total",
			Help: "Total number of CloneForRequeue operations",
		},
	)

	StaleWarnedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sparkq_tasks_stale_warned_total",
			Help: "Total number of tasks marked stale-warned by the Supervisor stale loop",
		},
	)

	PurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sparkq_tasks_purged_total",
			Help: "Total number of terminal tasks deleted by the Supervisor purge loop",
		},
	)

	SupervisorLoopDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sparkq_supervisor_loop_duration_seconds",
			Help:    "Duration of one Supervisor loop pass",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"loop"}, // "stale" or "purge"
	)

	ControlServerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sparkq_control_server_requests_total",
			Help: "Total number of ControlServer requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	ControlServerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sparkq_control_server_request_duration_seconds",
			Help:    "ControlServer request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(
		TasksByStatus,
		TasksEnqueuedTotal,
		TasksClaimedTotal,
		TasksClaimConflictsTotal,
		TasksCompletedTotal,
		TasksFailedTotal,
		TasksRequeuedTotal,
		StaleWarnedTotal,
		PurgedTotal,
		SupervisorLoopDuration,
		ControlServerRequestsTotal,
		ControlServerRequestDuration,
	)
}

// Handler exposes the registered metrics for scraping, exactly as the
// teacher's pkg/metrics.Handler wraps promhttp.Handler().
func Handler() http.Handler {
	return promhttp.Handler()
}
