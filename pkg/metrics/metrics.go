package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ProjectsTotal counts registered projects by lifecycle status.
	ProjectsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "debughostd_projects_total",
			Help: "Total number of registered projects by status",
		},
		[]string{"status"},
	)

	// PortsAllocated counts in-use-or-quarantined ports per tech range.
	PortsAllocated = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "debughostd_ports_allocated",
			Help: "Allocated (in-use or quarantined) ports per tech range",
		},
		[]string{"tech"},
	)

	// PortsFree counts remaining free ports per tech range.
	PortsFree = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "debughostd_ports_free",
			Help: "Free ports remaining per tech range",
		},
		[]string{"tech"},
	)

	// ContainerRestartsTotal counts restarts, labeled by trigger
	// ("manual" via the restart operation, "auto" via the Health
	// Monitor's cooldown-bounded policy).
	ContainerRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debughostd_container_restarts_total",
			Help: "Total number of container restarts by trigger",
		},
		[]string{"trigger"},
	)

	// LogsDroppedTotal counts log entries dropped because a
	// subscription's bounded queue was full.
	LogsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "debughostd_logs_dropped_total",
			Help: "Total number of log entries dropped from full subscription queues",
		},
	)

	// HealthChecksTotal counts completed health probes by outcome.
	HealthChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debughostd_health_checks_total",
			Help: "Total number of health checks performed by result",
		},
		[]string{"result"},
	)

	// OperationDuration times a lifecycle operation end-to-end.
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "debughostd_operation_duration_seconds",
			Help:    "Lifecycle operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		ProjectsTotal,
		PortsAllocated,
		PortsFree,
		ContainerRestartsTotal,
		LogsDroppedTotal,
		HealthChecksTotal,
		OperationDuration,
	)
}

// Handler returns the Prometheus scrape handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer starts a Timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram vec.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
