// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	MenuItemsSegmented = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "menu_items_segmented",
			Help:    "Number of raw line items produced per segmented menu",
			Buckets: prometheus.LinearBuckets(0, 10, 10),
		},
	)

	MenuItemHealthScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "menu_item_health_score",
			Help:    "Distribution of locally computed health scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	AugmentationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "augmentation_requests_total",
			Help: "Augmentation outcomes by result (model, fallback, cached, skipped)",
		},
		[]string{"result"},
	)
)

// ObserveJob records the outcome of one job. errorCode is empty on success.
func ObserveJob(taskType string, seconds float64, errorCode string) {
	WorkerJobDuration.WithLabelValues(taskType).Observe(seconds)
	if errorCode == "" {
		WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		return
	}
	WorkerJobsFailed.WithLabelValues(taskType, errorCode).Inc()
}
