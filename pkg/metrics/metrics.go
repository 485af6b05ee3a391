package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Scheduler related metrics
	JobsPending   prometheus.Gauge
	JobsFired     prometheus.Counter
	JobsRecovered prometheus.Counter
	FireRetries   prometheus.Counter
	FireFailures  prometheus.Counter
	FireLatency   prometheus.Histogram

	// Delivery log metrics
	DeliveryEventsPublished prometheus.Counter
	DeliveryEventsFailed    prometheus.Counter
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		JobsPending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_jobs_pending",
			Help:      "Current number of registered deferred notification jobs",
		}),
		JobsFired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_jobs_fired_total",
			Help:      "Total number of deferred notification jobs fired",
		}),
		JobsRecovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_jobs_recovered_total",
			Help:      "Total number of pending jobs re-registered at startup",
		}),
		FireRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_fire_retries_total",
			Help:      "Total number of retried persistence writes in the fire path",
		}),
		FireFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_fire_failures_total",
			Help:      "Total number of jobs whose fire exhausted all retries",
		}),
		FireLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scheduler_fire_duration_seconds",
			Help:      "Time spent transitioning a notification to sent",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		DeliveryEventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "delivery_events_published_total",
			Help:      "Total number of delivery-log events published",
		}),
		DeliveryEventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "delivery_events_failed_total",
			Help:      "Total number of delivery-log events that failed to publish",
		}),
	}
}
