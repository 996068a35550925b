package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_runs_total",
		Help: "Total number of dispatch runs",
	})

	UsersProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_users_processed_total",
		Help: "Total number of users matched by the time-window matcher",
	})

	PushSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_push_sent_total",
		Help: "Total number of successful push deliveries",
	})

	PushErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_push_errors_total",
		Help: "Total number of failed delivery attempts",
	}, []string{"class"}) // class: gone, transient

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "notify_run_duration_seconds",
		Help:    "Dispatch run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notify_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	}, []string{"method", "path", "status"})
)
